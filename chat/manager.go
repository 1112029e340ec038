////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/mediacache"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/presence"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/receipts"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/transfer"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/transport"
)

// Error messages.
const (
	statFileErr       = "cannot send %s: %+v"
	submitFallbackErr = "REST fallback submission failed: %+v"
	historyWarn       = "[CHAT] Could not load history for %s: %+v"
)

// How long and how often to poll the event channel before deciding it is
// still down after a failed send.
const (
	resumeAttempts = 10
	resumeInterval = 500 * time.Millisecond
)

const historyPageSize = 50

// Params configures a conversation Manager.
type Params struct {
	Channel  transport.Channel
	REST     *transport.RESTClient
	Identity transport.Identity

	// ConversationKey is a community ID for group chat or the unordered
	// pair ID for a direct conversation.
	ConversationKey string

	// Direct marks a two-party conversation; totalRecipients is then
	// fixed at 1.
	Direct bool

	Cache *mediacache.Cache

	// ChunkSize overrides the attachment chunk size in base64 text
	// bytes. Zero means the default.
	ChunkSize int

	// MarkReadDebounce overrides the read-receipt batching window.
	// Zero means the default.
	MarkReadDebounce time.Duration

	// OnBlocked is called when the server declines content for policy
	// reasons; the UI shows a distinct blocked notice, not a generic
	// failure. OnFailed is the transient failure notice; the entry is
	// already rolled back when either fires. Both are optional.
	OnBlocked func(tempID string)
	OnFailed  func(tempID string, err error)

	// OnUpdate fires after any mutation of the timeline so a screen can
	// re-render. Optional.
	OnUpdate func()
}

// Manager drives one conversation: it owns the timeline store, the presence
// tracker, the read-receipt marker, and the chunk codec for that
// conversation, and wires all of them to the transport. Group chat and
// direct messaging each mount their own Manager; instances share nothing.
type Manager struct {
	p Params

	store    *Store
	presence *presence.Tracker
	marker   *receipts.Marker
	sender   *transfer.Sender
	receiver *transfer.Receiver

	sub *transport.Subscription

	typing   uint32 // atomic; nonzero while our typing is announced
	resuming uint32 // atomic; nonzero while the resume poller runs

	closeOnce sync.Once
}

// NewManager builds the Manager and its per-conversation state. Call Start
// to connect and begin receiving events.
func NewManager(p Params) (*Manager, error) {
	if p.Channel == nil || p.REST == nil || p.Cache == nil {
		return nil, errors.New("chat: Channel, REST, and Cache are required")
	}
	if p.ConversationKey == "" {
		return nil, errors.New("chat: ConversationKey is required")
	}

	m := &Manager{
		p:        p,
		store:    NewStore(p.ConversationKey, p.Identity.UserID),
		presence: presence.NewTracker(p.Identity.UserID),
	}
	m.marker = receipts.NewMarker(p.MarkReadDebounce, m.sendMarkRead)
	if p.ChunkSize > 0 {
		m.sender = transfer.NewSenderParams(p.Channel, p.ChunkSize,
			transfer.DefaultChunkRate)
	} else {
		m.sender = transfer.NewSender(p.Channel)
	}
	m.receiver = transfer.NewReceiver(p.Cache, m.store)

	return m, nil
}

// Start connects the event channel, joins the conversation room, registers
// every handler on the returned subscription, and backfills history over
// REST. The handlers are owned by the subscription, so Close tears all of
// them down in one motion.
func (m *Manager) Start() error {
	sub, err := m.p.Channel.Connect(m.p.Identity, m.p.ConversationKey)
	if err != nil {
		return err
	}
	m.sub = sub

	sub.AddCloser(m.StopTyping)

	sub.On(catalog.NewMessage, m.onNewMessage)
	sub.On(catalog.MessageAck, m.onAck)
	sub.On(catalog.OnlineUsers, m.onRoster)
	sub.On(catalog.UserJoined, m.onJoined)
	sub.On(catalog.UserLeft, m.onLeft)
	sub.On(catalog.Typing, m.onTyping)
	sub.On(catalog.StopTyping, m.onStopTyping)
	sub.On(catalog.MessageDeleted, m.onDeleted)
	sub.On(catalog.MessageEdited, m.onEdited)
	sub.On(catalog.ReactionUpdated, m.onReaction)
	sub.On(catalog.ModerationUpdated, m.onModeration)
	sub.On(catalog.ReadReceiptBatch, m.onReceiptBatch)
	sub.On(catalog.MessageStatus, m.onStatus)
	sub.On(catalog.FileTransferStart, m.onTransferStart)
	sub.On(catalog.FileChunk, m.onChunk)
	sub.On(catalog.FileTransferComplete, m.onTransferComplete)

	m.loadHistory()
	m.queueRead()

	return nil
}

// SendText submits a text message. The entry appears immediately with
// Sending status; the returned provisional ID identifies it until the
// acknowledgment or the broadcast echo reconciles it. On a dead channel the
// submission degrades to REST; on rejection or failure the entry is rolled
// back and the matching notice fires.
func (m *Manager) SendText(content string, replyTo *ReplySnapshot) (string, error) {
	msg := Message{
		SenderID: m.p.Identity.UserID,
		Content:  content,
		Type:     catalog.Text,
		ReplyTo:  replyTo,
	}
	if m.p.Direct {
		msg.TotalRecipients = 1
	}

	tempID := m.store.InsertPending(msg)
	m.notifyUpdate()

	stored, _ := m.store.Get(tempID)
	if err := m.p.Channel.Send(catalog.SendMessage, stored); err == nil {
		return tempID, nil
	} else if !errors.Is(err, transport.ErrTransportUnavailable) {
		jww.WARN.Printf("[CHAT] Channel send failed, trying REST: %+v", err)
	}

	m.noteChannelDown()

	return tempID, m.submitOverREST(tempID, stored)
}

// SendFile submits an attachment message. The entry shows immediately with
// the local file URI as its preview; the canonical URI replaces it when the
// chunk transfer (or the REST upload) completes. Chunk streaming happens off
// the calling goroutine.
func (m *Manager) SendFile(localPath string, fileType catalog.MessageType) (
	string, error) {
	fi, err := os.Stat(localPath)
	if err != nil {
		return "", errors.Errorf(statFileErr, localPath, err)
	}

	msg := Message{
		SenderID: m.p.Identity.UserID,
		Type:     fileType,
		Attachment: &Attachment{
			FileURL:  "file://" + localPath,
			FileName: fi.Name(),
			FileSize: fi.Size(),
		},
	}
	if m.p.Direct {
		msg.TotalRecipients = 1
	}

	tempID := m.store.InsertPending(msg)
	m.notifyUpdate()

	stored, _ := m.store.Get(tempID)
	if err = m.p.Channel.Send(catalog.SendMessage, stored); err == nil {
		go m.streamFile(tempID, fileType, localPath)
		return tempID, nil
	}

	m.noteChannelDown()

	// REST path: upload first so the submission carries the resolved URL.
	url, err := m.p.REST.UploadMedia(context.Background(), localPath)
	if err != nil {
		m.rollback(tempID, err)
		return "", err
	}
	m.store.SetResolvedFileURL(tempID, url)

	stored, _ = m.store.Get(tempID)
	return tempID, m.submitOverREST(tempID, stored)
}

// streamFile runs the chunked send and rolls the message back if the stream
// is interrupted. No partial file counts as delivered.
func (m *Manager) streamFile(tempID string, fileType catalog.MessageType,
	localPath string) {
	if err := m.sender.SendFile(tempID, fileType, localPath); err != nil {
		jww.ERROR.Printf("[CHAT] Attachment send for %s failed: %+v",
			tempID, err)
		m.rollback(tempID, err)
	}
}

// submitOverREST posts the message and feeds the authoritative response
// through the same reconciliation path a broadcast would take.
func (m *Manager) submitOverREST(tempID string, stored Message) error {
	raw, err := m.p.REST.SubmitMessage(context.Background(), stored)
	if err != nil {
		m.rollback(tempID, err)
		if errors.Is(err, transport.ErrSubmissionRejected) {
			return err
		}
		return errors.Errorf(submitFallbackErr, err)
	}

	var in Message
	if err = json.Unmarshal(raw, &in); err != nil {
		jww.WARN.Printf("[CHAT] Unreadable REST submit response: %+v", err)
		return nil
	}
	in.TempID = tempID
	m.store.ApplyBroadcast(in)
	m.notifyUpdate()

	return nil
}

// rollback removes the optimistic entry and fires the matching notice.
// Failed sends are not kept as error bubbles in the timeline.
func (m *Manager) rollback(tempID string, err error) {
	m.store.Fail(tempID)
	m.notifyUpdate()

	if errors.Is(err, transport.ErrSubmissionRejected) {
		if m.p.OnBlocked != nil {
			m.p.OnBlocked(tempID)
		}
		return
	}
	if m.p.OnFailed != nil {
		m.p.OnFailed(tempID, err)
	}
}

// Typing announces that the local user started typing. Repeated calls while
// already announced are free.
func (m *Manager) Typing() {
	if !atomic.CompareAndSwapUint32(&m.typing, 0, 1) {
		return
	}
	_ = m.p.Channel.Send(catalog.Typing, memberPayload{
		UserID:   m.p.Identity.UserID,
		Username: m.p.Identity.Username,
	})
}

// StopTyping clears the local user's typing announcement.
func (m *Manager) StopTyping() {
	if !atomic.CompareAndSwapUint32(&m.typing, 1, 0) {
		return
	}
	_ = m.p.Channel.Send(catalog.StopTyping, memberPayload{
		UserID:   m.p.Identity.UserID,
		Username: m.p.Identity.Username,
	})
}

// React submits a reaction after validating it is a single emoji.
func (m *Manager) React(messageID, emoji string) error {
	if err := ValidateReaction(emoji); err != nil {
		return err
	}
	return m.p.Channel.Send(catalog.ReactionUpdated, reactionPayload{
		MessageID: messageID,
		Emoji:     emoji,
		UserIDs:   []string{m.p.Identity.UserID},
	})
}

// Messages returns the current timeline snapshot.
func (m *Manager) Messages() []Message {
	return m.store.Messages()
}

// Store exposes the timeline store, mainly for rendering layers that want
// finer-grained reads.
func (m *Manager) Store() *Store {
	return m.store
}

// Presence exposes the conversation's online/typing tracker.
func (m *Manager) Presence() *presence.Tracker {
	return m.presence
}

// Indicator derives the rendered delivery marker for one of our messages.
func (m *Manager) Indicator(msg Message) receipts.Indicator {
	total := msg.TotalRecipients
	if m.p.Direct && total == 0 {
		total = 1
	}
	return receipts.Derive(msg.Status, msg.ReadCount(), total)
}

// Close tears the conversation down: flushes pending read receipts, stops
// typing emission, removes every handler, leaves the room, and abandons
// in-flight transfers. It does not wait for anything in flight.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.marker.Close()
		if m.sub != nil {
			m.sub.Close()
		}
		m.receiver.Close()

		jww.INFO.Printf("[CHAT] Conversation %s closed", m.p.ConversationKey)
	})
}

// loadHistory backfills the timeline over REST. Every entry goes through
// ApplyBroadcast, so anything already present (or arriving concurrently
// over the channel) dedupes instead of duplicating.
func (m *Manager) loadHistory() {
	raws, err := m.p.REST.History(context.Background(), m.p.ConversationKey,
		historyPageSize, time.Time{})
	if err != nil {
		jww.WARN.Printf(historyWarn, m.p.ConversationKey, err)
		return
	}

	for _, raw := range raws {
		var msg Message
		if err = json.Unmarshal(raw, &msg); err != nil {
			jww.WARN.Printf("[CHAT] Skipping unreadable history entry: %+v", err)
			continue
		}
		m.applyIncoming(msg)
	}
	m.notifyUpdate()
}

// applyIncoming folds one authoritative copy in, fixing up the direct
// recipient count.
func (m *Manager) applyIncoming(msg Message) {
	if m.p.Direct && msg.TotalRecipients == 0 {
		msg.TotalRecipients = 1
	}
	m.store.ApplyBroadcast(msg)
}

// queueRead batches the currently unread incoming messages for one
// debounced mark-read request.
func (m *Manager) queueRead() {
	if ids := m.store.UnreadIncomingIDs(); len(ids) > 0 {
		m.marker.Mark(ids...)
	}
}

// sendMarkRead is the marker's flush target: one batched emission, REST
// when the channel is down.
func (m *Manager) sendMarkRead(ids []string) {
	payload := markReadPayload{
		ConversationKey: m.p.ConversationKey,
		MessageIDs:      ids,
	}
	if err := m.p.Channel.Send(catalog.MarkRead, payload); err != nil {
		if err = m.p.REST.MarkRead(context.Background(),
			m.p.ConversationKey, ids); err != nil {
			jww.WARN.Printf("[CHAT] Could not mark %d messages read: %+v",
				len(ids), err)
			return
		}
	}
	m.store.MarkLocallyRead(ids)
}

// noteChannelDown starts the bounded poll for the channel coming back so
// sends resume using it. One poller at a time.
func (m *Manager) noteChannelDown() {
	if !atomic.CompareAndSwapUint32(&m.resuming, 0, 1) {
		return
	}

	go func() {
		defer atomic.StoreUint32(&m.resuming, 0)
		if transport.AwaitConnected(m.p.Channel, resumeAttempts, resumeInterval) {
			jww.INFO.Printf("[CHAT] Event channel back; resuming push sends")
		} else {
			jww.INFO.Printf("[CHAT] Event channel still down after %d polls",
				resumeAttempts)
		}
	}()
}

func (m *Manager) notifyUpdate() {
	if m.p.OnUpdate != nil {
		m.p.OnUpdate()
	}
}

// Event handlers. Every handler treats its payload as hostile: an
// unmarshalable event is logged and dropped, never allowed to take the
// subscription down.

func (m *Manager) onNewMessage(p json.RawMessage) {
	var msg Message
	if err := json.Unmarshal(p, &msg); err != nil {
		jww.WARN.Printf("[CHAT] Malformed new-message event: %+v", err)
		return
	}

	m.applyIncoming(msg)

	if msg.SenderID != m.p.Identity.UserID {
		m.queueRead()
	}
	m.notifyUpdate()
}

func (m *Manager) onAck(p json.RawMessage) {
	var ack ackPayload
	if err := json.Unmarshal(p, &ack); err != nil {
		jww.WARN.Printf("[CHAT] Malformed message-ack event: %+v", err)
		return
	}

	m.store.Ack(ack.ClientTempID, ack.MessageID)
	m.notifyUpdate()
}

func (m *Manager) onRoster(p json.RawMessage) {
	var roster rosterPayload
	if err := json.Unmarshal(p, &roster); err != nil {
		jww.WARN.Printf("[CHAT] Malformed online-users event: %+v", err)
		return
	}
	m.presence.SetRoster(roster.Users)
	m.notifyUpdate()
}

func (m *Manager) onJoined(p json.RawMessage) {
	var member memberPayload
	if err := json.Unmarshal(p, &member); err != nil {
		return
	}
	m.presence.Join(member.UserID)
	m.notifyUpdate()
}

func (m *Manager) onLeft(p json.RawMessage) {
	var member memberPayload
	if err := json.Unmarshal(p, &member); err != nil {
		return
	}
	m.presence.Leave(member.UserID)
	m.notifyUpdate()
}

func (m *Manager) onTyping(p json.RawMessage) {
	var member memberPayload
	if err := json.Unmarshal(p, &member); err != nil {
		return
	}
	m.presence.SetTyping(member.UserID, member.Username)
	m.notifyUpdate()
}

func (m *Manager) onStopTyping(p json.RawMessage) {
	var member memberPayload
	if err := json.Unmarshal(p, &member); err != nil {
		return
	}
	m.presence.ClearTyping(member.UserID)
	m.notifyUpdate()
}

func (m *Manager) onDeleted(p json.RawMessage) {
	var del deletedPayload
	if err := json.Unmarshal(p, &del); err != nil {
		jww.WARN.Printf("[CHAT] Malformed message-deleted event: %+v", err)
		return
	}

	if del.Cleared {
		m.store.ApplyCleared(del.Scope)
	} else {
		m.store.ApplyDeleted(del.ids(), del.Scope)
	}
	m.notifyUpdate()
}

func (m *Manager) onEdited(p json.RawMessage) {
	var edit editedPayload
	if err := json.Unmarshal(p, &edit); err != nil {
		return
	}
	m.store.ApplyEdited(edit.MessageID, edit.Content, edit.EditedAt)
	m.notifyUpdate()
}

func (m *Manager) onReaction(p json.RawMessage) {
	var re reactionPayload
	if err := json.Unmarshal(p, &re); err != nil {
		return
	}
	if err := m.store.ApplyReaction(re.MessageID, re.Emoji, re.UserIDs); err != nil {
		jww.WARN.Printf("[CHAT] Dropping invalid reaction %q on %s: %+v",
			re.Emoji, re.MessageID, err)
		return
	}
	m.notifyUpdate()
}

func (m *Manager) onModeration(p json.RawMessage) {
	var mod moderationPayload
	if err := json.Unmarshal(p, &mod); err != nil {
		return
	}
	m.store.ApplyModeration(mod.MessageID, mod.Hidden)
	m.notifyUpdate()
}

func (m *Manager) onReceiptBatch(p json.RawMessage) {
	var batch receiptBatchPayload
	if err := json.Unmarshal(p, &batch); err != nil {
		jww.WARN.Printf("[CHAT] Malformed read-receipt-batch event: %+v", err)
		return
	}

	for _, r := range batch.Receipts {
		m.store.ApplyReadReceipts(r.MessageID, r.ReadBy)
	}
	m.notifyUpdate()
}

func (m *Manager) onStatus(p json.RawMessage) {
	var st statusPayload
	if err := json.Unmarshal(p, &st); err != nil {
		return
	}
	m.store.ApplyStatus(st.MessageID, st.Status)
	m.notifyUpdate()
}

func (m *Manager) onTransferStart(p json.RawMessage) {
	var start transfer.StartMessage
	if err := json.Unmarshal(p, &start); err != nil {
		jww.WARN.Printf("[CHAT] Malformed file-transfer-start event: %+v", err)
		return
	}
	m.receiver.HandleStart(start)
	m.notifyUpdate()
}

func (m *Manager) onChunk(p json.RawMessage) {
	var chunk transfer.ChunkMessage
	if err := json.Unmarshal(p, &chunk); err != nil {
		jww.WARN.Printf("[CHAT] Malformed file-chunk event: %+v", err)
		return
	}
	m.receiver.HandleChunk(chunk)
	m.notifyUpdate()
}

// onTransferComplete resolves the uploader's own copy: the server confirms
// it assembled the stream and names the canonical URL it will serve.
func (m *Manager) onTransferComplete(p json.RawMessage) {
	var done transfer.CompleteMessage
	if err := json.Unmarshal(p, &done); err != nil {
		jww.WARN.Printf("[CHAT] Malformed file-transfer-complete event: %+v",
			err)
		return
	}

	if done.FileURL != "" {
		m.store.SetResolvedFileURL(done.MessageID, done.FileURL)
	}
	m.store.ApplyStatus(done.MessageID, catalog.Sent)
	m.notifyUpdate()
}
