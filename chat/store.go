////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/receipts"
)

// Store is the in-memory ordered timeline of one conversation. Group and
// direct conversations never share an instance.
//
// Exactly one live entry exists per logical message. A pending send is
// keyed by its provisional TempID until reconciliation; the acknowledgment
// and the broadcast echo of the same send can arrive in either order, so
// every lookup that dedupes has to consult both the authoritative ID and any
// previously-seen temp ID. Matching on one of them alone is insufficient
// once an ack has rewritten the entry's ID in place.
type Store struct {
	conversationKey string
	selfID          string

	mux      sync.RWMutex
	timeline []*Message
	byID     map[string]*Message
	byTempID map[string]*Message
}

// NewStore returns an empty timeline for the conversation. selfID is the
// local user, used to exclude own messages from read batches.
func NewStore(conversationKey, selfID string) *Store {
	return &Store{
		conversationKey: conversationKey,
		selfID:          selfID,
		byID:            make(map[string]*Message),
		byTempID:        make(map[string]*Message),
	}
}

// ConversationKey returns the conversation this store belongs to.
func (s *Store) ConversationKey() string {
	return s.conversationKey
}

// InsertPending inserts an optimistic entry for a send the user just made
// and returns its provisional ID. The entry shows immediately with Sending
// status; reconciliation later collapses it with the server's copy.
func (s *Store) InsertPending(msg Message) string {
	if msg.TempID == "" {
		msg.TempID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.ConversationKey = s.conversationKey
	msg.Status = catalog.Sending

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, exists := s.byTempID[msg.TempID]; exists {
		jww.WARN.Printf("[CHAT] Duplicate pending insert for temp ID %s "+
			"ignored", msg.TempID)
		return msg.TempID
	}

	m := &msg
	s.insertOrdered(m)
	s.byTempID[m.TempID] = m

	return m.TempID
}

// Ack applies the acknowledgment correlating a prior submission with its
// server-assigned ID. If the ack beat the broadcast echo, the entry's ID is
// rewritten in place; if the echo arrived first and already inserted a
// confirmed entry, the pending entry is merged into it and removed so
// exactly one entry survives. Returns false when there is nothing left to
// reconcile, which is normal after a redelivered ack.
func (s *Store) Ack(tempID, serverID string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	temp, ok := s.byTempID[tempID]
	if !ok {
		jww.DEBUG.Printf("[CHAT] Ack for unknown temp ID %s (already "+
			"reconciled?)", tempID)
		return false
	}

	if confirmed, exists := s.byID[serverID]; exists && confirmed != temp {
		// The broadcast won the race. Keep the server entry but carry
		// over the client-only preview the echo could not have had.
		s.adoptPreview(confirmed, temp)
		s.removeEntry(temp)
		jww.DEBUG.Printf("[CHAT] Merged pending %s into broadcast copy %s",
			tempID, serverID)
		return true
	}

	temp.ID = serverID
	s.byID[serverID] = temp
	s.advanceStatus(temp, catalog.Sent)

	return true
}

// ApplyBroadcast folds an authoritative message copy into the timeline. The
// same payload may be redelivered arbitrarily; applying it again is a no-op
// beyond forwarding status and unioning receipts.
func (s *Store) ApplyBroadcast(in Message) {
	if in.ID == "" && in.TempID == "" {
		// An entry with no ID at all could never be matched by a later
		// ack, delete, edit, status, or receipt event, and would
		// duplicate on every redelivery.
		jww.WARN.Printf("[CHAT] Dropping broadcast carrying no message ID")
		return
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if in.ID != "" {
		if existing, ok := s.byID[in.ID]; ok {
			s.mergeServerCopy(existing, &in)
			return
		}
	}

	if in.TempID != "" {
		if temp, ok := s.byTempID[in.TempID]; ok {
			s.mergeServerCopy(temp, &in)
			return
		}
	}

	// Nobody's pending send; insert directly as a confirmed entry.
	msg := in
	msg.TempID = ""
	if !msg.Status.Valid() || msg.Status == catalog.Sending {
		msg.Status = catalog.Sent
	}
	if msg.Attachment != nil && msg.Attachment.FileURL != "" {
		msg.fileURLResolved = true
	}

	m := &msg
	s.insertOrdered(m)
	if m.ID != "" {
		s.byID[m.ID] = m
	}
}

// Fail rolls back an optimistic entry after a transport or upload error.
// The entry is removed from the timeline, not retained as a failure
// placeholder; the caller notifies the user separately.
func (s *Store) Fail(tempID string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	temp, ok := s.byTempID[tempID]
	if !ok {
		return false
	}

	s.removeEntry(temp)
	jww.INFO.Printf("[CHAT] Removed failed send %s from timeline", tempID)

	return true
}

// ApplyDeleted removes the given messages. Scope ("me" or "everyone") does
// not change the local effect; it is carried for the caller's bookkeeping.
func (s *Store) ApplyDeleted(ids []string, scope string) int {
	s.mux.Lock()
	defer s.mux.Unlock()

	removed := 0
	for _, id := range ids {
		if m, ok := s.byID[id]; ok {
			s.removeEntry(m)
			removed++
		}
	}

	if removed > 0 {
		jww.DEBUG.Printf("[CHAT] Deleted %d messages (scope %s)",
			removed, scope)
	}

	return removed
}

// ApplyCleared empties the timeline.
func (s *Store) ApplyCleared(scope string) {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.timeline = nil
	s.byID = make(map[string]*Message)
	s.byTempID = make(map[string]*Message)

	jww.INFO.Printf("[CHAT] Conversation %s cleared (scope %s)",
		s.conversationKey, scope)
}

// ApplyEdited replaces a message's content.
func (s *Store) ApplyEdited(id, content string, editedAt time.Time) bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return false
	}

	m.Content = content
	m.EditedAt = editedAt

	return true
}

// ApplyReaction replaces the user set behind one emoji with the server's
// authoritative set. Replacement, not increment, keeps a replayed event from
// double counting. The emoji is validated; the server should never send an
// invalid one, but a malformed event must not corrupt the map.
func (s *Store) ApplyReaction(id, emoji string, userIDs []string) error {
	if err := ValidateReaction(emoji); err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return nil
	}

	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	if len(userIDs) == 0 {
		delete(m.Reactions, emoji)
	} else {
		m.Reactions[emoji] = dedupe(userIDs)
	}

	return nil
}

// ApplyModeration flags a message hidden (or visible again) without
// removing it.
func (s *Store) ApplyModeration(id string, hidden bool) bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return false
	}

	m.Hidden = hidden
	return true
}

// ApplyStatus applies a direct per-message status event. Backward
// transitions are refused; redelivered stale events cannot regress a
// message.
func (s *Store) ApplyStatus(id string, status catalog.Status) bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	m, ok := s.lookup(id)
	if !ok {
		return false
	}

	return s.advanceStatus(m, status)
}

// ApplyReadReceipts unions a receipt batch into the message and folds the
// new read count into its status.
func (s *Store) ApplyReadReceipts(id string, rcpts []ReadReceipt) bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	m, ok := s.lookup(id)
	if !ok {
		return false
	}

	for _, r := range rcpts {
		if r.UserID == m.SenderID || m.hasRead(r.UserID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, r)
	}

	s.advanceStatus(m,
		receipts.Aggregate(m.Status, m.ReadCount(), m.TotalRecipients))

	return true
}

// SetResolvedFileURL records the canonical location of an attachment once
// its transfer completed, optionally forwarding the status. A resolved URI
// sticks; later transient values are refused.
func (s *Store) SetResolvedFileURL(key, fileURL string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	m, ok := s.lookup(key)
	if !ok || m.Attachment == nil {
		return false
	}

	m.Attachment.FileURL = fileURL
	m.fileURLResolved = true

	return true
}

// Get returns a copy of the message known under the given authoritative or
// provisional ID.
func (s *Store) Get(key string) (Message, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	m, ok := s.lookup(key)
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// Messages returns a snapshot of the timeline in order.
func (s *Store) Messages() []Message {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]Message, len(s.timeline))
	for i, m := range s.timeline {
		out[i] = *m
	}
	return out
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.timeline)
}

// UnreadIncomingIDs returns the confirmed, not-self-authored messages the
// local user has not read yet. This is the input to the batched mark-read
// request.
func (s *Store) UnreadIncomingIDs() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()

	var ids []string
	for _, m := range s.timeline {
		if m.ID == "" || m.SenderID == s.selfID || m.hasRead(s.selfID) {
			continue
		}
		ids = append(ids, m.ID)
	}
	return ids
}

// MarkLocallyRead records the local user's own read receipts so the same
// messages are not batched again while the server echo is in flight.
func (s *Store) MarkLocallyRead(ids []string) {
	now := time.Now()

	s.mux.Lock()
	defer s.mux.Unlock()

	for _, id := range ids {
		if m, ok := s.byID[id]; ok && !m.hasRead(s.selfID) {
			m.ReadBy = append(m.ReadBy,
				ReadReceipt{UserID: s.selfID, ReadAt: now})
		}
	}
}

// lookup consults both ID spaces. Callers hold the mutex.
func (s *Store) lookup(key string) (*Message, bool) {
	if m, ok := s.byID[key]; ok {
		return m, true
	}
	m, ok := s.byTempID[key]
	return m, ok
}

// insertOrdered places the entry by timestamp, appending on ties so arrival
// order breaks them. Callers hold the mutex.
func (s *Store) insertOrdered(m *Message) {
	i := sort.Search(len(s.timeline), func(i int) bool {
		return s.timeline[i].Timestamp.After(m.Timestamp)
	})
	s.timeline = append(s.timeline, nil)
	copy(s.timeline[i+1:], s.timeline[i:])
	s.timeline[i] = m
}

// removeEntry drops the entry from the timeline and both ID maps. Callers
// hold the mutex.
func (s *Store) removeEntry(m *Message) {
	for i, e := range s.timeline {
		if e == m {
			s.timeline = append(s.timeline[:i], s.timeline[i+1:]...)
			break
		}
	}
	if m.ID != "" {
		delete(s.byID, m.ID)
	}
	if m.TempID != "" {
		delete(s.byTempID, m.TempID)
	}
}

// advanceStatus forwards the entry's status, refusing regressions. Callers
// hold the mutex.
func (s *Store) advanceStatus(m *Message, status catalog.Status) bool {
	if !status.Valid() || status == catalog.Failed {
		return false
	}
	if !status.AtLeast(m.Status) {
		jww.TRACE.Printf("[CHAT] Refusing status regression %s -> %s on %s",
			m.Status, status, m.Key())
		return false
	}

	m.Status = status
	return true
}

// mergeServerCopy folds the authoritative copy into an existing entry:
// server-confirmed fields win, client-only preview fields the server copy
// lacks survive. If the entry was pending, it is promoted under its
// authoritative ID and its temp mapping dropped. Callers hold the mutex.
func (s *Store) mergeServerCopy(dst *Message, in *Message) {
	if in.ID != "" && dst.ID == "" {
		dst.ID = in.ID
		s.byID[dst.ID] = dst
	}

	if in.Content != "" {
		dst.Content = in.Content
	}
	if !in.Timestamp.IsZero() {
		dst.Timestamp = in.Timestamp
	}
	if in.TotalRecipients > 0 {
		dst.TotalRecipients = in.TotalRecipients
	}
	if in.ReplyTo != nil {
		dst.ReplyTo = in.ReplyTo
	}
	if len(in.Reactions) > 0 {
		dst.Reactions = in.Reactions
	}

	if in.Attachment != nil {
		if dst.Attachment == nil {
			dst.Attachment = &Attachment{}
		}
		if in.Attachment.FileName != "" {
			dst.Attachment.FileName = in.Attachment.FileName
		}
		if in.Attachment.FileSize > 0 {
			dst.Attachment.FileSize = in.Attachment.FileSize
		}
		if in.Attachment.Duration > 0 {
			dst.Attachment.Duration = in.Attachment.Duration
		}
		// The canonical URL replaces the local preview, but an echo
		// without one never blanks the preview the user is looking at.
		if in.Attachment.FileURL != "" {
			dst.Attachment.FileURL = in.Attachment.FileURL
			dst.fileURLResolved = true
		}
	}

	for _, r := range in.ReadBy {
		if !dst.hasRead(r.UserID) && r.UserID != dst.SenderID {
			dst.ReadBy = append(dst.ReadBy, r)
		}
	}

	status := in.Status
	if !status.Valid() || status == catalog.Sending {
		status = catalog.Sent
	}
	s.advanceStatus(dst, status)
	s.advanceStatus(dst,
		receipts.Aggregate(dst.Status, dst.ReadCount(), dst.TotalRecipients))

	if dst.TempID != "" {
		delete(s.byTempID, dst.TempID)
		dst.TempID = ""
	}
}

// adoptPreview carries client-only preview fields from a pending entry onto
// the confirmed one before the pending entry is discarded. Callers hold the
// mutex.
func (s *Store) adoptPreview(confirmed, pending *Message) {
	if pending.Attachment == nil {
		return
	}
	if confirmed.Attachment == nil {
		att := *pending.Attachment
		confirmed.Attachment = &att
		confirmed.fileURLResolved = pending.fileURLResolved
		return
	}
	if confirmed.Attachment.FileURL == "" {
		confirmed.Attachment.FileURL = pending.Attachment.FileURL
		confirmed.fileURLResolved = pending.fileURLResolved
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
