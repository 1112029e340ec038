////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package chat owns the client-side message timeline for one conversation:
// the optimistic-write, broadcast-merge, and status-aggregation logic that
// keeps the timeline consistent no matter the order the channel delivers
// acknowledgments, echoes, and receipts in.
package chat

import (
	"time"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

// Attachment describes the media payload of a non-text message. FileURL is a
// local URI while the transfer is in flight and is replaced by the resolved
// URI once the chunk transfer or REST upload completes. A resolved URI never
// regresses back to a transient one.
type Attachment struct {
	FileURL  string        `json:"fileUrl"`
	FileName string        `json:"fileName"`
	FileSize int64         `json:"fileSize"`
	Duration time.Duration `json:"duration,omitempty"`
}

// ReadReceipt records one recipient having read the message.
type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// ReplySnapshot is a denormalized copy of the message being replied to, not
// a live reference; the original may be deleted after the reply is sent.
type ReplySnapshot struct {
	ID       string              `json:"id"`
	Username string              `json:"username"`
	Content  string              `json:"content"`
	Type     catalog.MessageType `json:"type"`
}

// Message is one entry in a conversation timeline.
//
// ID is server-assigned and empty until the submission is acknowledged.
// TempID is the client-generated provisional ID and exists only until
// reconciliation; the same logical message may be referenced by either value
// depending on which of the acknowledgment and the broadcast echo arrives
// first.
type Message struct {
	ID              string              `json:"id,omitempty"`
	TempID          string              `json:"clientTempId,omitempty"`
	ConversationKey string              `json:"conversationKey"`
	SenderID        string              `json:"senderId"`
	Content         string              `json:"content"`
	Type            catalog.MessageType `json:"type"`
	Timestamp       time.Time           `json:"timestamp"`
	Attachment      *Attachment         `json:"attachment,omitempty"`
	Status          catalog.Status      `json:"status"`
	ReadBy          []ReadReceipt       `json:"readBy,omitempty"`
	TotalRecipients int                 `json:"totalRecipients"`
	ReplyTo         *ReplySnapshot      `json:"replyTo,omitempty"`

	// Reactions maps an emoji to the set of user IDs that reacted with
	// it. Set semantics keep replayed reaction events from double
	// counting.
	Reactions map[string][]string `json:"reactions,omitempty"`

	// Edited and Hidden are set by message-edited and moderation-updated
	// events.
	EditedAt time.Time `json:"editedAt,omitempty"`
	Hidden   bool      `json:"hidden,omitempty"`

	// fileURLResolved marks that FileURL points at a server or
	// local-cache URI. Local bookkeeping only; never serialized.
	fileURLResolved bool
}

// ReadCount returns the number of distinct recipients that read the message.
func (m *Message) ReadCount() int {
	return len(m.ReadBy)
}

// ReactionCount returns the number of users behind one emoji.
func (m *Message) ReactionCount(emoji string) int {
	return len(m.Reactions[emoji])
}

// Key returns whichever of the authoritative and provisional IDs is known,
// preferring the authoritative one.
func (m *Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}

// hasRead reports whether the user already appears in the readBy set.
func (m *Message) hasRead(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
