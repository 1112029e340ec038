////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"time"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

// Payload shapes of the conversation events the manager consumes and emits.
// The REST fallback mirrors these shapes, so either path feeds the same
// reconciliation code.

type ackPayload struct {
	ClientTempID string `json:"clientTempId"`
	MessageID    string `json:"messageId"`
}

type rosterPayload struct {
	Users []string `json:"users"`
}

type memberPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type deletedPayload struct {
	MessageID  string   `json:"messageId,omitempty"`
	MessageIDs []string `json:"messageIds,omitempty"`
	Cleared    bool     `json:"cleared,omitempty"`
	Scope      string   `json:"scope"`
}

// ids flattens the single/bulk forms into one list.
func (p deletedPayload) ids() []string {
	if p.MessageID != "" {
		return append([]string{p.MessageID}, p.MessageIDs...)
	}
	return p.MessageIDs
}

type editedPayload struct {
	MessageID string    `json:"messageId"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"editedAt"`
}

type reactionPayload struct {
	MessageID string   `json:"messageId"`
	Emoji     string   `json:"emoji"`
	UserIDs   []string `json:"userIds"`
}

type moderationPayload struct {
	MessageID string `json:"messageId"`
	Hidden    bool   `json:"hidden"`
}

type statusPayload struct {
	MessageID string         `json:"messageId"`
	Status    catalog.Status `json:"status"`
}

type receiptBatchPayload struct {
	Receipts []struct {
		MessageID string        `json:"messageId"`
		ReadBy    []ReadReceipt `json:"readBy"`
	} `json:"receipts"`
}

type markReadPayload struct {
	ConversationKey string   `json:"conversationKey"`
	MessageIDs      []string `json:"messageIds"`
}
