// Package catalog holds the wire-level event names and payload type
// constants shared between the transport, chat, transfer, and presence
// packages. It contains no logic.
package catalog

// Event names pushed by the server over the event channel.
const (
	// OnlineUsers carries the full roster of online user IDs for a room.
	// It replaces any previously known roster wholesale.
	OnlineUsers = "online-users"

	// UserJoined and UserLeft mutate the roster incrementally.
	UserJoined = "user-joined"
	UserLeft   = "user-left"

	// Typing and StopTyping carry {userId, username} for typing
	// indicators. A user leaving implies StopTyping.
	Typing     = "typing"
	StopTyping = "stop-typing"

	// NewMessage is the authoritative broadcast of an accepted message,
	// echoed to every participant including the sender.
	NewMessage = "new-message"

	// MessageAck correlates a prior submission from this client with its
	// server-assigned message ID.
	MessageAck = "message-ack"

	// FileTransferStart announces an incoming chunked transfer and its
	// total chunk count. FileChunk carries one indexed chunk.
	FileTransferStart    = "file-transfer-start"
	FileChunk            = "file-chunk"
	FileTransferComplete = "file-transfer-complete"

	// MessageDeleted carries a single ID, a bulk ID list, or a cleared
	// flag, each scoped to "me" or "everyone".
	MessageDeleted    = "message-deleted"
	MessageEdited     = "message-edited"
	ReactionUpdated   = "reaction-updated"
	ModerationUpdated = "moderation-updated"

	// ReadReceiptBatch carries per-message readBy aggregates.
	// MessageStatus carries a direct per-message status update.
	ReadReceiptBatch = "read-receipt-batch"
	MessageStatus    = "message-status"
)

// Event names emitted by the client.
const (
	SendMessage = "send-message"
	JoinRoom    = "join-room"
	LeaveRoom   = "leave-room"
	MarkRead    = "mark-read"
)

// Deletion scopes.
const (
	ScopeMe       = "me"
	ScopeEveryone = "everyone"
)
