////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package transport wraps the two channels the messaging core talks over: a
// persistent bidirectional websocket used for low-latency push of message,
// presence, and transfer events, and a request/response REST client used as
// a fallback when the websocket is down.
//
// The adapter performs no retry or backoff of its own. Send fails fast with
// ErrTransportUnavailable while disconnected; callers poll AwaitConnected to
// decide when to resume event-channel use and degrade to the REST client in
// the meantime.
package transport

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrTransportUnavailable is returned by Send when the event channel is not
// connected. The caller is expected to fall back to the REST client.
var ErrTransportUnavailable = errors.New("event channel unavailable")

// Handler receives the raw payload of one event. Handlers run to completion
// on the read loop; they must not block.
type Handler func(payload json.RawMessage)

// Identity names the local user to the server on connect.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Channel is the event-channel contract consumed by the chat, transfer, and
// presence packages. Send is fire-and-forget: confirmation of a submission
// arrives asynchronously as a MessageAck event carrying the server-assigned
// ID.
type Channel interface {
	// Connect establishes the channel and joins the given conversation
	// room. The returned Subscription owns every listener registered
	// through it and tears all of them down on Close.
	Connect(identity Identity, room string) (*Subscription, error)

	// Send emits one event. It fails fast with ErrTransportUnavailable
	// when the channel is not connected.
	Send(event string, payload any) error

	// On registers a handler for the named event and returns the listener
	// ID used to remove it.
	On(event string, h Handler) string

	// Off removes a single listener by ID.
	Off(id string)

	IsConnected() bool
	State() State
	Disconnect()
}

// AwaitConnected polls the channel state every interval, up to attempts
// times, and reports whether the channel became connected. This is the only
// reconnection aid the adapter offers.
func AwaitConnected(ch Channel, attempts int, interval time.Duration) bool {
	for i := 0; i < attempts; i++ {
		if ch.IsConnected() {
			return true
		}
		time.Sleep(interval)
	}
	return ch.IsConnected()
}
