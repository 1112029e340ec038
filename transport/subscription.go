////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transport

import (
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

// Subscription is the scoped handle for one conversation screen's use of the
// event channel. Every listener registered through it, and every closer hung
// on it, is released exactly once by Close. Close does not wait for in-flight
// operations and does not tear down the underlying channel.
type Subscription struct {
	ch       Channel
	identity Identity
	room     string

	mux     sync.Mutex
	ids     []string
	closers []func()

	once sync.Once
}

// NewSubscription builds the handle for one screen's listeners on the given
// channel. Channel implementations return one from Connect.
func NewSubscription(ch Channel, identity Identity, room string) *Subscription {
	return &Subscription{ch: ch, identity: identity, room: room}
}

// Room returns the conversation room this subscription joined.
func (sub *Subscription) Room() string {
	return sub.room
}

// Identity returns the local user identity the channel connected with.
func (sub *Subscription) Identity() Identity {
	return sub.identity
}

// On registers the handler on the channel and records the listener ID so
// that Close can remove it.
func (sub *Subscription) On(event string, h Handler) {
	id := sub.ch.On(event, h)

	sub.mux.Lock()
	sub.ids = append(sub.ids, id)
	sub.mux.Unlock()
}

// AddCloser hangs a teardown hook on the subscription. Closers run first on
// Close, before listeners are removed, so a typing-stop emission still has a
// live channel to go out on.
func (sub *Subscription) AddCloser(f func()) {
	sub.mux.Lock()
	sub.closers = append(sub.closers, f)
	sub.mux.Unlock()
}

// Close runs the closers, removes every owned listener, and leaves the room.
// It is safe to call more than once; only the first call acts.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.mux.Lock()
		closers := sub.closers
		ids := sub.ids
		sub.closers, sub.ids = nil, nil
		sub.mux.Unlock()

		for _, f := range closers {
			f()
		}

		for _, id := range ids {
			sub.ch.Off(id)
		}

		err := sub.ch.Send(catalog.LeaveRoom,
			joinPayload{Room: sub.room, UserID: sub.identity.UserID})
		if err != nil {
			jww.DEBUG.Printf("[WS] Could not leave room %q on close: %+v",
				sub.room, err)
		}

		jww.INFO.Printf("[WS] Subscription for room %q closed, removed %d "+
			"listeners", sub.room, len(ids))
	})
}
