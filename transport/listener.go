////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transport

import (
	"encoding/json"
	"strconv"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

type listenerRecord struct {
	h  Handler
	id string
}

// ListenerMap routes incoming events to the handlers registered for their
// event name. Screens rewire their handlers wholesale on every mount, so
// registration returns an ID that the Subscription collects and removes
// again on teardown.
type ListenerMap struct {
	listeners map[string][]*listenerRecord
	lastID    int
	mux       sync.RWMutex
}

func NewListenerMap() *ListenerMap {
	return &ListenerMap{
		listeners: make(map[string][]*listenerRecord),
	}
}

// Register adds a handler for the named event. The returned ID is unique
// across the map; keep it around to be able to remove the listener later.
func (lm *ListenerMap) Register(event string, h Handler) string {
	lm.mux.Lock()
	defer lm.mux.Unlock()

	lm.lastID++
	rec := &listenerRecord{h: h, id: strconv.Itoa(lm.lastID)}
	lm.listeners[event] = append(lm.listeners[event], rec)

	return rec.id
}

// Unregister removes the listener with the given ID. IDs are unique, so the
// scan can terminate on the first match.
func (lm *ListenerMap) Unregister(id string) {
	lm.mux.Lock()
	defer lm.mux.Unlock()

	for event, records := range lm.listeners {
		for i, rec := range records {
			if rec.id == id {
				lm.listeners[event] = append(records[:i], records[i+1:]...)
				return
			}
		}
	}
}

// Speak delivers the payload to every handler registered for the event. A
// panicking handler is logged and skipped; a malformed event must never take
// down the read loop or unsubscribe the conversation.
func (lm *ListenerMap) Speak(event string, payload json.RawMessage) {
	lm.mux.RLock()
	records := make([]*listenerRecord, len(lm.listeners[event]))
	copy(records, lm.listeners[event])
	lm.mux.RUnlock()

	if len(records) == 0 {
		jww.TRACE.Printf("[WS] No listeners for event %q", event)
		return
	}

	for _, rec := range records {
		hear(event, rec, payload)
	}
}

func hear(event string, rec *listenerRecord, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			jww.ERROR.Printf("[WS] Listener %s panicked on event %q: %+v",
				rec.id, event, r)
		}
	}()

	rec.h(payload)
}
