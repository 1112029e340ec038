////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package receipts

import (
	"sort"
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

// DefaultDebounce is how long the marker waits for more IDs before issuing
// one batched mark-read request.
const DefaultDebounce = 500 * time.Millisecond

// SendFunc issues the batched mark-read request for the collected IDs.
type SendFunc func(ids []string)

// Marker debounces outgoing read receipts. As messages stream in, each
// unread, not-self-authored ID is queued; the batch goes out once the queue
// has been quiet for the debounce window, so a burst of arrivals costs one
// request instead of one per message.
type Marker struct {
	send  SendFunc
	delay time.Duration

	mux     sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	closed  bool
}

// NewMarker returns a Marker that calls send with each coalesced batch.
func NewMarker(delay time.Duration, send SendFunc) *Marker {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Marker{
		send:    send,
		delay:   delay,
		pending: make(map[string]struct{}),
	}
}

// Mark queues message IDs for the next batch and restarts the debounce
// window. Duplicate IDs collapse into one.
func (m *Marker) Mark(ids ...string) {
	if len(ids) == 0 {
		return
	}

	m.mux.Lock()
	defer m.mux.Unlock()

	if m.closed {
		return
	}

	for _, id := range ids {
		m.pending[id] = struct{}{}
	}

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.delay, m.flush)
}

// flush drains the pending set and issues one batched request.
func (m *Marker) flush() {
	m.mux.Lock()
	if len(m.pending) == 0 {
		m.mux.Unlock()
		return
	}

	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	m.pending = make(map[string]struct{})
	send := m.send
	m.mux.Unlock()

	sort.Strings(ids)
	jww.DEBUG.Printf("[RECEIPTS] Marking %d messages read", len(ids))
	send(ids)
}

// Close stops the timer and flushes whatever is still queued so a screen
// teardown does not lose receipts.
func (m *Marker) Close() {
	m.mux.Lock()
	if m.closed {
		m.mux.Unlock()
		return
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.mux.Unlock()

	m.flush()
}
