////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package presence tracks the online roster and the typing indicators for
// one conversation. Both sets are rebuilt from channel events only; nothing
// here persists.
package presence

import (
	"sort"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

// Tracker holds the online-user set and the typing map for one conversation.
// The roster is replaced wholesale on a full roster event and mutated
// incrementally by join/leave events. Typing is keyed by user ID so several
// group members can type at once. The local user's own typing is never
// reflected back.
type Tracker struct {
	selfID string

	mux    sync.RWMutex
	online map[string]struct{}
	typing map[string]string // user ID -> display name
}

// NewTracker returns a Tracker that filters out events about selfID.
func NewTracker(selfID string) *Tracker {
	return &Tracker{
		selfID: selfID,
		online: make(map[string]struct{}),
		typing: make(map[string]string),
	}
}

// SetRoster replaces the online set with the given IDs. Typing entries for
// users no longer present are dropped with them.
func (tr *Tracker) SetRoster(ids []string) {
	tr.mux.Lock()
	defer tr.mux.Unlock()

	tr.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		tr.online[id] = struct{}{}
	}
	for id := range tr.typing {
		if _, ok := tr.online[id]; !ok {
			delete(tr.typing, id)
		}
	}

	jww.DEBUG.Printf("[PRESENCE] Roster replaced, %d online", len(ids))
}

// Join adds one user to the online set.
func (tr *Tracker) Join(id string) {
	tr.mux.Lock()
	defer tr.mux.Unlock()
	tr.online[id] = struct{}{}
}

// Leave removes one user from the online set and clears their typing state;
// a user who left cannot still be typing.
func (tr *Tracker) Leave(id string) {
	tr.mux.Lock()
	defer tr.mux.Unlock()
	delete(tr.online, id)
	delete(tr.typing, id)
}

// SetTyping records that the user is typing under the given display name.
// The local user is ignored.
func (tr *Tracker) SetTyping(id, name string) {
	if id == tr.selfID {
		return
	}

	tr.mux.Lock()
	defer tr.mux.Unlock()
	tr.typing[id] = name
}

// ClearTyping removes the user's typing state.
func (tr *Tracker) ClearTyping(id string) {
	tr.mux.Lock()
	defer tr.mux.Unlock()
	delete(tr.typing, id)
}

// IsOnline reports whether the user is in the online set.
func (tr *Tracker) IsOnline(id string) bool {
	tr.mux.RLock()
	defer tr.mux.RUnlock()
	_, ok := tr.online[id]
	return ok
}

// Online returns the sorted online user IDs.
func (tr *Tracker) Online() []string {
	tr.mux.RLock()
	defer tr.mux.RUnlock()

	ids := make([]string, 0, len(tr.online))
	for id := range tr.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// Typing returns the display names of everyone currently typing, sorted for
// stable rendering.
func (tr *Tracker) Typing() []string {
	tr.mux.RLock()
	defer tr.mux.RUnlock()

	names := make([]string, 0, len(tr.typing))
	for _, name := range tr.typing {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
