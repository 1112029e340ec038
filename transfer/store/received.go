////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"sync"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

// Received tracks every in-flight incoming transfer for one conversation,
// keyed by the owning message ID and never by arrival order.
type Received struct {
	transfers map[string]*PendingTransfer
	mux       sync.Mutex
}

// NewReceived returns an empty transfer map.
func NewReceived() *Received {
	return &Received{
		transfers: make(map[string]*PendingTransfer),
	}
}

// Start registers the transfer announced by a start event. A redelivered
// start event for a known transfer only fills placeholder metadata in.
func (r *Received) Start(messageID, fileName string, fileType catalog.MessageType,
	totalChunks int, fileSize int64) *PendingTransfer {
	r.mux.Lock()
	defer r.mux.Unlock()

	if pt, ok := r.transfers[messageID]; ok {
		pt.Announce(fileName, fileType, totalChunks, fileSize)
		return pt
	}

	pt := NewPendingTransfer(messageID, fileName, fileType, totalChunks, fileSize)
	r.transfers[messageID] = pt

	return pt
}

// Get returns the transfer for the message, creating a placeholder when the
// start event was missed.
func (r *Received) Get(messageID string) *PendingTransfer {
	r.mux.Lock()
	defer r.mux.Unlock()

	if pt, ok := r.transfers[messageID]; ok {
		return pt
	}

	pt := NewPlaceholder(messageID)
	r.transfers[messageID] = pt

	return pt
}

// Remove drops a completed transfer.
func (r *Received) Remove(messageID string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	delete(r.transfers, messageID)
}

// Clear drops every in-flight transfer. Called on conversation teardown;
// abandoned transfers are not resumed.
func (r *Received) Clear() int {
	r.mux.Lock()
	defer r.mux.Unlock()

	n := len(r.transfers)
	r.transfers = make(map[string]*PendingTransfer)

	return n
}

// Len returns the number of in-flight transfers.
func (r *Received) Len() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.transfers)
}
