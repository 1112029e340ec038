////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transfer

import (
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/mediacache"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/transfer/store"
)

// TimelineUpdater is the slice of the message store the receiver needs to
// reflect a completed transfer onto the owning message.
type TimelineUpdater interface {
	SetResolvedFileURL(key, fileURL string) bool
	ApplyStatus(id string, status catalog.Status) bool
}

// Receiver buffers incoming chunk streams and writes completed payloads to
// the media cache. Reassembly failures are deliberately non-fatal: the
// condition is logged, the pending transfer stays, and the owning message
// remains in Sending with no automatic retry.
type Receiver struct {
	received *store.Received
	cache    *mediacache.Cache
	timeline TimelineUpdater
}

// NewReceiver returns a Receiver writing into the given cache and updating
// the given timeline.
func NewReceiver(cache *mediacache.Cache, timeline TimelineUpdater) *Receiver {
	return &Receiver{
		received: store.NewReceived(),
		cache:    cache,
		timeline: timeline,
	}
}

// HandleStart processes a file-transfer-start event. If the payload is
// already cached for this message, the transfer is not re-downloaded; the
// cached copy resolves the message immediately.
func (r *Receiver) HandleStart(start StartMessage) {
	if path, ok := r.cache.Has(start.MessageID); ok {
		jww.INFO.Printf("[FT] Message %s already cached; skipping transfer",
			start.MessageID)
		r.resolve(start.MessageID, path)
		return
	}

	r.received.Start(start.MessageID, start.FileName, start.FileType,
		start.TotalChunks, start.FileSize)
}

// HandleChunk buffers one chunk and, when the stream is complete,
// reassembles and caches the payload and resolves the owning message.
func (r *Receiver) HandleChunk(chunk ChunkMessage) {
	pt := r.received.Get(chunk.MessageID)

	complete, err := pt.AddChunk(chunk.ChunkIndex, chunk.Chunk,
		chunk.IsLastChunk)
	if err != nil {
		jww.ERROR.Printf("[FT] Dropping chunk for message %s: %+v",
			chunk.MessageID, err)
		return
	}
	if !complete {
		return
	}

	data, err := pt.Reassemble()
	if err != nil {
		// Stuck, not fatal: the message stays in Sending and the
		// transfer is kept for a redelivered chunk to complete it.
		jww.ERROR.Printf("[FT] Reassembly failed for message %s: %+v",
			chunk.MessageID, err)
		return
	}

	path, err := r.cache.Write(pt.MessageID(), pt.FileType(), time.Now(), data)
	if err != nil {
		jww.ERROR.Printf("[FT] Could not cache payload for message %s: %+v",
			pt.MessageID(), err)
		return
	}

	r.received.Remove(pt.MessageID())
	r.resolve(pt.MessageID(), path)

	jww.INFO.Printf("[FT] Completed transfer for message %s (%d bytes)",
		pt.MessageID(), len(data))
}

// resolve points the owning message at the cached payload and moves it out
// of Sending.
func (r *Receiver) resolve(messageID, path string) {
	r.timeline.SetResolvedFileURL(messageID, r.cache.URI(path))
	r.timeline.ApplyStatus(messageID, catalog.Sent)
}

// Close abandons every in-flight transfer. Called on conversation teardown;
// nothing is resumed later.
func (r *Receiver) Close() {
	if n := r.received.Clear(); n > 0 {
		jww.INFO.Printf("[FT] Abandoned %d in-flight transfers on teardown", n)
	}
}
