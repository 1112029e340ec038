////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package store buffers in-flight chunked transfers on the receiving side.
package store

import (
	"encoding/base64"
	"strings"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

// Error messages.
const (
	chunkOutOfRangeErr = "chunk index %d out of range of max %d for transfer %s"
	incompleteErr      = "transfer %s incomplete: %d of %d chunks received"
)

// ErrReassemblyFailure is returned when a complete chunk stream does not
// decode. The owning message is left stuck in Sending; there is no
// automatic retry.
var ErrReassemblyFailure = errors.New("failed to decode reassembled payload")

// Size of the chunk buffer allocated when the start event was missed and
// a transfer has to be created defensively off its first chunk. Oversized on
// purpose; the real count is learned from the last chunk.
const placeholderChunks = 4096

// PendingTransfer buffers the indexed chunks of one incoming transfer until
// reassembly. Chunks may arrive in any order, so they are stored by index,
// never appended; absence is an empty slot, and a duplicate delivery of a
// filled slot does not double count.
//
// A PendingTransfer is destroyed on successful reassembly or on conversation
// teardown, never on error: a failed reassembly leaves it (and the owning
// message) stuck rather than crashing the store.
type PendingTransfer struct {
	messageID   string
	fileName    string
	fileType    catalog.MessageType
	fileSize    int64
	totalChunks int

	chunks      []string
	received    int
	sawLast     bool
	placeholder bool

	mux sync.Mutex
}

// NewPendingTransfer allocates the buffer for a transfer announced by a
// start event.
func NewPendingTransfer(messageID, fileName string, fileType catalog.MessageType,
	totalChunks int, fileSize int64) *PendingTransfer {
	return &PendingTransfer{
		messageID:   messageID,
		fileName:    fileName,
		fileType:    fileType,
		fileSize:    fileSize,
		totalChunks: totalChunks,
		chunks:      make([]string, totalChunks),
	}
}

// NewPlaceholder allocates a transfer for a chunk whose start event was
// missed. The buffer is oversized; the true chunk count is learned when the
// last chunk arrives or a late start event calls Announce.
func NewPlaceholder(messageID string) *PendingTransfer {
	jww.WARN.Printf("[FT] No transfer for message %s; start event missed, "+
		"creating placeholder", messageID)
	return &PendingTransfer{
		messageID:   messageID,
		fileType:    catalog.File,
		chunks:      make([]string, placeholderChunks),
		placeholder: true,
	}
}

// Announce fills in the metadata of a late start event on a placeholder.
func (pt *PendingTransfer) Announce(fileName string, fileType catalog.MessageType,
	totalChunks int, fileSize int64) {
	pt.mux.Lock()
	defer pt.mux.Unlock()

	if !pt.placeholder {
		return
	}

	pt.fileName = fileName
	pt.fileType = fileType
	pt.fileSize = fileSize
	pt.setTotal(totalChunks)
}

// AddChunk stores one chunk at its index and reports whether the transfer is
// now complete: the last chunk has been observed and every slot up to the
// total is filled. Redelivered chunks are ignored.
func (pt *PendingTransfer) AddChunk(index int, data string, isLast bool) (
	complete bool, err error) {
	pt.mux.Lock()
	defer pt.mux.Unlock()

	if index < 0 || index >= len(pt.chunks) {
		return false, errors.Errorf(
			chunkOutOfRangeErr, index, len(pt.chunks)-1, pt.messageID)
	}

	if pt.chunks[index] == "" {
		pt.chunks[index] = data
		pt.received++
	}

	if isLast {
		pt.sawLast = true
		if pt.totalChunks == 0 {
			// Placeholder that never saw a start event; the last
			// chunk's index bounds the transfer.
			pt.setTotal(index + 1)
		}
	}

	return pt.sawLast && pt.totalChunks > 0 &&
		pt.received >= pt.totalChunks, nil
}

// setTotal records the chunk count on a placeholder. Callers hold the mutex.
func (pt *PendingTransfer) setTotal(total int) {
	if total <= 0 || !pt.placeholder {
		return
	}
	pt.totalChunks = total
	pt.placeholder = false
	if total < len(pt.chunks) {
		// Stray chunks buffered past the learned bound are discarded
		// and must stop counting toward completion.
		for _, c := range pt.chunks[total:] {
			if c != "" {
				pt.received--
			}
		}
		pt.chunks = pt.chunks[:total]
	}
}

// Reassemble concatenates the chunks in index order, skipping any empty
// slots defensively, and decodes the base64 text back to the original
// bytes. The transfer itself is left intact; the owner removes it only
// after a successful decode.
func (pt *PendingTransfer) Reassemble() ([]byte, error) {
	pt.mux.Lock()
	defer pt.mux.Unlock()

	if !pt.sawLast || pt.received < pt.totalChunks {
		return nil, errors.Errorf(
			incompleteErr, pt.messageID, pt.received, pt.totalChunks)
	}

	var sb strings.Builder
	for _, chunk := range pt.chunks {
		if chunk == "" {
			continue
		}
		sb.WriteString(chunk)
	}

	data, err := base64.StdEncoding.DecodeString(sb.String())
	if err != nil {
		return nil, errors.Wrapf(ErrReassemblyFailure,
			"transfer %s: %v", pt.messageID, err)
	}

	return data, nil
}

// MessageID returns the owning message's ID.
func (pt *PendingTransfer) MessageID() string { return pt.messageID }

// FileName returns the user-given file name from the start event.
func (pt *PendingTransfer) FileName() string { return pt.fileName }

// FileType returns the media type of the transfer.
func (pt *PendingTransfer) FileType() catalog.MessageType { return pt.fileType }

// FileSize returns the decoded size announced by the start event.
func (pt *PendingTransfer) FileSize() int64 { return pt.fileSize }

// NumReceived returns how many distinct chunks have arrived.
func (pt *PendingTransfer) NumReceived() int {
	pt.mux.Lock()
	defer pt.mux.Unlock()
	return pt.received
}
