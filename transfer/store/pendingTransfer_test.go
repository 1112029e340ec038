////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/pkg/errors"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

// splitChunks base64-encodes the payload and cuts it into n text chunks the
// way the sending side does.
func splitChunks(payload []byte, n int) []string {
	encoded := base64.StdEncoding.EncodeToString(payload)
	size := (len(encoded) + n - 1) / n

	chunks := make([]string, 0, n)
	for i := 0; i < len(encoded); i += size {
		end := i + size
		if end > len(encoded) {
			end = len(encoded)
		}
		chunks = append(chunks, encoded[i:end])
	}
	return chunks
}

// Tests that a stream delivered out of order reassembles to the exact
// original payload: ten chunks with the second and third swapped.
func TestPendingTransfer_OutOfOrderRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("chunked media payload "), 40)
	chunks := splitChunks(payload, 10)

	pt := NewPendingTransfer("M1", "clip.mp4", catalog.Video,
		len(chunks), int64(len(payload)))

	order := []int{0, 2, 1, 3, 4, 5, 6, 7, 8, 9}
	for n, i := range order {
		complete, err := pt.AddChunk(i, chunks[i], i == len(chunks)-1)
		if err != nil {
			t.Fatalf("AddChunk(%d) errored: %+v", i, err)
		}
		if wantDone := n == len(order)-1; complete != wantDone {
			t.Errorf("After chunk %d complete was %t; expected %t.",
				i, complete, wantDone)
		}
	}

	data, err := pt.Reassemble()
	if err != nil {
		t.Fatalf("Reassemble errored: %+v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Reassembled payload does not match the original.")
	}
}

// Tests that a redelivered chunk fills no second slot and cannot push the
// transfer to complete early.
func TestPendingTransfer_DuplicateChunkIgnored(t *testing.T) {
	chunks := splitChunks([]byte("0123456789abcdef"), 4)
	pt := NewPendingTransfer("M1", "f.bin", catalog.File, len(chunks), 16)

	for i := 0; i < 3; i++ {
		if _, err := pt.AddChunk(0, chunks[0], false); err != nil {
			t.Fatalf("AddChunk errored: %+v", err)
		}
	}
	if pt.NumReceived() != 1 {
		t.Errorf("NumReceived is %d after redelivery; expected 1.",
			pt.NumReceived())
	}
}

// Tests the placeholder path where the start event was missed entirely: the
// last chunk's index bounds the transfer and reassembly still round-trips.
func TestPendingTransfer_PlaceholderFromChunksOnly(t *testing.T) {
	payload := []byte("arrived before its start event")
	chunks := splitChunks(payload, 3)

	pt := NewPlaceholder("M1")

	complete, err := pt.AddChunk(1, chunks[1], false)
	if err != nil || complete {
		t.Fatalf("AddChunk(1) returned (%t, %+v).", complete, err)
	}
	complete, err = pt.AddChunk(2, chunks[2], true)
	if err != nil || complete {
		t.Fatalf("AddChunk(2) returned (%t, %+v).", complete, err)
	}
	complete, err = pt.AddChunk(0, chunks[0], false)
	if err != nil || !complete {
		t.Fatalf("AddChunk(0) returned (%t, %+v); expected completion.",
			complete, err)
	}

	data, err := pt.Reassemble()
	if err != nil {
		t.Fatalf("Reassemble errored: %+v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Reassembled payload does not match the original.")
	}
}

// Tests that a chunk buffered past the total a placeholder later learns is
// discarded from the received count: completion must not be reported while a
// slot inside the bound is still empty.
func TestPendingTransfer_StrayChunkBeyondTotal(t *testing.T) {
	payload := []byte("two chunk payload")
	chunks := splitChunks(payload, 2)

	pt := NewPlaceholder("M1")

	// A mislabeled chunk lands at index 3 before the real last chunk
	// bounds the transfer at two.
	if _, err := pt.AddChunk(3, "WFla", false); err != nil {
		t.Fatalf("AddChunk(3) errored: %+v", err)
	}
	complete, err := pt.AddChunk(1, chunks[1], true)
	if err != nil {
		t.Fatalf("AddChunk(1) errored: %+v", err)
	}
	if complete {
		t.Error("Transfer reported complete with chunk 0 still missing.")
	}
	if pt.NumReceived() != 1 {
		t.Errorf("NumReceived is %d after truncation; expected 1.",
			pt.NumReceived())
	}

	complete, err = pt.AddChunk(0, chunks[0], false)
	if err != nil || !complete {
		t.Fatalf("AddChunk(0) returned (%t, %+v); expected completion.",
			complete, err)
	}
	data, err := pt.Reassemble()
	if err != nil {
		t.Fatalf("Reassemble errored: %+v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Reassembled payload does not match the original.")
	}
}

// Tests that a late start event fills a placeholder's metadata in and
// trims its oversized buffer.
func TestPendingTransfer_LateAnnounce(t *testing.T) {
	pt := NewPlaceholder("M1")
	if _, err := pt.AddChunk(0, "YWJj", false); err != nil {
		t.Fatalf("AddChunk errored: %+v", err)
	}

	pt.Announce("late.png", catalog.Image, 1, 3)

	if pt.FileName() != "late.png" || pt.FileType() != catalog.Image {
		t.Errorf("Metadata not filled in: %q / %s.",
			pt.FileName(), pt.FileType())
	}

	// The already-buffered chunk now satisfies the learned total once the
	// last flag arrives.
	complete, err := pt.AddChunk(0, "YWJj", true)
	if err != nil || !complete {
		t.Errorf("AddChunk after Announce returned (%t, %+v); expected "+
			"completion.", complete, err)
	}
}

// Tests the chunk index bounds check.
func TestPendingTransfer_ChunkOutOfRange(t *testing.T) {
	pt := NewPendingTransfer("M1", "f.bin", catalog.File, 2, 8)

	if _, err := pt.AddChunk(2, "x", false); err == nil {
		t.Error("AddChunk accepted an index past the announced total.")
	}
	if _, err := pt.AddChunk(-1, "x", false); err == nil {
		t.Error("AddChunk accepted a negative index.")
	}
}

// Tests that Reassemble refuses an incomplete stream.
func TestPendingTransfer_ReassembleIncomplete(t *testing.T) {
	pt := NewPendingTransfer("M1", "f.bin", catalog.File, 3, 12)
	if _, err := pt.AddChunk(0, "YWJj", false); err != nil {
		t.Fatalf("AddChunk errored: %+v", err)
	}

	if _, err := pt.Reassemble(); err == nil {
		t.Error("Reassemble succeeded on an incomplete transfer.")
	}
}

// Tests that corrupt chunk text surfaces as a reassembly failure and the
// transfer is left intact rather than destroyed.
func TestPendingTransfer_ReassembleDecodeFailure(t *testing.T) {
	pt := NewPendingTransfer("M1", "f.bin", catalog.File, 1, 4)
	if _, err := pt.AddChunk(0, "not base64 !!!", true); err != nil {
		t.Fatalf("AddChunk errored: %+v", err)
	}

	_, err := pt.Reassemble()
	if !errors.Is(err, ErrReassemblyFailure) {
		t.Errorf("Reassemble returned %+v; expected ErrReassemblyFailure.", err)
	}

	// The buffer must survive the failure for a redelivered chunk.
	if pt.NumReceived() != 1 {
		t.Errorf("Transfer lost its chunk after a failed reassembly.")
	}
}
