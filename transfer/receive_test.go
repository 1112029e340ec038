////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transfer

import (
	"bytes"
	"encoding/base64"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/mediacache"
)

// recordingTimeline captures the updates a completed transfer pushes onto
// the owning message.
type recordingTimeline struct {
	urls     map[string]string
	statuses map[string]catalog.Status
}

func newRecordingTimeline() *recordingTimeline {
	return &recordingTimeline{
		urls:     make(map[string]string),
		statuses: make(map[string]catalog.Status),
	}
}

func (rt *recordingTimeline) SetResolvedFileURL(key, fileURL string) bool {
	rt.urls[key] = fileURL
	return true
}

func (rt *recordingTimeline) ApplyStatus(id string, status catalog.Status) bool {
	rt.statuses[id] = status
	return true
}

func newTestReceiver(t *testing.T) (*Receiver, *mediacache.Cache,
	*recordingTimeline) {
	t.Helper()

	cache, err := mediacache.New(t.TempDir())
	require.NoError(t, err)

	rt := newRecordingTimeline()
	return NewReceiver(cache, rt), cache, rt
}

// chunksOf cuts the base64 encoding of the payload into n pieces.
func chunksOf(payload []byte, n int) []string {
	encoded := base64.StdEncoding.EncodeToString(payload)
	size := (len(encoded) + n - 1) / n

	var out []string
	for i := 0; i < len(encoded); i += size {
		end := i + size
		if end > len(encoded) {
			end = len(encoded)
		}
		out = append(out, encoded[i:end])
	}
	return out
}

// Tests the receive path end to end with an out-of-order stream: the
// payload lands in the cache byte identical and the owning message is
// resolved to the cached URI and moved out of Sending.
func TestReceiver_OutOfOrderStream(t *testing.T) {
	r, cache, rt := newTestReceiver(t)

	payload := bytes.Repeat([]byte("incoming video "), 30)
	chunks := chunksOf(payload, 4)

	r.HandleStart(StartMessage{MessageID: "M1", FileName: "v.mp4",
		FileType: catalog.Video, TotalChunks: len(chunks),
		FileSize: int64(len(payload))})

	order := []int{1, 0, 3, 2}
	for _, i := range order {
		r.HandleChunk(ChunkMessage{MessageID: "M1", ChunkIndex: i,
			Chunk: chunks[i], IsLastChunk: i == len(chunks)-1})
	}

	path, ok := cache.Has("M1")
	require.True(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	require.Equal(t, cache.URI(path), rt.urls["M1"])
	require.Equal(t, catalog.Sent, rt.statuses["M1"])
}

// Tests that an already-cached payload short-circuits the transfer: the
// start event resolves the message immediately and the chunks are never
// needed.
func TestReceiver_CachedPayloadSkipsTransfer(t *testing.T) {
	r, cache, rt := newTestReceiver(t)

	path, err := cache.Write("M1", catalog.Image, time.Now(), []byte("cached"))
	require.NoError(t, err)

	r.HandleStart(StartMessage{MessageID: "M1", FileName: "a.png",
		FileType: catalog.Image, TotalChunks: 9, FileSize: 6})

	require.Equal(t, cache.URI(path), rt.urls["M1"])
	require.Equal(t, catalog.Sent, rt.statuses["M1"])
}

// Tests the missed-start path: chunks arriving with no announcement still
// complete once the last chunk bounds the stream.
func TestReceiver_MissedStart(t *testing.T) {
	r, cache, rt := newTestReceiver(t)

	payload := []byte("no start event for this one")
	chunks := chunksOf(payload, 2)

	r.HandleChunk(ChunkMessage{MessageID: "M1", ChunkIndex: 0,
		Chunk: chunks[0]})
	r.HandleChunk(ChunkMessage{MessageID: "M1", ChunkIndex: 1,
		Chunk: chunks[1], IsLastChunk: true})

	path, ok := cache.Has("M1")
	require.True(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, data)
	require.Equal(t, catalog.Sent, rt.statuses["M1"])
}

// Tests that a corrupt stream leaves the message unresolved instead of
// caching garbage.
func TestReceiver_CorruptStreamStaysPending(t *testing.T) {
	r, cache, rt := newTestReceiver(t)

	r.HandleStart(StartMessage{MessageID: "M1", FileName: "x.bin",
		FileType: catalog.File, TotalChunks: 1, FileSize: 4})
	r.HandleChunk(ChunkMessage{MessageID: "M1", ChunkIndex: 0,
		Chunk: "*** not base64 ***", IsLastChunk: true})

	_, ok := cache.Has("M1")
	require.False(t, ok)
	require.Empty(t, rt.urls)
	require.Empty(t, rt.statuses)
}
