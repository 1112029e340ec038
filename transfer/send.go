////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package transfer moves media attachments over the event channel as
// streams of fixed-size base64 chunks, and reassembles incoming streams
// into the local media cache. Chunking exists because the channel imposes a
// practical message-size ceiling; indexed buffering on the receive side
// tolerates reordering without a resequencing layer.
package transfer

import (
	"encoding/base64"
	"os"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/ratelimit"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
	"github.com/Asadullah-Sadiq/GamerHive-sub000/transport"
)

// Error messages.
const (
	readFileErr   = "failed to read %s for transfer %s: %+v"
	startSendErr  = "failed to announce transfer %s: %+v"
	chunkSendErr  = "failed to send chunk %d/%d of transfer %s: %+v"
	emptyFileErr  = "refusing to transfer empty file %s"
	interruptWarn = "[FT] Transfer %s interrupted at chunk %d/%d"
)

// ErrTransferInterrupted is returned when the channel drops mid-stream. No
// partial file is considered delivered; the caller rolls the attachment
// back.
var ErrTransferInterrupted = errors.New("chunk transfer interrupted")

const (
	// DefaultChunkSize is the size of each base64 text chunk.
	DefaultChunkSize = 64 * 1024

	// DefaultChunkRate is the chunk emissions per second. Spacing the
	// chunks tens of milliseconds apart keeps one large file from
	// saturating the channel for everyone else's events.
	DefaultChunkRate = 25
)

// Sender splits files into chunk streams on the event channel.
type Sender struct {
	ch        transport.Channel
	chunkSize int
	rl        ratelimit.Limiter
}

// NewSender returns a Sender using the default chunk size and pacing.
func NewSender(ch transport.Channel) *Sender {
	return NewSenderParams(ch, DefaultChunkSize, DefaultChunkRate)
}

// NewSenderParams returns a Sender with explicit chunk size (base64 text
// bytes) and pacing (chunks per second).
func NewSenderParams(ch transport.Channel, chunkSize, chunkRate int) *Sender {
	return &Sender{
		ch:        ch,
		chunkSize: chunkSize,
		rl:        ratelimit.New(chunkRate, ratelimit.WithoutSlack),
	}
}

// SendFile streams the file at localPath as messageID's attachment: one
// start message, then every chunk in strictly increasing index order with
// IsLastChunk on the final one. If the channel becomes unavailable
// mid-stream, ErrTransferInterrupted is returned and nothing is considered
// delivered.
func (s *Sender) SendFile(messageID string, fileType catalog.MessageType,
	localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Errorf(readFileErr, localPath, messageID, err)
	}
	if len(data) == 0 {
		return errors.Errorf(emptyFileErr, localPath)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	totalChunks := (len(encoded) + s.chunkSize - 1) / s.chunkSize

	start := StartMessage{
		MessageID:   messageID,
		FileName:    fileInfoName(localPath),
		FileType:    fileType,
		TotalChunks: totalChunks,
		FileSize:    int64(len(data)),
	}
	if err = s.ch.Send(catalog.FileTransferStart, start); err != nil {
		if errors.Is(err, transport.ErrTransportUnavailable) {
			return ErrTransferInterrupted
		}
		return errors.Errorf(startSendErr, messageID, err)
	}

	jww.INFO.Printf("[FT] Sending %s as %d chunks for message %s",
		localPath, totalChunks, messageID)

	for i := 0; i < totalChunks; i++ {
		s.rl.Take()

		end := (i + 1) * s.chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}

		chunk := ChunkMessage{
			MessageID:   messageID,
			ChunkIndex:  i,
			Chunk:       encoded[i*s.chunkSize : end],
			IsLastChunk: i == totalChunks-1,
		}
		if err = s.ch.Send(catalog.FileChunk, chunk); err != nil {
			jww.WARN.Printf(interruptWarn, messageID, i, totalChunks)
			if errors.Is(err, transport.ErrTransportUnavailable) {
				return ErrTransferInterrupted
			}
			return errors.Errorf(chunkSendErr, i, totalChunks, messageID, err)
		}
	}

	return nil
}

func fileInfoName(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fi.Name()
}
