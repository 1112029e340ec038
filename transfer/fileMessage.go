////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transfer

import "github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"

// StartMessage announces a chunked transfer before its first chunk. The
// message ID is the upload job's ID: the sender's provisional message ID
// until the acknowledgment lands, the authoritative one on the receive side.
type StartMessage struct {
	MessageID   string              `json:"messageId"`
	FileName    string              `json:"fileName"`
	FileType    catalog.MessageType `json:"fileType"`
	TotalChunks int                 `json:"totalChunks"`
	FileSize    int64               `json:"fileSize"`
}

// ChunkMessage carries one base64 chunk. ChunkIndex places it; chunks are
// buffered by index because arrival order is not guaranteed.
type ChunkMessage struct {
	MessageID   string `json:"messageId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Chunk       string `json:"chunk"`
	IsLastChunk bool   `json:"isLastChunk"`
}

// CompleteMessage confirms the receive side assembled the full payload.
type CompleteMessage struct {
	MessageID string `json:"messageId"`
	FileURL   string `json:"fileUrl,omitempty"`
}
