////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package mediacache is the on-disk cache of reassembled media payloads.
// Entries are keyed by message ID so repeated writes for the same message
// are idempotent; durability across restarts comes from re-download on
// demand, not from a sync manifest.
package mediacache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

// Error messages.
const (
	mkdirErr     = "failed to create media cache directory %s: %+v"
	writeFileErr = "failed to write media payload for message %s: %+v"
)

// Cache writes each message's media under its own subdirectory of the cache
// root.
type Cache struct {
	dir string
}

// New opens (creating if needed) a media cache rooted at dir.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Errorf(mkdirErr, dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Has reports whether a payload for the message is already cached and, if
// so, where. Callers check this before re-downloading.
func (c *Cache) Has(messageID string) (string, bool) {
	entries, err := os.ReadDir(filepath.Join(c.dir, messageID))
	if err != nil || len(entries) == 0 {
		return "", false
	}
	return filepath.Join(c.dir, messageID, entries[0].Name()), true
}

// Write stores a reassembled payload for the message and returns its path.
// The file name is {mediaType}_{timestamp}.{ext}. Writing twice for one
// message ID leaves a single valid entry.
func (c *Cache) Write(messageID string, mediaType catalog.MessageType,
	ts time.Time, data []byte) (string, error) {
	if existing, ok := c.Has(messageID); ok {
		jww.DEBUG.Printf("[CACHE] Payload for message %s already cached "+
			"at %s", messageID, existing)
		return existing, nil
	}

	sub := filepath.Join(c.dir, messageID)
	if err := os.MkdirAll(sub, 0700); err != nil {
		return "", errors.Errorf(mkdirErr, sub, err)
	}

	name := fmt.Sprintf("%s_%d.%s", mediaType, ts.UnixMilli(), mediaType.Ext())
	path := filepath.Join(sub, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", errors.Errorf(writeFileErr, messageID, err)
	}

	jww.INFO.Printf("[CACHE] Wrote %d bytes for message %s to %s",
		len(data), messageID, path)

	return path, nil
}

// URI returns the file URI for a cached path, the form stored into a
// message's resolved FileURL.
func (c *Cache) URI(path string) string {
	return "file://" + path
}
