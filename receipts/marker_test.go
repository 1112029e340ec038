////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package receipts

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Tests that a burst of Mark calls coalesces into a single batched send with
// duplicates collapsed.
func TestMarker_Coalesces(t *testing.T) {
	var mux sync.Mutex
	var batches [][]string
	m := NewMarker(20*time.Millisecond, func(ids []string) {
		mux.Lock()
		batches = append(batches, ids)
		mux.Unlock()
	})

	m.Mark("M1")
	m.Mark("M2", "M3")
	m.Mark("M2")

	require.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return len(batches) == 1
	}, time.Second, 5*time.Millisecond)

	mux.Lock()
	defer mux.Unlock()
	require.Equal(t, [][]string{{"M1", "M2", "M3"}}, batches)
}

// Tests that each Mark restarts the debounce window and that nothing is sent
// while marks keep arriving inside it.
func TestMarker_Debounces(t *testing.T) {
	var mux sync.Mutex
	sent := 0
	m := NewMarker(50*time.Millisecond, func([]string) {
		mux.Lock()
		sent++
		mux.Unlock()
	})

	for i := 0; i < 5; i++ {
		m.Mark("M1")
		time.Sleep(10 * time.Millisecond)
	}

	mux.Lock()
	require.Zero(t, sent)
	mux.Unlock()

	require.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return sent == 1
	}, time.Second, 5*time.Millisecond)
}

// Tests that Close flushes the queue immediately and that later marks are
// dropped.
func TestMarker_CloseFlushes(t *testing.T) {
	var mux sync.Mutex
	var batches [][]string
	m := NewMarker(time.Hour, func(ids []string) {
		mux.Lock()
		batches = append(batches, ids)
		mux.Unlock()
	})

	m.Mark("M1", "M2")
	m.Close()

	mux.Lock()
	require.Equal(t, [][]string{{"M1", "M2"}}, batches)
	mux.Unlock()

	m.Mark("M3")
	m.Close()

	mux.Lock()
	require.Len(t, batches, 1)
	mux.Unlock()
}
