////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

var testUpgrader = websocket.Upgrader{}

// newEchoServer starts a websocket server that echoes every envelope back to
// the sender. Returns the ws:// URL.
func newEchoServer(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			conn, err := testUpgrader.Upgrade(w, r, nil)
			if err != nil {
				t.Errorf("Upgrade failed: %+v", err)
				return
			}
			defer conn.Close()
			for {
				mt, frame, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if err = conn.WriteMessage(mt, frame); err != nil {
					return
				}
			}
		}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// Tests that Connect reaches the Connected state, that Send round-trips an
// envelope through the echo server to a registered listener, and that the
// join-room envelope goes out first.
func TestSocket_ConnectSendReceive(t *testing.T) {
	s := NewSocket(newEchoServer(t))

	joined := make(chan json.RawMessage, 1)
	heard := make(chan json.RawMessage, 1)
	s.On(catalog.JoinRoom, func(p json.RawMessage) { joined <- p })
	s.On(catalog.Typing, func(p json.RawMessage) { heard <- p })

	sub, err := s.Connect(Identity{UserID: "u1", Username: "ada"}, "room-9")
	require.NoError(t, err)
	defer s.Disconnect()
	defer sub.Close()

	require.True(t, s.IsConnected())
	require.Equal(t, Connected, s.State())

	// The echo server reflects our own join emission.
	select {
	case p := <-joined:
		var jp joinPayload
		require.NoError(t, json.Unmarshal(p, &jp))
		require.Equal(t, "room-9", jp.Room)
		require.Equal(t, "u1", jp.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for echoed join-room event.")
	}

	require.NoError(t, s.Send(catalog.Typing,
		map[string]string{"userId": "u1"}))

	select {
	case p := <-heard:
		require.Contains(t, string(p), "u1")
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for echoed typing event.")
	}
}

// Tests that Send fails fast with ErrTransportUnavailable while the socket
// has never connected.
func TestSocket_SendWhileDisconnected(t *testing.T) {
	s := NewSocket("ws://127.0.0.1:1")

	err := s.Send(catalog.SendMessage, map[string]string{"content": "hi"})
	require.ErrorIs(t, err, ErrTransportUnavailable)
}

// Tests that Disconnect flips the state and that AwaitConnected gives up
// after its bounded attempts.
func TestSocket_DisconnectAndAwait(t *testing.T) {
	s := NewSocket(newEchoServer(t))

	sub, err := s.Connect(Identity{UserID: "u1"}, "room-1")
	require.NoError(t, err)
	sub.Close()
	s.Disconnect()

	require.Equal(t, Disconnected, s.State())
	require.False(t, AwaitConnected(s, 3, time.Millisecond))
}

// Tests that Subscription.Close removes its listeners and runs closers
// exactly once even when called repeatedly.
func TestSubscription_CloseIdempotent(t *testing.T) {
	s := NewSocket(newEchoServer(t))

	sub, err := s.Connect(Identity{UserID: "u1"}, "room-1")
	require.NoError(t, err)
	defer s.Disconnect()

	closed := 0
	sub.AddCloser(func() { closed++ })
	sub.On(catalog.Typing, func(json.RawMessage) {})

	sub.Close()
	sub.Close()

	require.Equal(t, 1, closed)
}
