////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 GamerHive                                                 //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transport

import (
	"encoding/json"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/Asadullah-Sadiq/GamerHive-sub000/catalog"
)

// Error messages.
const (
	alreadyConnectedErr = "event channel already connected to %s"
	dialErr             = "failed to dial event channel at %s: %+v"
	marshalPayloadErr   = "failed to marshal payload for event %q: %+v"
	sendQueueFullErr    = "send queue full, dropping event %q"
)

// Size of the outgoing event buffer. Sends beyond a full buffer fail rather
// than block an event handler.
const sendQueueLen = 256

// envelope is the wire frame of every event in both directions.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Socket is the websocket implementation of Channel. A single read pump
// dispatches incoming envelopes to the listener map and a single write pump
// drains the send queue, so handlers run to completion one at a time and the
// connection never has concurrent writers.
type Socket struct {
	serverURL string
	listeners *ListenerMap

	state uint32 // atomic State

	connMux sync.Mutex
	conn    *websocket.Conn
	sendCh  chan []byte
	quit    chan struct{}
}

// NewSocket returns a Socket that will dial the given ws:// or wss:// URL on
// Connect.
func NewSocket(serverURL string) *Socket {
	return &Socket{
		serverURL: serverURL,
		listeners: NewListenerMap(),
	}
}

// Connect dials the server, starts the read and write pumps, and joins the
// given conversation room. The returned Subscription owns all listeners
// registered through it.
func (s *Socket) Connect(identity Identity, room string) (*Subscription, error) {
	s.connMux.Lock()
	defer s.connMux.Unlock()

	if s.State() == Connected {
		return nil, errors.Errorf(alreadyConnectedErr, s.serverURL)
	}

	s.setState(Connecting)

	u, err := url.Parse(s.serverURL)
	if err != nil {
		s.setState(Disconnected)
		return nil, errors.Errorf(dialErr, s.serverURL, err)
	}
	q := u.Query()
	q.Set("userId", identity.UserID)
	q.Set("username", identity.Username)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		s.setState(Disconnected)
		return nil, errors.Errorf(dialErr, s.serverURL, err)
	}

	s.conn = conn
	s.sendCh = make(chan []byte, sendQueueLen)
	s.quit = make(chan struct{})
	s.setState(Connected)

	go s.readPump(conn, s.quit)
	go s.writePump(conn, s.sendCh, s.quit)

	jww.INFO.Printf("[WS] Connected to %s as %s", s.serverURL, identity.UserID)

	sub := NewSubscription(s, identity, room)
	if err = s.Send(catalog.JoinRoom, joinPayload{Room: room, UserID: identity.UserID}); err != nil {
		jww.WARN.Printf("[WS] Failed to join room %q on connect: %+v", room, err)
	}

	return sub, nil
}

// Send marshals the payload into an envelope and queues it on the write
// pump. It fails fast with ErrTransportUnavailable while disconnected; the
// caller decides whether to degrade to the REST client.
func (s *Socket) Send(event string, payload any) error {
	if s.State() != Connected {
		return ErrTransportUnavailable
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Errorf(marshalPayloadErr, event, err)
	}
	frame, err := json.Marshal(envelope{Event: event, Payload: raw})
	if err != nil {
		return errors.Errorf(marshalPayloadErr, event, err)
	}

	select {
	case s.sendCh <- frame:
		return nil
	default:
		return errors.Errorf(sendQueueFullErr, event)
	}
}

// On registers a handler for the named event and returns its listener ID.
func (s *Socket) On(event string, h Handler) string {
	return s.listeners.Register(event, h)
}

// Off removes a listener by ID.
func (s *Socket) Off(id string) {
	s.listeners.Unregister(id)
}

func (s *Socket) IsConnected() bool {
	return s.State() == Connected
}

func (s *Socket) State() State {
	return State(atomic.LoadUint32(&s.state))
}

func (s *Socket) setState(st State) {
	atomic.StoreUint32(&s.state, uint32(st))
}

// Disconnect closes the connection and stops both pumps. Listeners stay
// registered; a later Connect resumes delivering to them.
func (s *Socket) Disconnect() {
	s.connMux.Lock()
	defer s.connMux.Unlock()

	if s.State() == Disconnected {
		return
	}

	s.setState(Disconnected)
	close(s.quit)
	if err := s.conn.Close(); err != nil {
		jww.DEBUG.Printf("[WS] Error closing connection: %+v", err)
	}
	s.conn = nil

	jww.INFO.Printf("[WS] Disconnected from %s", s.serverURL)
}

// readPump delivers every incoming envelope to the listener map. It runs
// until the connection dies or Disconnect is called.
func (s *Socket) readPump(conn *websocket.Conn, quit <-chan struct{}) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-quit:
			default:
				jww.ERROR.Printf("[WS] Read failed, marking channel "+
					"disconnected: %+v", err)
				s.setState(Disconnected)
			}
			return
		}

		var env envelope
		if err = json.Unmarshal(frame, &env); err != nil {
			jww.WARN.Printf("[WS] Dropping malformed frame: %+v", err)
			continue
		}

		s.listeners.Speak(env.Event, env.Payload)
	}
}

// writePump is the sole writer on the connection.
func (s *Socket) writePump(conn *websocket.Conn, sendCh <-chan []byte,
	quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case frame := <-sendCh:
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				jww.ERROR.Printf("[WS] Write failed, marking channel "+
					"disconnected: %+v", err)
				s.setState(Disconnected)
				return
			}
		}
	}
}

type joinPayload struct {
	Room   string `json:"room"`
	UserID string `json:"userId"`
}
