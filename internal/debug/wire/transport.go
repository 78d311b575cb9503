// Package wire owns the single WebSocket connection to the debug bridge.
// It knows nothing about the protocol: it reports open, message and close
// events and writes binary frames.
package wire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultPath is the bridge endpoint that streams program state.
const DefaultPath = "/api/events"

// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// ErrClosed is returned by Send after the transport closed.
var ErrClosed = errors.New("transport closed")

// EventKind identifies a transport event.
type EventKind int

const (
	// EventOpen is emitted once the connection is established.
	EventOpen EventKind = iota
	// EventMessage carries one inbound frame.
	EventMessage
	// EventClose is emitted once when the connection ends or fails to open.
	EventClose
)

// String returns a string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one transport signal, tagged with the connection it belongs to.
type Event struct {
	Kind   EventKind
	ConnID uuid.UUID

	// Transport is set on EventOpen.
	Transport *Transport

	// Data is the frame payload on EventMessage.
	Data []byte

	// Err is the failure cause on EventClose, nil for a local close.
	Err error
}

// Conn is the subset of *websocket.Conn the transport uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	Header           http.Header
}

// Dial opens a WebSocket connection to url.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// Transport wraps one open connection.
type Transport struct {
	id        uuid.UUID
	conn      Conn
	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewTransport wraps conn under the given connection id.
func NewTransport(id uuid.UUID, conn Conn) *Transport {
	return &Transport{id: id, conn: conn}
}

// ID returns the connection id.
func (t *Transport) ID() uuid.UUID {
	return t.id
}

// Send writes one binary frame.
func (t *Transport) Send(data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return ErrClosed
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		err = t.conn.Close()
	})
	return err
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	return t.closed.Load()
}

// Run reads frames until the connection fails, emitting one EventMessage per
// frame and a final EventClose. Emission stops early when done closes.
func (t *Transport) Run(events chan<- Event, done <-chan struct{}) {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			t.Close()
			emit(events, done, Event{Kind: EventClose, ConnID: t.id, Err: err})
			return
		}
		if !emit(events, done, Event{Kind: EventMessage, ConnID: t.id, Data: data}) {
			t.Close()
			return
		}
	}
}

// Open dials url and, on success, emits EventOpen and runs the transport.
// A failed dial emits a single EventClose carrying the error.
func Open(ctx context.Context, dialer Dialer, url string, id uuid.UUID, events chan<- Event, done <-chan struct{}) {
	conn, err := dialer.Dial(ctx, url)
	if err != nil {
		emit(events, done, Event{Kind: EventClose, ConnID: id, Err: err})
		return
	}

	t := NewTransport(id, conn)
	if !emit(events, done, Event{Kind: EventOpen, ConnID: id, Transport: t}) {
		t.Close()
		return
	}
	t.Run(events, done)
}

func emit(events chan<- Event, done <-chan struct{}, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-done:
		return false
	}
}
