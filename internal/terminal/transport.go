package terminal

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// Frame kinds surfaced by a Transport. Values match the websocket opcodes.
const (
	frameText   = websocket.TextMessage
	frameBinary = websocket.BinaryMessage
)

// Transport is one open connection to the session host. Implementations must
// support one concurrent reader plus concurrent writers.
type Transport interface {
	WriteJSON(v any) error
	WriteData(p []byte) error
	ReadMessage() (kind int, data []byte, err error)
	Close() error
}

// Dialer opens transports. Swapped for a fake in tests.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebsocketDialer dials the session host over a websocket.
type WebsocketDialer struct {
	// Dialer optionally overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	base := d.Dialer
	if base == nil {
		base = websocket.DefaultDialer
	}
	conn, _, err := base.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

// wsTransport serializes writes; gorilla allows one concurrent writer.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) WriteData(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, p)
}

func (t *wsTransport) ReadMessage() (int, []byte, error) {
	return t.conn.ReadMessage()
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
