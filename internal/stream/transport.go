package stream

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// Conn is a single live connection to the feed. ReadMessage blocks until
// the next frame arrives and returns an error once the connection is gone,
// which the session treats as a close signal.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// DialFunc opens a Conn to the feed endpoint. The session calls it on every
// connect and reconnect attempt; tests inject their own.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// wsConn adapts a gorilla websocket connection to the Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// DialWebSocket is the production DialFunc.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &wsConn{conn: conn}, nil
}
