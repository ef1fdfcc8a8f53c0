package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// controlWriteTimeout bounds close frames written on shutdown or refusal
const controlWriteTimeout = time.Second

// Conn is the outbound handle of one client's WebSocket.
// Writes are serialized; gorilla allows a single concurrent writer.
type Conn struct {
	clientID string
	ws       *websocket.Conn

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(clientID string, ws *websocket.Conn) *Conn {
	return &Conn{clientID: clientID, ws: ws}
}

// ClientID returns the id the client connected with
func (c *Conn) ClientID() string {
	return c.clientID
}

// Send writes v as one JSON text message; the ctx deadline becomes the write deadline
func (c *Conn) Send(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}

// Close closes the underlying connection without a close frame
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// closeWith sends a close frame with code and reason, then closes the connection
func (c *Conn) closeWith(code int, reason string) error {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(controlWriteTimeout))
	c.mu.Unlock()
	return c.Close()
}
