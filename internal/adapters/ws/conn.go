// Package ws is the websocket transport adapter: connection upgrade,
// read/write pumps and the hub that fans events out to rooms.
package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrBackpressure = errors.New("backpressure")

// Conn is the adapter-owned endpoint for one client. The adapter must
// Close() it; nothing else touches the underlying socket.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, send: make(chan []byte, 32)}
}

// TrySend never blocks; a full buffer drops the frame.
func (c *Conn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
	c.mu.Unlock()
}
