// Package conntest provides an in-memory types.Conn for tests.
package conntest

import (
	"encoding/json"
	"errors"
	"sync"
)

// ErrClosed is returned by ReadMessage once the connection is closed.
var ErrClosed = errors.New("connection closed")

// Conn implements types.Conn without a real WebSocket.
type Conn struct {
	mu       sync.Mutex
	written  [][]byte
	pings    int
	pong     func()
	writeErr error
	closed   bool

	inbound  chan []byte
	closedCh chan struct{}
}

func New() *Conn {
	return &Conn{
		inbound:  make(chan []byte, 16),
		closedCh: make(chan struct{}),
	}
}

// Send queues an inbound frame for ReadMessage.
func (c *Conn) Send(frame string) {
	c.inbound <- []byte(frame)
}

func (c *Conn) ReadMessage() ([]byte, error) {
	select {
	case frame := <-c.inbound:
		return frame, nil
	case <-c.closedCh:
		return nil, ErrClosed
	}
}

func (c *Conn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.pings++
	return nil
}

func (c *Conn) SetPongHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pong = fn
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

// Pong simulates the peer answering a ping.
func (c *Conn) Pong() {
	c.mu.Lock()
	fn := c.pong
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FailWrites makes every later write return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// Packets decodes every written frame as a JSON object.
func (c *Conn) Packets() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.written))
	for _, data := range c.written {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// OfType returns the written packets whose "type" equals kind.
func (c *Conn) OfType(kind string) []map[string]any {
	var out []map[string]any
	for _, p := range c.Packets() {
		if p["type"] == kind {
			out = append(out, p)
		}
	}
	return out
}
