package hub

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orchestra-mcp/relay/src/types"
)

// DefaultNick is the display name of a client that has not picked one.
const DefaultNick = "guest"

var (
	// ErrClosed is returned when delivering to a client whose transport is closed.
	ErrClosed = errors.New("client closed")
	// ErrBufferFull is returned when a client's send queue is full.
	ErrBufferFull = errors.New("send buffer full")
)

// Client wraps a WebSocket connection and manages message flow.
type Client struct {
	ID          string
	conn        types.Conn
	send        chan []byte
	probe       chan struct{}
	connectedAt time.Time
	alive       atomic.Bool
	session     sync.Mutex

	mu       sync.RWMutex
	nick     string
	named    bool
	channel  string
	status   types.Status
	statusAt int64
	done     chan struct{}
	closed   bool
}

// NewClient creates a client with a send queue of the given capacity.
func NewClient(id string, conn types.Conn, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	c := &Client{
		ID:          id,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		probe:       make(chan struct{}, 1),
		connectedAt: time.Now(),
		nick:        DefaultNick,
		done:        make(chan struct{}),
	}
	c.alive.Store(true)
	conn.SetPongHandler(c.MarkAlive)
	return c
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.ClientInfo{
		ID:          c.ID,
		Nick:        c.nick,
		Channel:     c.channel,
		Status:      c.status,
		ConnectedAt: c.connectedAt,
	}
}

func (c *Client) Nick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nick
}

// Named reports whether the nick was set explicitly rather than defaulted.
func (c *Client) Named() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.named
}

// SetNick sets the display name and returns the previous one.
func (c *Client) SetNick(nick string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.nick
	c.nick = nick
	c.named = true
	return old
}

// Channel returns the joined channel, or "" when not joined.
func (c *Client) Channel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// setChannel is only called by the Hub while holding its lock.
func (c *Client) setChannel(channel string) {
	c.mu.Lock()
	c.channel = channel
	c.mu.Unlock()
}

func (c *Client) Status() (types.Status, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status, c.statusAt
}

func (c *Client) SetStatus(status types.Status, at int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.statusAt = at
}

// Exclusive runs fn under the client's session lock. Frame handling and
// teardown both go through it, so a handler already in flight finishes
// before the departure is announced.
func (c *Client) Exclusive(fn func()) {
	c.session.Lock()
	defer c.session.Unlock()
	fn()
}

// MarkAlive records a probe response.
func (c *Client) MarkAlive() {
	c.alive.Store(true)
}

// resetAlive clears the liveness flag and reports whether it was set.
func (c *Client) resetAlive() bool {
	return c.alive.Swap(false)
}

// Open reports whether the transport is still usable.
func (c *Client) Open() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Deliver queues a serialized packet without blocking.
func (c *Client) Deliver(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// Probe queues a liveness ping. A ping already pending is not duplicated.
func (c *Client) Probe() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.probe <- struct{}{}:
	default:
	}
	return nil
}

// ReadPump reads frames from the WebSocket and hands each to handle, one at
// a time. It returns when the transport fails or is closed.
func (c *Client) ReadPump(handle func(frame []byte)) {
	for {
		frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		handle(frame)
	}
}

// WritePump drains the send queue and pending probes to the WebSocket.
// A write failure closes the client.
func (c *Client) WritePump() {
	defer c.Close()

	for {
		select {
		case data := <-c.send:
			if err := c.conn.WriteText(data); err != nil {
				return
			}
		case <-c.probe:
			if err := c.conn.Ping(); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close stops the pumps and closes the transport. Safe to call repeatedly.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	_ = c.conn.Close()
}
