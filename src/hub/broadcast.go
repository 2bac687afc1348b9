package hub

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Mirror receives a copy of every channel broadcast after local delivery.
// Defined here to avoid circular imports with the tap package.
type Mirror interface {
	Mirror(channel string, payload []byte)
	Available() bool
}

// Broadcaster delivers packets to the members of a channel.
type Broadcaster struct {
	hub    *Hub
	mirror Mirror
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewBroadcaster creates a Broadcaster over h.
func NewBroadcaster(h *Hub, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    h,
		logger: logger.With().Str("component", "broadcaster").Logger(),
	}
}

// SetMirror attaches an out-of-process mirror for channel broadcasts.
func (b *Broadcaster) SetMirror(m Mirror) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirror = m
}

// Publish serializes packet once and queues it for every open member of
// channel except exclude, which may be nil. It returns the clients the packet
// was queued for. Failures affect only the failing recipient.
func (b *Broadcaster) Publish(channel string, packet any, exclude *Client) []*Client {
	data, err := json.Marshal(packet)
	if err != nil {
		b.logger.Error().Err(err).Str("channel", channel).Msg("encode packet")
		return nil
	}

	members := b.hub.Members(channel)
	delivered := make([]*Client, 0, len(members))
	for _, c := range members {
		if c == exclude {
			continue
		}
		if b.deliver(c, data, channel) {
			delivered = append(delivered, c)
		}
	}

	b.mirrorPublish(channel, data)
	return delivered
}

// SendDirect queues packet for c alone.
func (b *Broadcaster) SendDirect(c *Client, packet any) bool {
	data, err := json.Marshal(packet)
	if err != nil {
		b.logger.Error().Err(err).Str("client_id", c.ID).Msg("encode packet")
		return false
	}
	return b.deliver(c, data, "")
}

func (b *Broadcaster) deliver(c *Client, data []byte, channel string) bool {
	err := c.Deliver(data)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrClosed):
		b.logger.Debug().Str("client_id", c.ID).Str("channel", channel).Msg("skipping closed client")
	default:
		b.logger.Warn().Err(err).Str("client_id", c.ID).Str("channel", channel).Msg("send buffer full, dropping")
	}
	return false
}

func (b *Broadcaster) mirrorPublish(channel string, data []byte) {
	b.mu.RLock()
	m := b.mirror
	b.mu.RUnlock()

	if m == nil || !m.Available() {
		return
	}
	m.Mirror(channel, data)
}
