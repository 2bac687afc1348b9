package hub

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub is the registry of live clients and their channel memberships.
//
// A channel exists only while it has members; the removal that empties a
// channel deletes it under the same lock.
type Hub struct {
	clients  map[string]*Client
	channels map[string]map[*Client]struct{}

	mu     sync.RWMutex
	logger zerolog.Logger
}

// New creates an empty Hub.
func New(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
		logger:   logger.With().Str("component", "hub").Logger(),
	}
}

// Register adds a client to the live set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.logger.Info().Str("client_id", c.ID).Msg("client registered")
}

// Unregister removes a client from the live set and returns the channel it
// was in at that moment. ok is false when it was not registered, which makes
// teardown safe to run more than once. Channel membership is left untouched
// so a departure notice can still be routed; the caller leaves afterwards.
func (h *Hub) Unregister(c *Client) (channel string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, exists := h.clients[c.ID]; !exists || cur != c {
		return "", false
	}
	delete(h.clients, c.ID)
	return c.Channel(), true
}

// Join adds c to channel, creating it on first use. A client belongs to at
// most one channel: joining another one first removes it from the previous
// channel, which is returned as left. added is false when c was already a
// member or is no longer registered.
func (h *Hub) Join(channel string, c *Client) (left string, added bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return "", false
	}

	prev := c.Channel()
	if prev == channel {
		if _, member := h.channels[channel][c]; member {
			return "", false
		}
	} else if prev != "" {
		h.removeLocked(prev, c)
		left = prev
	}

	subs := h.channels[channel]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
	c.setChannel(channel)
	return left, true
}

// Leave removes c from channel. Unknown channels and non-members are ignored.
func (h *Hub) Leave(channel string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(channel, c)
}

func (h *Hub) removeLocked(channel string, c *Client) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	if c.Channel() == channel {
		c.setChannel("")
	}
}

// Members returns a snapshot of the clients in channel.
func (h *Hub) Members(channel string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.channels[channel]
	members := make([]*Client, 0, len(subs))
	for c := range subs {
		members = append(members, c)
	}
	return members
}
