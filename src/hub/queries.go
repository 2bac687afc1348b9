package hub

import "github.com/samber/lo"

// Names returns the display names of the members of channel.
func (h *Hub) Names(channel string) []string {
	return lo.Map(h.Members(channel), func(c *Client, _ int) string {
		return c.Nick()
	})
}

// Exists reports whether channel currently has members.
func (h *Hub) Exists(channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[channel]
	return ok
}

// Clients returns a snapshot of every registered client.
func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Values(h.clients)
}

// Client looks up a registered client by ID.
func (h *Hub) Client(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Channels returns channel names with their member counts.
func (h *Hub) Channels() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.MapValues(h.channels, func(subs map[*Client]struct{}, _ string) int {
		return len(subs)
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
