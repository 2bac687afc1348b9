package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/protocol"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	// ErrChannelNotFound means the channel has no members.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrClientNotFound means no connected client has the ID.
	ErrClientNotFound = errors.New("client not found")
	// ErrEmptyText means an announcement had no text.
	ErrEmptyText = errors.New("text is required")
)

// ChannelSummary is one entry of the channel listing.
type ChannelSummary struct {
	Channel string `json:"channel"`
	Members int    `json:"members"`
}

// Service is the administrative facade over the relay's live state.
type Service struct {
	hub    *hub.Hub
	caster *hub.Broadcaster
	logger zerolog.Logger
}

// New creates a Service backed by the given hub.
func New(h *hub.Hub, caster *hub.Broadcaster, logger zerolog.Logger) *Service {
	return &Service{hub: h, caster: caster, logger: logger}
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// GetChannels returns active channels sorted by name.
func (s *Service) GetChannels() []ChannelSummary {
	channels := s.hub.Channels()
	result := make([]ChannelSummary, 0, len(channels))
	for name, count := range channels {
		result = append(result, ChannelSummary{Channel: name, Members: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Channel < result[j].Channel })
	return result
}

// GetPresence returns the members of a channel in the same shape as a who
// reply.
func (s *Service) GetPresence(channel string) (protocol.Presence, error) {
	if !s.hub.Exists(channel) {
		return protocol.Presence{}, fmt.Errorf("%s: %w", channel, ErrChannelNotFound)
	}
	users := s.hub.Names(channel)
	return protocol.Presence{
		Type:  protocol.OutPresence,
		Room:  channel,
		Users: users,
		Count: len(users),
	}, nil
}

// Clients returns a snapshot of every connected client, oldest first.
func (s *Service) Clients() []types.ClientInfo {
	infos := lo.Map(s.hub.Clients(), func(c *hub.Client, _ int) types.ClientInfo {
		return c.Info()
	})
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].ConnectedAt.Equal(infos[j].ConnectedAt) {
			return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Client returns the nick, channel and status of one connected client.
func (s *Service) Client(id string) (types.ClientInfo, error) {
	c, ok := s.hub.Client(id)
	if !ok {
		return types.ClientInfo{}, fmt.Errorf("%s: %w", id, ErrClientNotFound)
	}
	return c.Info(), nil
}

// Announce broadcasts a server-side info packet to every member of channel
// and returns how many members it was queued for.
func (s *Service) Announce(channel, text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyText
	}
	if !s.hub.Exists(channel) {
		return 0, fmt.Errorf("%s: %w", channel, ErrChannelNotFound)
	}
	delivered := s.caster.Publish(channel, protocol.Info{
		Type:    protocol.OutInfo,
		Channel: channel,
		Text:    text,
	}, nil)

	s.logger.Info().
		Str("channel", channel).
		Int("recipients", len(delivered)).
		Msg("announcement sent")
	return len(delivered), nil
}
