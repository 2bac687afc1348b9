package service

import (
	"testing"
	"time"

	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/protocol"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/orchestra-mcp/relay/src/types/conntest"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *hub.Hub) {
	t.Helper()
	h := hub.New(zerolog.Nop())
	return New(h, hub.NewBroadcaster(h, zerolog.Nop()), zerolog.Nop()), h
}

func addMember(t *testing.T, h *hub.Hub, id, nick, channel string) *hub.Client {
	t.Helper()
	c := hub.NewClient(id, conntest.New(), 8)
	c.SetNick(nick)
	h.Register(c)
	if channel != "" {
		h.Join(channel, c)
	}
	return c
}

func TestGetChannelsSorted(t *testing.T) {
	s, h := newTestService(t)
	addMember(t, h, "1", "a", "zeta")
	addMember(t, h, "2", "b", "alpha")
	addMember(t, h, "3", "c", "alpha")
	addMember(t, h, "4", "d", "")

	assert.Equal(t, []ChannelSummary{
		{Channel: "alpha", Members: 2},
		{Channel: "zeta", Members: 1},
	}, s.GetChannels())
}

func TestGetChannelsEmpty(t *testing.T) {
	s, _ := newTestService(t)

	channels := s.GetChannels()
	require.NotNil(t, channels)
	assert.Empty(t, channels)
}

func TestGetPresence(t *testing.T) {
	s, h := newTestService(t)
	addMember(t, h, "1", "alice", "lobby")
	addMember(t, h, "2", "bob", "lobby")

	presence, err := s.GetPresence("lobby")
	require.NoError(t, err)
	assert.Equal(t, protocol.OutPresence, presence.Type)
	assert.Equal(t, "lobby", presence.Room)
	assert.Equal(t, 2, presence.Count)
	assert.ElementsMatch(t, []string{"alice", "bob"}, presence.Users)

	_, err = s.GetPresence("nowhere")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestClientQueries(t *testing.T) {
	s, h := newTestService(t)
	addMember(t, h, "1", "alice", "lobby")
	bob := addMember(t, h, "2", "bob", "")
	bob.SetStatus(types.StatusBusy, 10)

	clients := s.Clients()
	require.Len(t, clients, 2)
	assert.ElementsMatch(t, []string{"1", "2"}, lo.Map(clients, func(c types.ClientInfo, _ int) string { return c.ID }))

	info, err := s.Client("1")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Nick)
	assert.Equal(t, "lobby", info.Channel)

	info, err = s.Client("2")
	require.NoError(t, err)
	assert.Equal(t, types.StatusBusy, info.Status)
	assert.Empty(t, info.Channel)

	_, err = s.Client("missing")
	assert.ErrorIs(t, err, ErrClientNotFound)
	assert.Same(t, h, s.Hub())
}

func TestClientsOldestFirst(t *testing.T) {
	s, h := newTestService(t)
	addMember(t, h, "first", "a", "")
	time.Sleep(2 * time.Millisecond)
	addMember(t, h, "second", "b", "")

	clients := s.Clients()
	require.Len(t, clients, 2)
	assert.Equal(t, "first", clients[0].ID)
	assert.Equal(t, "second", clients[1].ID)
}

func TestAnnounce(t *testing.T) {
	s, h := newTestService(t)
	conn := conntest.New()
	alice := hub.NewClient("1", conn, 8)
	h.Register(alice)
	h.Join("lobby", alice)
	addMember(t, h, "2", "bob", "lobby")
	go alice.WritePump()
	t.Cleanup(alice.Close)

	n, err := s.Announce("lobby", "  maintenance at noon ")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Eventually(t, func() bool { return len(conn.OfType("info")) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, map[string]any{"type": "info", "channel": "lobby", "text": "maintenance at noon"}, conn.OfType("info")[0])
}

func TestAnnounceErrors(t *testing.T) {
	s, h := newTestService(t)
	addMember(t, h, "1", "alice", "lobby")

	_, err := s.Announce("lobby", "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = s.Announce("nowhere", "hello")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}
