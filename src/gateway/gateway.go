package gateway

import (
	"github.com/google/uuid"
	"github.com/orchestra-mcp/relay/src/dispatch"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/protocol"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/rs/zerolog"
)

// Gateway owns the lifecycle of every client session: registration on
// connect, frame dispatch while open, and teardown on disconnect.
type Gateway struct {
	hub        *hub.Hub
	caster     *hub.Broadcaster
	dispatcher *dispatch.Dispatcher
	sendBuffer int
	logger     zerolog.Logger
}

// New creates a Gateway.
func New(h *hub.Hub, caster *hub.Broadcaster, d *dispatch.Dispatcher, sendBuffer int, logger zerolog.Logger) *Gateway {
	return &Gateway{
		hub:        h,
		caster:     caster,
		dispatcher: d,
		sendBuffer: sendBuffer,
		logger:     logger.With().Str("component", "gateway").Logger(),
	}
}

// Open registers a new client for conn with the default nick and no channel.
func (g *Gateway) Open(conn types.Conn) *hub.Client {
	c := hub.NewClient(uuid.NewString(), conn, g.sendBuffer)
	g.hub.Register(c)
	return c
}

// Serve runs a session for conn until the transport closes. It blocks.
func (g *Gateway) Serve(conn types.Conn) {
	c := g.Open(conn)
	go c.WritePump()

	defer g.Teardown(c)
	c.ReadPump(func(frame []byte) {
		g.dispatcher.Dispatch(c, frame)
	})
}

// Teardown announces the departure to the client's channel, removes it from
// the registry and closes the transport. Only the first call has an effect.
// A frame handler still running for c completes first.
func (g *Gateway) Teardown(c *hub.Client) {
	c.Exclusive(func() { g.teardown(c) })
}

func (g *Gateway) teardown(c *hub.Client) {
	channel, ok := g.hub.Unregister(c)
	if !ok {
		return
	}
	if channel != "" {
		g.caster.Publish(channel, protocol.NewUserLeft(c.Nick(), channel), c)
		g.hub.Leave(channel, c)
	}
	c.Close()

	g.logger.Info().Str("client_id", c.ID).Str("nick", c.Nick()).Str("channel", channel).Msg("client disconnected")
}

// CloseAll tears down every registered client.
func (g *Gateway) CloseAll() {
	for _, c := range g.hub.Clients() {
		g.Teardown(c)
	}
}
