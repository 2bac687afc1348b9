package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/protocol"
	"github.com/rs/zerolog"
)

var errNotJoined = errors.New("client has not joined a channel")

// Options tunes optional dispatcher behavior.
type Options struct {
	// Acks enables message_ack and message_delivered replies to chat senders.
	Acks bool
	// NewID generates message and reaction identifiers. Defaults to UUIDv4.
	NewID func() string
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher decodes inbound frames and routes them to per-event handlers.
type Dispatcher struct {
	hub    *hub.Hub
	caster *hub.Broadcaster
	opts   Options
	logger zerolog.Logger
}

// New creates a Dispatcher.
func New(h *hub.Hub, caster *hub.Broadcaster, opts Options, logger zerolog.Logger) *Dispatcher {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		hub:    h,
		caster: caster,
		opts:   opts,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch handles one inbound frame from c. Nothing is ever reported back
// to the sender on failure; a panicking handler is contained here.
func (d *Dispatcher) Dispatch(c *hub.Client, frame []byte) {
	c.Exclusive(func() { d.dispatch(c, frame) })
}

func (d *Dispatcher) dispatch(c *hub.Client, frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("client_id", c.ID).Interface("panic", r).Msg("handler panic")
		}
	}()

	ev, err := protocol.Decode(frame)
	if err != nil {
		d.logDrop(c, err)
		return
	}
	if err := d.handle(c, ev); err != nil {
		d.logger.Debug().Err(err).Str("client_id", c.ID).Str("event", ev.Kind()).Msg("event dropped")
	}
}

func (d *Dispatcher) handle(c *hub.Client, ev protocol.Event) error {
	switch e := ev.(type) {
	case protocol.NickEvent:
		return d.handleNick(c, e)
	case protocol.JoinEvent:
		return d.handleJoin(c, e)
	case protocol.WhoEvent:
		return d.handleWho(c)
	case protocol.ChatEvent:
		return d.handleChat(c, e)
	case protocol.TypingEvent:
		return d.handleTyping(c, e)
	case protocol.ReactionEvent:
		return d.handleReaction(c, e)
	case protocol.ReadReceiptEvent:
		return d.handleReadReceipt(c, e)
	case protocol.StatusEvent:
		return d.handleStatus(c, e)
	default:
		return fmt.Errorf("no handler for %T", ev)
	}
}

// logDrop warns on invalid status, reaction and read receipt payloads;
// every other drop is logged at debug.
func (d *Dispatcher) logDrop(c *hub.Client, err error) {
	event := d.logger.Debug()
	var invalid *protocol.InvalidError
	if errors.As(err, &invalid) {
		switch invalid.Kind {
		case protocol.TypeStatusUpdate, protocol.TypeAddReaction, protocol.TypeRemoveReaction, protocol.TypeReadReceipt:
			event = d.logger.Warn()
		}
	}
	event.Err(err).Str("client_id", c.ID).Str("nick", c.Nick()).Msg("frame dropped")
}

func (d *Dispatcher) nowMillis() int64 {
	return d.opts.Now().UnixMilli()
}
