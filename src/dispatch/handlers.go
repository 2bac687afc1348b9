package dispatch

import (
	"fmt"

	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/protocol"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/samber/lo"
)

func (d *Dispatcher) handleNick(c *hub.Client, e protocol.NickEvent) error {
	old := c.SetNick(e.Nick)
	if ch := c.Channel(); ch != "" && old != e.Nick {
		d.caster.Publish(ch, protocol.NickChange{
			Type:    protocol.OutNickChange,
			OldNick: old,
			NewNick: e.Nick,
			Channel: ch,
		}, nil)
	}
	d.caster.SendDirect(c, protocol.NewInfo(fmt.Sprintf("nick changed to %s", e.Nick)))
	return nil
}

// handleJoin moves c into e.Channel. Leaving the previous channel is part of
// the same registry operation, so c is never a member of two channels.
func (d *Dispatcher) handleJoin(c *hub.Client, e protocol.JoinEvent) error {
	if !c.Named() && e.Nick != "" {
		c.SetNick(e.Nick)
	}
	nick := c.Nick()

	left, added := d.hub.Join(e.Channel, c)
	if left != "" {
		d.caster.Publish(left, protocol.NewUserLeft(nick, left), c)
	}
	if added {
		d.caster.Publish(e.Channel, protocol.NewUserJoined(nick, e.Channel), c)
		d.logger.Info().Str("client_id", c.ID).Str("nick", nick).Str("channel", e.Channel).Msg("joined")
	}
	d.caster.SendDirect(c, protocol.NewInfo(fmt.Sprintf("joined #%s", e.Channel)))
	return nil
}

func (d *Dispatcher) handleWho(c *hub.Client) error {
	ch := c.Channel()
	if ch == "" {
		return errNotJoined
	}
	users := d.hub.Names(ch)
	d.caster.SendDirect(c, protocol.Presence{
		Type:  protocol.OutPresence,
		Room:  ch,
		Users: users,
		Count: len(users),
	})
	return nil
}

func (d *Dispatcher) handleChat(c *hub.Client, e protocol.ChatEvent) error {
	ch := c.Channel()
	if ch == "" {
		return errNotJoined
	}
	id := e.ID
	if id == nil {
		id = d.opts.NewID()
	}

	if d.opts.Acks {
		d.caster.SendDirect(c, protocol.MessageAck{
			Type:      protocol.OutMessageAck,
			ID:        id,
			Channel:   ch,
			Status:    "received",
			Timestamp: d.nowMillis(),
		})
	}

	delivered := d.caster.Publish(ch, protocol.Chat{
		Type:       protocol.OutMessage,
		Channel:    ch,
		Nick:       c.Nick(),
		Text:       e.Text,
		ID:         id,
		Attachment: e.Attachment,
	}, nil)

	if d.opts.Acks {
		others := lo.FilterMap(delivered, func(m *hub.Client, _ int) (string, bool) {
			return m.Nick(), m != c
		})
		d.caster.SendDirect(c, protocol.MessageDelivered{
			Type:        protocol.OutMessageDelivered,
			ID:          id,
			Channel:     ch,
			DeliveredTo: others,
			Count:       len(others),
			Timestamp:   d.nowMillis(),
		})
	}
	return nil
}

func (d *Dispatcher) handleTyping(c *hub.Client, e protocol.TypingEvent) error {
	ch := e.Channel
	if ch == "" {
		ch = c.Channel()
	}
	if ch == "" {
		return errNotJoined
	}
	nick := e.Nick
	if nick == "" {
		nick = c.Nick()
	}
	d.caster.Publish(ch, protocol.NewTyping(nick, ch), c)
	return nil
}

func (d *Dispatcher) handleReaction(c *hub.Client, e protocol.ReactionEvent) error {
	packet := protocol.Reaction{
		MessageID: e.MessageID,
		Channel:   e.Channel,
		Emoji:     e.Emoji,
		UserID:    c.Nick(),
		Timestamp: d.nowMillis(),
	}
	if e.Add {
		packet.Type = protocol.OutReactionAdded
		packet.ReactionID = e.ReactionID
		if packet.ReactionID == "" {
			packet.ReactionID = d.opts.NewID()
		}
		if e.Timestamp != 0 {
			packet.Timestamp = e.Timestamp
		}
	} else {
		packet.Type = protocol.OutReactionRemoved
	}
	d.caster.Publish(e.Channel, packet, nil)
	return nil
}

func (d *Dispatcher) handleReadReceipt(c *hub.Client, e protocol.ReadReceiptEvent) error {
	d.caster.Publish(e.Channel, protocol.ReadReceipt{
		Type:      protocol.OutReadReceipt,
		MessageID: e.MessageID,
		Channel:   e.Channel,
		UserID:    e.UserID,
		Timestamp: e.Timestamp,
	}, c)
	return nil
}

func (d *Dispatcher) handleStatus(c *hub.Client, e protocol.StatusEvent) error {
	at := e.Timestamp
	if at == 0 {
		at = d.nowMillis()
	}
	status := types.Status(e.Status)
	c.SetStatus(status, at)

	if ch := c.Channel(); ch != "" {
		d.caster.Publish(ch, protocol.StatusUpdate{
			Type:      protocol.OutStatusUpdate,
			Nick:      c.Nick(),
			Status:    e.Status,
			Timestamp: at,
			Channel:   ch,
		}, nil)
	}
	return nil
}
