package protocol

import "encoding/json"

// Outbound packet type values.
const (
	OutInfo             = "info"
	OutPresence         = "presence"
	OutMessage          = "message"
	OutMessageAck       = "message_ack"
	OutMessageDelivered = "message_delivered"
	OutUserJoined       = "user_joined"
	OutUserLeft         = "user_left"
	OutNickChange       = "nick_change"
	OutTyping           = "typing"
	OutReactionAdded    = "reaction_added"
	OutReactionRemoved  = "reaction_removed"
	OutReadReceipt      = "read_receipt"
	OutStatusUpdate     = "status_update"
)

// Info is a direct confirmation or a server-side announcement.
type Info struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// Presence answers a who query.
type Presence struct {
	Type  string   `json:"type"`
	Room  string   `json:"room"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type Chat struct {
	Type       string          `json:"type"`
	Channel    string          `json:"channel"`
	Nick       string          `json:"nick"`
	Text       string          `json:"text"`
	ID         any             `json:"id"`
	Attachment json.RawMessage `json:"attachment,omitempty"`
}

// MessageAck tells the sender the relay accepted a chat message.
type MessageAck struct {
	Type      string `json:"type"`
	ID        any    `json:"id"`
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// MessageDelivered lists the other open members a chat message was handed to.
type MessageDelivered struct {
	Type        string   `json:"type"`
	ID          any      `json:"id"`
	Channel     string   `json:"channel"`
	DeliveredTo []string `json:"deliveredTo"`
	Count       int      `json:"count"`
	Timestamp   int64    `json:"timestamp"`
}

// Membership is a user_joined or user_left notice.
type Membership struct {
	Type    string `json:"type"`
	Nick    string `json:"nick"`
	Channel string `json:"channel"`
}

type NickChange struct {
	Type    string `json:"type"`
	OldNick string `json:"oldNick"`
	NewNick string `json:"newNick"`
	Channel string `json:"channel"`
}

// Typing carries the legacy cmd key alongside type.
type Typing struct {
	Type    string `json:"type"`
	Cmd     string `json:"cmd"`
	Channel string `json:"channel"`
	Nick    string `json:"nick"`
}

type Reaction struct {
	Type       string `json:"type"`
	MessageID  string `json:"messageId"`
	Channel    string `json:"channel"`
	Emoji      string `json:"emoji"`
	UserID     string `json:"userId"`
	ReactionID string `json:"reactionId,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type ReadReceipt struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	Channel   string `json:"channel"`
	UserID    any    `json:"userId"`
	Timestamp any    `json:"timestamp"`
}

type StatusUpdate struct {
	Type      string `json:"type"`
	Nick      string `json:"nick"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Channel   string `json:"channel"`
}

func NewInfo(text string) Info {
	return Info{Type: OutInfo, Text: text}
}

func NewUserJoined(nick, channel string) Membership {
	return Membership{Type: OutUserJoined, Nick: nick, Channel: channel}
}

func NewUserLeft(nick, channel string) Membership {
	return Membership{Type: OutUserLeft, Nick: nick, Channel: channel}
}

func NewTyping(nick, channel string) Typing {
	return Typing{Type: OutTyping, Cmd: OutTyping, Channel: channel, Nick: nick}
}
