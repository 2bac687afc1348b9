package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/samber/lo"
)

// Inbound event type values.
const (
	TypeNick           = "nick"
	TypeJoin           = "join"
	TypeWho            = "who"
	TypeMessage        = "message"
	TypeChat           = "chat"
	TypeTyping         = "typing"
	TypeAddReaction    = "add_reaction"
	TypeRemoveReaction = "remove_reaction"
	TypeReadReceipt    = "read_receipt"
	TypeStatusUpdate   = "status_update"
)

var (
	// ErrMalformed means the frame is not a JSON object.
	ErrMalformed = errors.New("malformed frame")
	// ErrUnknownEvent means the frame carries no recognized event type.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrInvalid means a recognized event is missing or has an invalid field.
	ErrInvalid = errors.New("invalid event")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return lo.Contains(types.Statuses, types.Status(fl.Field().String()))
	})
	return v
}

// InvalidError reports which recognized event failed validation.
type InvalidError struct {
	Kind   string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s event: %s", e.Kind, e.Reason)
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

func invalid(kind, reason string) error {
	return &InvalidError{Kind: kind, Reason: reason}
}

// Event is the canonical form of an inbound frame.
type Event interface {
	Kind() string
}

type NickEvent struct {
	Nick string `validate:"required"`
}

type JoinEvent struct {
	Channel string `validate:"required"`
	Nick    string
}

type WhoEvent struct{}

// ChatEvent keeps a client-supplied ID as sent, string or number. ID is nil
// when the client sent none.
type ChatEvent struct {
	Text       string `validate:"required"`
	ID         any
	Attachment json.RawMessage
}

// TypingEvent may leave Channel empty; the sender's current channel is used
// then. Nick, when set, overrides the sender's name.
type TypingEvent struct {
	Channel string
	Nick    string
}

type ReactionEvent struct {
	Add        bool
	MessageID  string `validate:"required"`
	Channel    string `validate:"required"`
	Emoji      string `validate:"required"`
	ReactionID string
	Timestamp  int64
}

type ReadReceiptEvent struct {
	MessageID string `validate:"required"`
	Channel   string `validate:"required"`
	UserID    any
	Timestamp any
}

type StatusEvent struct {
	Status    string `validate:"status"`
	Timestamp int64
}

func (NickEvent) Kind() string        { return TypeNick }
func (JoinEvent) Kind() string        { return TypeJoin }
func (WhoEvent) Kind() string         { return TypeWho }
func (ChatEvent) Kind() string        { return TypeMessage }
func (TypingEvent) Kind() string      { return TypeTyping }
func (ReadReceiptEvent) Kind() string { return TypeReadReceipt }
func (StatusEvent) Kind() string      { return TypeStatusUpdate }

func (e ReactionEvent) Kind() string {
	if e.Add {
		return TypeAddReaction
	}
	return TypeRemoveReaction
}

// frame is the union of every inbound field, including legacy aliases.
// Fields are decoded loosely so a stray field of the wrong type never
// invalidates an event that does not use it.
type frame struct {
	Type       any             `json:"type"`
	Cmd        any             `json:"cmd"`
	Room       any             `json:"room"`
	Channel    any             `json:"channel"`
	Nick       any             `json:"nick"`
	Text       any             `json:"text"`
	ID         any             `json:"id"`
	Attachment json.RawMessage `json:"attachment"`
	MessageID  any             `json:"messageId"`
	Emoji      any             `json:"emoji"`
	ReactionID any             `json:"reactionId"`
	UserID     any             `json:"userId"`
	Status     any             `json:"status"`
	Timestamp  any             `json:"timestamp"`
}

// Decode parses one inbound frame into its canonical Event.
//
// "cmd" is accepted as an alias of "type" and "channel" as an alias of
// "room"; the primary name wins when both are present.
func Decode(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kind := firstNonEmpty(text(f.Type), text(f.Cmd))
	channel := firstNonEmpty(scalar(f.Room), scalar(f.Channel))

	var ev Event
	switch kind {
	case TypeNick:
		ev = NickEvent{Nick: scalar(f.Nick)}
	case TypeJoin:
		ev = JoinEvent{Channel: channel, Nick: scalar(f.Nick)}
	case TypeWho:
		return WhoEvent{}, nil
	case TypeMessage, TypeChat:
		body, ok := f.Text.(string)
		if !ok {
			return nil, invalid(kind, "text must be a string")
		}
		ev = ChatEvent{Text: body, ID: clientID(f.ID), Attachment: attachment(f.Attachment)}
	case TypeTyping:
		return TypingEvent{Channel: channel, Nick: scalar(f.Nick)}, nil
	case TypeAddReaction, TypeRemoveReaction:
		ev = ReactionEvent{
			Add:        kind == TypeAddReaction,
			MessageID:  scalar(f.MessageID),
			Channel:    channel,
			Emoji:      scalar(f.Emoji),
			ReactionID: scalar(f.ReactionID),
			Timestamp:  millis(f.Timestamp),
		}
	case TypeReadReceipt:
		if !present(f.UserID) {
			return nil, invalid(kind, "userId is required")
		}
		if !present(f.Timestamp) {
			return nil, invalid(kind, "timestamp is required")
		}
		ev = ReadReceiptEvent{
			MessageID: scalar(f.MessageID),
			Channel:   channel,
			UserID:    f.UserID,
			Timestamp: f.Timestamp,
		}
	case TypeStatusUpdate:
		ev = StatusEvent{Status: text(f.Status), Timestamp: millis(f.Timestamp)}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}

	if err := validate.Struct(ev); err != nil {
		return nil, invalid(kind, err.Error())
	}
	return ev, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// text returns v when it is a JSON string.
func text(v any) string {
	str, _ := v.(string)
	return str
}

// scalar accepts names and identifiers sent either as JSON strings or numbers.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func clientID(v any) any {
	if !present(v) {
		return nil
	}
	return v
}

// millis returns a numeric timestamp, or 0 when absent or non-numeric.
func millis(v any) int64 {
	if n, ok := v.(float64); ok {
		return int64(n)
	}
	return 0
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	case bool:
		return t
	default:
		return true
	}
}

func attachment(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
