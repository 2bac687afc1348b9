package types

import "time"

// Status is a user-reported presence state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Statuses lists every valid Status value.
var Statuses = []Status{StatusOnline, StatusAway, StatusBusy, StatusOffline}

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	ID          string    `json:"id"`
	Nick        string    `json:"nick"`
	Channel     string    `json:"channel,omitempty"`
	Status      Status    `json:"status,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Conn abstracts a WebSocket connection for testability.
//
// ReadMessage and the write methods are never called concurrently with
// themselves; Close may be called from any goroutine and must unblock a
// pending ReadMessage.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteText(data []byte) error
	Ping() error
	SetPongHandler(fn func())
	Close() error
}
