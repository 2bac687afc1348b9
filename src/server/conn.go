package server

import (
	"time"

	"github.com/fasthttp/websocket"
)

// wsConn wraps fasthttp/websocket.Conn to satisfy types.Conn.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration, maxMessage int64) *wsConn {
	if maxMessage > 0 {
		conn.SetReadLimit(maxMessage)
	}
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

// ReadMessage returns the next text or binary frame. Control frames are
// handled inside the underlying reader.
func (w *wsConn) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsConn) WriteText(data []byte) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Ping() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout))
}

func (w *wsConn) SetPongHandler(fn func()) {
	w.conn.SetPongHandler(func(string) error {
		fn()
		return nil
	})
}

func (w *wsConn) Close() error { return w.conn.Close() }
