package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/relay/config"
	"github.com/orchestra-mcp/relay/src/tap"
	"github.com/orchestra-mcp/relay/src/types/conntest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PingInterval = time.Hour
	return New(cfg, zerolog.Nop())
}

func doJSON(t *testing.T, s *Server, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return resp.StatusCode, out
}

// member registers a client with a running write pump and joins channel.
func member(t *testing.T, s *Server, nick, channel string) *conntest.Conn {
	t.Helper()
	conn := conntest.New()
	c := s.gateway.Open(conn)
	c.SetNick(nick)
	go c.WritePump()
	t.Cleanup(c.Close)
	s.hub.Join(channel, c)
	return conn
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	status, body := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
}

func TestInfo(t *testing.T) {
	s := newTestServer(t)
	member(t, s, "alice", "lobby")

	status, body := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/ws/info", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{
		"websocket": true,
		"endpoint":  "/chat-ws",
		"clients":   float64(1),
		"channels":  float64(1),
	}, body)
}

func TestChannelsAndPresence(t *testing.T) {
	s := newTestServer(t)
	member(t, s, "alice", "lobby")
	member(t, s, "bob", "lobby")
	member(t, s, "carol", "dev")

	status, body := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/channels", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, []any{
		map[string]any{"channel": "dev", "members": float64(1)},
		map[string]any{"channel": "lobby", "members": float64(2)},
	}, body["channels"])

	status, body = doJSON(t, s, httptest.NewRequest(http.MethodGet, "/channels/lobby", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "presence", body["type"])
	assert.Equal(t, "lobby", body["room"])
	assert.ElementsMatch(t, []any{"alice", "bob"}, body["users"])

	status, body = doJSON(t, s, httptest.NewRequest(http.MethodGet, "/channels/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "channel not found")
}

func TestAnnounceRoute(t *testing.T) {
	s := newTestServer(t)
	conn := member(t, s, "alice", "lobby")

	post := func(channel, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/channels/"+channel+"/announce", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	status, body := doJSON(t, s, post("lobby", `{"text":"hello all"}`))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"published": true, "channel": "lobby", "recipients": float64(1)}, body)
	require.Eventually(t, func() bool { return len(conn.OfType("info")) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, "hello all", conn.OfType("info")[0]["text"])

	status, _ = doJSON(t, s, post("lobby", `{"text":" "}`))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, s, post("lobby", `not json`))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, s, post("nowhere", `{"text":"hi"}`))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestClientRoutes(t *testing.T) {
	s := newTestServer(t)
	member(t, s, "alice", "lobby")

	status, body := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/clients", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])
	clients := body["clients"].([]any)
	require.Len(t, clients, 1)
	first := clients[0].(map[string]any)
	assert.Equal(t, "alice", first["nick"])
	assert.Equal(t, "lobby", first["channel"])

	id := first["id"].(string)
	status, body = doJSON(t, s, httptest.NewRequest(http.MethodGet, "/clients/"+id, nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, "alice", body["nick"])

	status, body = doJSON(t, s, httptest.NewRequest(http.MethodGet, "/clients/missing", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "client not found")
}

func TestPlainRequestToWebSocketPath(t *testing.T) {
	s := newTestServer(t)

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/chat-ws")
	s.http.Handler(&ctx)

	assert.Equal(t, fasthttp.StatusUpgradeRequired, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"error":"upgrade_required","message":"WebSocket upgrade required"}`, string(ctx.Response.Body()))
}

// startServer serves s on an in-memory listener and returns a dialer for it.
func startServer(t *testing.T, s *Server) *websocket.Dialer {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
		assert.NoError(t, <-errCh)
	})
	return &websocket.Dialer{
		NetDial:          func(string, string) (net.Conn, error) { return ln.Dial() },
		HandshakeTimeout: time.Second,
	}
}

func dial(t *testing.T, d *websocket.Dialer) *websocket.Conn {
	t.Helper()
	conn, _, err := d.Dial("ws://relay/chat-ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// next reads packets until one with the given type arrives.
func next(t *testing.T, conn *websocket.Conn, kind string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var packet map[string]any
		require.NoError(t, json.Unmarshal(data, &packet))
		if packet["type"] == kind {
			return packet
		}
	}
}

func TestWebSocketSession(t *testing.T) {
	s := newTestServer(t)
	d := startServer(t, s)

	alice := dial(t, d)
	bob := dial(t, d)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","room":"lobby","nick":"alice"}`)))
	assert.Equal(t, "joined #lobby", next(t, alice, "info")["text"])

	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"join","channel":"lobby","nick":"bob"}`)))
	assert.Equal(t, "bob", next(t, alice, "user_joined")["nick"])
	next(t, bob, "info")

	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","text":"hi","id":"m1"}`)))
	msg := next(t, alice, "message")
	assert.Equal(t, map[string]any{"type": "message", "channel": "lobby", "nick": "bob", "text": "hi", "id": "m1"}, msg)

	ack := next(t, bob, "message_ack")
	assert.Equal(t, "m1", ack["id"])
	delivered := next(t, bob, "message_delivered")
	assert.Equal(t, []any{"alice"}, delivered["deliveredTo"])

	require.NoError(t, bob.Close())
	left := next(t, alice, "user_left")
	assert.Equal(t, map[string]any{"type": "user_left", "nick": "bob", "channel": "lobby"}, left)

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice"}, s.hub.Names("lobby"))
}

func TestShutdownClosesSessions(t *testing.T) {
	s := newTestServer(t)
	d := startServer(t, s)

	conn := dial(t, d)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Zero(t, s.hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestAttachTap(t *testing.T) {
	s := newTestServer(t)
	tp := tap.NewRedisTap(tap.DefaultRedisConfig(), zerolog.Nop())
	s.AttachTap(tp)
	assert.Same(t, tp, s.tap)

	conn := member(t, s, "alice", "lobby")
	_, err := s.service.Announce("lobby", "tap is idle")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(conn.OfType("info")) == 1 }, time.Second, 2*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.False(t, tp.Available())
}
