package server

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/relay/config"
	"github.com/orchestra-mcp/relay/src/dispatch"
	"github.com/orchestra-mcp/relay/src/gateway"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/service"
	"github.com/orchestra-mcp/relay/src/tap"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Server wires the relay components behind one fasthttp listener: the
// WebSocket endpoint at cfg.Path and the Fiber REST routes everywhere else.
type Server struct {
	cfg      *config.RelayConfig
	hub      *hub.Hub
	caster   *hub.Broadcaster
	gateway  *gateway.Gateway
	monitor  *hub.Monitor
	service  *service.Service
	tap      *tap.RedisTap
	app      *fiber.App
	http     *fasthttp.Server
	upgrader websocket.FastHTTPUpgrader
	logger   zerolog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New builds a Server from cfg.
func New(cfg *config.RelayConfig, logger zerolog.Logger) *Server {
	h := hub.New(logger)
	caster := hub.NewBroadcaster(h, logger)
	d := dispatch.New(h, caster, dispatch.Options{Acks: cfg.Acks}, logger)
	gw := gateway.New(h, caster, d, cfg.SendBufferSize, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		hub:     h,
		caster:  caster,
		gateway: gw,
		monitor: hub.NewMonitor(h, cfg.PingInterval, gw.Teardown, logger),
		service: service.New(h, caster, logger),
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*fasthttp.RequestCtx) bool { return true },
		},
		logger: logger.With().Str("component", "server").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	s.app = fiber.New(fiber.Config{AppName: "relay"})
	s.registerRoutes(s.app)

	restHandler := s.app.Handler()
	s.http = &fasthttp.Server{
		Name: "relay",
		Handler: func(ctx *fasthttp.RequestCtx) {
			if string(ctx.Path()) == s.cfg.Path {
				s.handleWebSocket(ctx)
				return
			}
			restHandler(ctx)
		},
	}
	return s
}

// AttachTap mirrors every channel broadcast through t.
func (s *Server) AttachTap(t *tap.RedisTap) {
	s.tap = t
	s.caster.SetMirror(t)
}

func (s *Server) handleWebSocket(ctx *fasthttp.RequestCtx) {
	upgrade := string(ctx.Request.Header.Peek("Upgrade"))
	if !strings.EqualFold(upgrade, "websocket") {
		ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
		return
	}

	err := s.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		s.gateway.Serve(newWSConn(conn, s.cfg.WriteTimeout, s.cfg.MaxMessageBytes))
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
	}
}

// Serve starts the liveness monitor and serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	go s.monitor.Run(s.ctx)

	s.logger.Info().Str("addr", ln.Addr().String()).Str("path", s.cfg.Path).Msg("relay listening")
	return s.http.Serve(ln)
}

// ListenAndServe listens on cfg.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.Shutdown(context.Background()); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops the monitor, tears down every session, stops the tap and
// closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		s.gateway.CloseAll()
		if s.tap != nil {
			if stopErr := s.tap.Stop(); stopErr != nil {
				s.logger.Error().Err(stopErr).Msg("tap stop error")
			}
		}
		err = s.http.ShutdownWithContext(ctx)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
