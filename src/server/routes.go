package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/relay/src/service"
)

type announceRequest struct {
	Text string `json:"text"`
}

// registerRoutes registers the REST introspection routes via Fiber.
// The WebSocket upgrade itself is served by the raw fasthttp handler, since
// Fiber v3 does not expose *fasthttp.RequestCtx to route handlers.
func (s *Server) registerRoutes(app *fiber.App) {
	app.Get("/healthz", s.handleHealth)
	app.Get("/ws/info", s.handleInfo)
	app.Get("/channels", s.handleChannels)
	app.Get("/channels/:name", s.handlePresence)
	app.Post("/channels/:name/announce", s.handleAnnounce)
	app.Get("/clients", s.handleClients)
	app.Get("/clients/:id", s.handleClient)
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	h := s.service.Hub()
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  s.cfg.Path,
		"clients":   h.ClientCount(),
		"channels":  len(h.Channels()),
	})
}

func (s *Server) handleChannels(c fiber.Ctx) error {
	channels := s.service.GetChannels()
	return c.JSON(fiber.Map{"channels": channels, "count": len(channels)})
}

func (s *Server) handlePresence(c fiber.Ctx) error {
	presence, err := s.service.GetPresence(c.Params("name"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(presence)
}

func (s *Server) handleAnnounce(c fiber.Ctx) error {
	var req announceRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json body"})
	}
	recipients, err := s.service.Announce(c.Params("name"), req.Text)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"published": true, "channel": c.Params("name"), "recipients": recipients})
}

func (s *Server) handleClients(c fiber.Ctx) error {
	clients := s.service.Clients()
	return c.JSON(fiber.Map{"clients": clients, "count": len(clients)})
}

func (s *Server) handleClient(c fiber.Ctx) error {
	info, err := s.service.Client(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(info)
}

func writeError(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrChannelNotFound), errors.Is(err, service.ErrClientNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrEmptyText):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
