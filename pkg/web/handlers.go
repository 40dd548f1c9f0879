package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-voicechat/pkg/host"
	"github.com/teslashibe/go-voicechat/pkg/hub"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleTurn starts a turn: 202 accepted, 409 busy, 410 closed.
func (s *Server) handleTurn(c *fiber.Ctx) error {
	err := s.backend.Trigger()
	switch {
	case err == nil:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
	case errors.Is(err, host.ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, host.ErrClosed):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.backend.Status())
}

func (s *Server) handleConversation(c *fiber.Ctx) error {
	return c.JSON(s.backend.History())
}

// handleStatusWS sends the current status, then live updates.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	first, err := hub.NewJSONMessage(statusUpdate{Event: "snapshot", Status: s.backend.Status(), Time: time.Now()})
	if err != nil {
		return
	}
	if client := hub.NewClient(s.statusHub, conn, first); client != nil {
		client.Run()
	}
}

// handleConversationWS replays the history, then streams new entries.
func (s *Server) handleConversationWS(conn *websocket.Conn) {
	history := s.backend.History()
	initial := make([]hub.Message, 0, len(history))
	for i := range history {
		msg, err := hub.NewJSONMessage(&history[i])
		if err != nil {
			return
		}
		initial = append(initial, msg)
	}
	if client := hub.NewClient(s.conversationHub, conn, initial...); client != nil {
		client.Run()
	}
}
