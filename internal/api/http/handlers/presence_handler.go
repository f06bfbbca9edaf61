package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-service/internal/api/dto"
	"github.com/spec-kit/presence-service/internal/auth"
	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/service"
)

// PresenceHandler exposes the heartbeat/leave/typing/roster surface.
type PresenceHandler struct {
	presence *service.PresenceService
}

// NewPresenceHandler constructs handler.
func NewPresenceHandler(presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Heartbeat handles POST /channels/:id/presence/heartbeat.
func (h *PresenceHandler) Heartbeat(c *fiber.Ctx) error {
	var req dto.HeartbeatRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}

	identity := auth.ResolveIdentity(c, req.AnonKey)
	if err := h.presence.Heartbeat(c.Context(), c.Params("id"), identity); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Leave handles POST /channels/:id/presence/leave.
func (h *PresenceHandler) Leave(c *fiber.Ctx) error {
	var req dto.LeaveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}

	// Teardown may outlive the session; an explicit user id override wins.
	identity := auth.ResolveIdentity(c, req.AnonKey)
	if req.UserID != "" {
		identity = domain.AuthenticatedIdentity(req.UserID)
	}
	if err := h.presence.Leave(c.Context(), c.Params("id"), identity); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// TypingBeat handles POST /channels/:id/presence/typing.
func (h *PresenceHandler) TypingBeat(c *fiber.Ctx) error {
	var req dto.TypingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	identity := auth.ResolveIdentity(c, "")
	if err := h.presence.TypingBeat(c.Context(), c.Params("id"), identity, req.Typing); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListOnline handles GET /channels/:id/presence/online.
func (h *PresenceHandler) ListOnline(c *fiber.Ctx) error {
	viewer := auth.ResolveIdentity(c, "")
	roster, err := h.presence.ListOnline(c.Context(), c.Params("id"), viewer)
	if err != nil {
		return err
	}

	resp := dto.RosterResponse{
		Users:     make([]dto.RosterUserResponse, 0, len(roster.Users)),
		Anonymous: roster.AnonymousCount,
	}
	for _, user := range roster.Users {
		resp.Users = append(resp.Users, dto.RosterUserResponse{ID: user.ID, Name: user.Name})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// ListTyping handles GET /channels/:id/presence/typing.
func (h *PresenceHandler) ListTyping(c *fiber.Ctx) error {
	viewer := auth.ResolveIdentity(c, "")
	typing, err := h.presence.ListTyping(c.Context(), c.Params("id"), viewer)
	if err != nil {
		return err
	}

	resp := dto.TypingResponse{Users: make([]dto.RosterUserResponse, 0, len(typing))}
	for _, user := range typing {
		resp.Users = append(resp.Users, dto.RosterUserResponse{ID: user.ID, Name: user.Name})
	}
	return c.JSON(fiber.Map{"data": resp})
}
