package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-service/internal/api/dto"
	"github.com/spec-kit/presence-service/internal/auth"
	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/service"
)

// ChannelsHandler exposes the channel directory.
type ChannelsHandler struct {
	channels *service.ChannelService
}

// NewChannelsHandler constructs handler.
func NewChannelsHandler(channels *service.ChannelService) *ChannelsHandler {
	return &ChannelsHandler{channels: channels}
}

// List handles GET /channels.
func (h *ChannelsHandler) List(c *fiber.Ctx) error {
	viewer := auth.ResolveIdentity(c, "")
	channels, err := h.channels.ListChannels(c.Context(), viewer)
	if err != nil {
		return err
	}

	resp := make([]dto.ChannelResponse, 0, len(channels))
	for _, channel := range channels {
		resp = append(resp, channelResponse(channel))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetByName handles GET /channels/:name.
func (h *ChannelsHandler) GetByName(c *fiber.Ctx) error {
	viewer := auth.ResolveIdentity(c, "")
	channel, err := h.channels.GetChannelForViewer(c.Context(), c.Params("name"), viewer)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": channelResponse(*channel)})
}

func channelResponse(channel domain.Channel) dto.ChannelResponse {
	return dto.ChannelResponse{
		ID:          channel.ID,
		Name:        channel.Name,
		Description: channel.Description,
		Type:        string(channel.Type),
	}
}
