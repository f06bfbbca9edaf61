package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/repository"
	apperrors "github.com/spec-kit/presence-service/pkg/util/errorutil"
)

// MessageSink is the external collaborator that persists chat messages.
// Message storage lives outside this service; callers gate with
// AuthorizeSend before handing content to a sink.
type MessageSink interface {
	Append(ctx context.Context, channelID, userID, content string) error
}

// ChannelService exposes the channel directory and the send-side access gate.
type ChannelService struct {
	channels repository.ChannelRepository
	access   *AccessService
}

// NewChannelService constructs the service.
func NewChannelService(channels repository.ChannelRepository, access *AccessService) *ChannelService {
	return &ChannelService{channels: channels, access: access}
}

// ListChannels returns every public channel plus, for authenticated viewers,
// the private channels they belong to.
func (s *ChannelService) ListChannels(ctx context.Context, viewer domain.Identity) ([]domain.Channel, error) {
	public, err := s.channels.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAuthenticated() {
		return public, nil
	}

	member, err := s.channels.ListForMember(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(public))
	channels := make([]domain.Channel, 0, len(public)+len(member))
	for _, channel := range public {
		seen[channel.ID] = struct{}{}
		channels = append(channels, channel)
	}
	for _, channel := range member {
		if _, ok := seen[channel.ID]; ok {
			continue
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

// GetChannelForViewer resolves a channel by name and applies the access gate.
func (s *ChannelService) GetChannelForViewer(ctx context.Context, name string, viewer domain.Identity) (*domain.Channel, error) {
	channel, err := s.channels.GetByName(ctx, name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("channel", map[string]any{"name": name})
		}
		return nil, err
	}

	allowed, err := s.access.CanAccess(ctx, channel, viewer)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.NewAccessDenied("channel is restricted")
	}
	return channel, nil
}

// AuthorizeSend gates message posting: the sender must be authenticated and
// pass the access gate for the channel. It returns the channel so the message
// layer can hand off to its MessageSink without a second lookup.
func (s *ChannelService) AuthorizeSend(ctx context.Context, channelID string, sender domain.Identity) (*domain.Channel, error) {
	if !sender.IsAuthenticated() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("channel", nil)
		}
		return nil, err
	}

	allowed, err := s.access.CanAccess(ctx, channel, sender)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.NewAccessDenied("channel is restricted")
	}
	return channel, nil
}
