package service

import (
	"context"

	"github.com/spec-kit/presence-service/internal/domain"
)

// MembershipReader is the slice of the room/membership collaborator the gate
// needs. Membership is owned elsewhere; the gate only queries it.
type MembershipReader interface {
	IsMember(ctx context.Context, userID, channelID string) (bool, error)
}

// AccessService decides whether an identity may observe or act in a channel.
// It is a pure function of current membership state: callers re-check on
// every gated operation so membership changes apply without reconnecting.
type AccessService struct {
	members MembershipReader
}

// NewAccessService builds the gate.
func NewAccessService(members MembershipReader) *AccessService {
	return &AccessService{members: members}
}

// CanAccess reports whether the identity may interact with the channel.
// Public channels admit everyone; private channels admit only authenticated
// members.
func (s *AccessService) CanAccess(ctx context.Context, channel *domain.Channel, identity domain.Identity) (bool, error) {
	if channel.IsPublic() {
		return true, nil
	}
	if !identity.IsAuthenticated() {
		return false, nil
	}
	return s.members.IsMember(ctx, identity.UserID, channel.ID)
}
