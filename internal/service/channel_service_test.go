package service_test

import (
	"context"
	"testing"

	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/service"
	apperrors "github.com/spec-kit/presence-service/pkg/util/errorutil"
)

type recordedMessage struct {
	channelID string
	userID    string
	content   string
}

// recordingSink stands in for the external message store behind MessageSink.
type recordingSink struct {
	appended []recordedMessage
}

func (s *recordingSink) Append(_ context.Context, channelID, userID, content string) error {
	s.appended = append(s.appended, recordedMessage{channelID: channelID, userID: userID, content: content})
	return nil
}

func newChannelFixture() (*service.ChannelService, *fakeChannelRepo) {
	channels := newFakeChannelRepo()
	channels.add(domain.Channel{ID: "general", Name: "general", Type: domain.ChannelTypePublic})
	channels.add(domain.Channel{ID: "staff-room", Name: "staff-room", Type: domain.ChannelTypePrivate})
	channels.addMember("staff-room", "u-alice")
	return service.NewChannelService(channels, service.NewAccessService(channels)), channels
}

func TestAuthorizeSendRequiresAuthentication(t *testing.T) {
	svc, _ := newChannelFixture()
	ctx := context.Background()

	for _, sender := range []domain.Identity{
		domain.AnonymousIdentity("anon-1"),
		domain.NoIdentity(),
	} {
		_, err := svc.AuthorizeSend(ctx, "general", sender)
		if err == nil {
			t.Fatalf("%s sender must not be allowed to post", sender.Kind)
		}
		domainErr := apperrors.ToDomainError(err)
		if domainErr.Code != "UNAUTHORIZED" {
			t.Errorf("%s sender: expected UNAUTHORIZED, got %s", sender.Kind, domainErr.Code)
		}
	}
}

func TestAuthorizeSendUnknownChannelIsNotFound(t *testing.T) {
	svc, _ := newChannelFixture()

	_, err := svc.AuthorizeSend(context.Background(), "nope", domain.AuthenticatedIdentity("u-alice"))
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAuthorizeSendGatesPrivateChannels(t *testing.T) {
	svc, _ := newChannelFixture()
	ctx := context.Background()

	if _, err := svc.AuthorizeSend(ctx, "staff-room", domain.AuthenticatedIdentity("u-bob")); !apperrors.IsAccessDenied(err) {
		t.Fatalf("non-member should be denied, got %v", err)
	}

	channel, err := svc.AuthorizeSend(ctx, "staff-room", domain.AuthenticatedIdentity("u-alice"))
	if err != nil {
		t.Fatalf("member should be authorized: %v", err)
	}
	if channel.ID != "staff-room" {
		t.Errorf("expected the resolved channel back, got %+v", channel)
	}
}

func TestAuthorizeSendHandsOffToSink(t *testing.T) {
	svc, _ := newChannelFixture()
	ctx := context.Background()
	sink := &recordingSink{}
	sender := domain.AuthenticatedIdentity("u-alice")

	channel, err := svc.AuthorizeSend(ctx, "general", sender)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := sink.Append(ctx, channel.ID, sender.UserID, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(sink.appended) != 1 || sink.appended[0].channelID != "general" {
		t.Errorf("expected one message appended to general, got %+v", sink.appended)
	}
}

func TestListChannelsMergesPublicAndMemberships(t *testing.T) {
	svc, _ := newChannelFixture()
	ctx := context.Background()

	channels, err := svc.ListChannels(ctx, domain.AnonymousIdentity("anon-1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(channels) != 1 || channels[0].ID != "general" {
		t.Fatalf("anonymous viewers see only public channels, got %+v", channels)
	}

	channels, err = svc.ListChannels(ctx, domain.AuthenticatedIdentity("u-alice"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("members see their private channels too, got %+v", channels)
	}
}

func TestGetChannelForViewerAppliesGate(t *testing.T) {
	svc, _ := newChannelFixture()
	ctx := context.Background()

	if _, err := svc.GetChannelForViewer(ctx, "staff-room", domain.AnonymousIdentity("anon-1")); !apperrors.IsAccessDenied(err) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if _, err := svc.GetChannelForViewer(ctx, "nope", domain.NoIdentity()); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	channel, err := svc.GetChannelForViewer(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("public lookup: %v", err)
	}
	if channel.Name != "general" {
		t.Errorf("unexpected channel %+v", channel)
	}
}
