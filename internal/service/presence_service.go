package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/presence-service/internal/config"
	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/events"
	"github.com/spec-kit/presence-service/internal/repository"
	apperrors "github.com/spec-kit/presence-service/pkg/util/errorutil"
)

// RosterUser is one named entry in a channel roster.
type RosterUser struct {
	ID   string
	Name string
}

// Roster is the computed set of currently-live identities for a channel.
type Roster struct {
	Users          []RosterUser
	AnonymousCount int
}

// PresenceService coordinates the heartbeat, leave, typing, and roster
// protocols on top of the presence store.
type PresenceService struct {
	presence    repository.PresenceRepository
	channels    repository.ChannelRepository
	users       repository.UserRepository
	access      *AccessService
	dispatcher  events.Dispatcher
	presenceTTL time.Duration
	typingTTL   time.Duration
}

// PresenceDependencies bundles collaborators for the presence service.
type PresenceDependencies struct {
	PresenceRepo repository.PresenceRepository
	ChannelRepo  repository.ChannelRepository
	UserRepo     repository.UserRepository
	Access       *AccessService
	Dispatcher   events.Dispatcher
}

// NewPresenceService constructs the service.
func NewPresenceService(cfg config.PresenceConfig, deps PresenceDependencies) *PresenceService {
	return &PresenceService{
		presence:    deps.PresenceRepo,
		channels:    deps.ChannelRepo,
		users:       deps.UserRepo,
		access:      deps.Access,
		dispatcher:  deps.Dispatcher,
		presenceTTL: cfg.PresenceTTL(),
		typingTTL:   cfg.TypingTTL(),
	}
}

// Heartbeat refreshes the caller's liveness record. An unresolved identity is
// a silent no-op, not an error: anonymous clients may heartbeat before a key
// exists. Heartbeats are deliberately ungated; the roster reads are what the
// gate protects.
func (s *PresenceService) Heartbeat(ctx context.Context, channelID string, identity domain.Identity) error {
	if identity.IsNone() {
		return nil
	}
	created, err := s.presence.Heartbeat(ctx, channelID, identity, time.Now())
	if err != nil {
		return err
	}
	if created {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventPresenceJoined,
			ChannelID: channelID,
			Payload: events.PresenceJoinedPayload{
				IdentityKind: identity.Kind,
				UserID:       identity.UserID,
			},
		})
	}
	return nil
}

// Leave removes the caller's liveness record. Absence is not an error, so a
// leave that races a concurrent heartbeat or fires twice stays safe.
func (s *PresenceService) Leave(ctx context.Context, channelID string, identity domain.Identity) error {
	if identity.IsNone() {
		return nil
	}
	deleted, err := s.presence.Delete(ctx, channelID, identity)
	if err != nil {
		return err
	}
	if deleted {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventPresenceLeft,
			ChannelID: channelID,
			Payload: events.PresenceLeftPayload{
				IdentityKind: identity.Kind,
				UserID:       identity.UserID,
			},
		})
	}
	return nil
}

// TypingBeat records or clears the caller's typing timestamp. Only
// authenticated identities carry typing state; anonymous and unresolved
// callers are accepted but produce no state change.
func (s *PresenceService) TypingBeat(ctx context.Context, channelID string, identity domain.Identity, typing bool) error {
	if !identity.IsAuthenticated() {
		return nil
	}
	if err := s.presence.UpsertTyping(ctx, channelID, identity.UserID, typing, time.Now()); err != nil {
		return err
	}
	if typing {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTypingStarted,
			ChannelID: channelID,
			Payload:   events.TypingStartedPayload{UserID: identity.UserID},
		})
	}
	return nil
}

// ListOnline computes the roster of identities live within the presence TTL,
// split into named users and an anonymous count. Reads are gated: a viewer
// that cannot access the channel learns nothing about who is in it.
func (s *PresenceService) ListOnline(ctx context.Context, channelID string, viewer domain.Identity) (*Roster, error) {
	channel, err := s.authorizeRead(ctx, channelID, viewer)
	if err != nil {
		return nil, err
	}

	records, err := s.presence.ListByChannel(ctx, channel.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	userIDs := make([]string, 0, len(records))
	seenUsers := make(map[string]struct{}, len(records))
	seenAnonKeys := make(map[string]struct{})
	for _, record := range records {
		if !record.LiveAt(now, s.presenceTTL) {
			continue
		}
		switch identity := record.Identity(); {
		case identity.IsAuthenticated():
			// Dedupe defensively: the store invariant should already
			// prevent duplicates, but the read path tolerates violation.
			if _, ok := seenUsers[identity.UserID]; ok {
				continue
			}
			seenUsers[identity.UserID] = struct{}{}
			userIDs = append(userIDs, identity.UserID)
		case identity.IsAnonymous():
			seenAnonKeys[identity.AnonKey] = struct{}{}
		}
	}

	names, err := s.resolveDisplayNames(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	roster := &Roster{
		Users:          make([]RosterUser, 0, len(userIDs)),
		AnonymousCount: len(seenAnonKeys),
	}
	for _, id := range userIDs {
		roster.Users = append(roster.Users, RosterUser{ID: id, Name: names[id]})
	}
	return roster, nil
}

// ListTyping returns the named users whose typing timestamp is live within
// the typing TTL. Anonymous typists are excluded entirely.
func (s *PresenceService) ListTyping(ctx context.Context, channelID string, viewer domain.Identity) ([]RosterUser, error) {
	channel, err := s.authorizeRead(ctx, channelID, viewer)
	if err != nil {
		return nil, err
	}

	records, err := s.presence.ListByChannel(ctx, channel.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	userIDs := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		if !record.TypingLiveAt(now, s.typingTTL) {
			continue
		}
		identity := record.Identity()
		if !identity.IsAuthenticated() {
			continue
		}
		if _, ok := seen[identity.UserID]; ok {
			continue
		}
		seen[identity.UserID] = struct{}{}
		userIDs = append(userIDs, identity.UserID)
	}

	names, err := s.resolveDisplayNames(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	typing := make([]RosterUser, 0, len(userIDs))
	for _, id := range userIDs {
		typing = append(typing, RosterUser{ID: id, Name: names[id]})
	}
	return typing, nil
}

// SweepStale drops records older than the retention cutoff. Roster reads
// never depend on it; it only bounds storage growth.
func (s *PresenceService) SweepStale(ctx context.Context, olderThan time.Time) (int64, error) {
	removed, err := s.presence.DeleteStale(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.publishEvent(ctx, events.Event{
			Type:    events.EventPresenceSwept,
			Payload: events.PresenceSweptPayload{Removed: removed},
		})
	}
	return removed, nil
}

func (s *PresenceService) authorizeRead(ctx context.Context, channelID string, viewer domain.Identity) (*domain.Channel, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("channel", nil)
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

// resolveDisplayNames batch-loads profiles and falls back to the anonymous
// sentinel for ids whose lookup fails.
func (s *PresenceService) resolveDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		names[id] = domain.AnonymousDisplayName
	}
	if len(userIDs) == 0 {
		return names, nil
	}
	users, err := s.users.ListByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		names[user.ID] = user.DisplayName()
	}
	return names, nil
}

func (s *PresenceService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
