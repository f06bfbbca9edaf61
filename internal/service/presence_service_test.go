package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/presence-service/internal/config"
	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/events"
	"github.com/spec-kit/presence-service/internal/repository"
	"github.com/spec-kit/presence-service/internal/service"
	apperrors "github.com/spec-kit/presence-service/pkg/util/errorutil"
)

type fakeChannelRepo struct {
	channels map[string]*domain.Channel
	members  map[string]map[string]bool // channelID -> userID
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{
		channels: make(map[string]*domain.Channel),
		members:  make(map[string]map[string]bool),
	}
}

func (f *fakeChannelRepo) add(channel domain.Channel) {
	f.channels[channel.ID] = &channel
}

func (f *fakeChannelRepo) addMember(channelID, userID string) {
	if f.members[channelID] == nil {
		f.members[channelID] = make(map[string]bool)
	}
	f.members[channelID][userID] = true
}

func (f *fakeChannelRepo) GetByID(_ context.Context, id string) (*domain.Channel, error) {
	channel, ok := f.channels[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return channel, nil
}

func (f *fakeChannelRepo) GetByName(_ context.Context, name string) (*domain.Channel, error) {
	for _, channel := range f.channels {
		if channel.Name == name {
			return channel, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeChannelRepo) ListPublic(context.Context) ([]domain.Channel, error) {
	channels := []domain.Channel{}
	for _, channel := range f.channels {
		if channel.IsPublic() {
			channels = append(channels, *channel)
		}
	}
	return channels, nil
}

func (f *fakeChannelRepo) ListForMember(_ context.Context, userID string) ([]domain.Channel, error) {
	channels := []domain.Channel{}
	for channelID, members := range f.members {
		if members[userID] {
			channels = append(channels, *f.channels[channelID])
		}
	}
	return channels, nil
}

func (f *fakeChannelRepo) IsMember(_ context.Context, userID, channelID string) (bool, error) {
	return f.members[channelID][userID], nil
}

type fakeUserRepo struct {
	users map[string]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]domain.User)}
}

func (f *fakeUserRepo) add(id, email string, username string) {
	user := domain.User{ID: id, Email: email}
	if username != "" {
		user.Username = &username
	}
	f.users[id] = user
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	users := []domain.User{}
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

type presenceFixture struct {
	svc      *service.PresenceService
	presence repository.PresenceRepository
	channels *fakeChannelRepo
	users    *fakeUserRepo
}

func newPresenceFixture(t *testing.T) *presenceFixture {
	t.Helper()

	channels := newFakeChannelRepo()
	channels.add(domain.Channel{ID: "general", Name: "general", Type: domain.ChannelTypePublic})
	channels.add(domain.Channel{ID: "staff-room", Name: "staff-room", Type: domain.ChannelTypePrivate})
	channels.addMember("staff-room", "u-alice")

	users := newFakeUserRepo()
	users.add("u-alice", "alice@example.com", "alice")
	users.add("u-bob", "bob@example.com", "")

	presence := repository.NewMemoryPresenceRepository()

	cfg := config.PresenceConfig{PresenceTTLSeconds: 30, TypingTTLSeconds: 5}
	svc := service.NewPresenceService(cfg, service.PresenceDependencies{
		PresenceRepo: presence,
		ChannelRepo:  channels,
		UserRepo:     users,
		Access:       service.NewAccessService(channels),
		Dispatcher:   events.NewInMemoryDispatcher(),
	})

	return &presenceFixture{svc: svc, presence: presence, channels: channels, users: users}
}

func rosterNames(roster *service.Roster) map[string]string {
	names := make(map[string]string, len(roster.Users))
	for _, user := range roster.Users {
		names[user.ID] = user.Name
	}
	return names
}

func TestListOnlineResolvesDisplayNames(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()

	if err := f.svc.Heartbeat(ctx, "general", domain.AuthenticatedIdentity("u-alice")); err != nil {
		t.Fatalf("heartbeat alice: %v", err)
	}
	if err := f.svc.Heartbeat(ctx, "general", domain.AuthenticatedIdentity("u-bob")); err != nil {
		t.Fatalf("heartbeat bob: %v", err)
	}
	if err := f.svc.Heartbeat(ctx, "general", domain.AnonymousIdentity("anon-1")); err != nil {
		t.Fatalf("heartbeat anon-1: %v", err)
	}
	if err := f.svc.Heartbeat(ctx, "general", domain.AnonymousIdentity("anon-2")); err != nil {
		t.Fatalf("heartbeat anon-2: %v", err)
	}

	roster, err := f.svc.ListOnline(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}

	names := rosterNames(roster)
	if names["u-alice"] != "alice" {
		t.Errorf("alice should show her username, got %q", names["u-alice"])
	}
	// No username set, so the email local part wins.
	if names["u-bob"] != "bob" {
		t.Errorf("bob should show his email local part, got %q", names["u-bob"])
	}
	if roster.AnonymousCount != 2 {
		t.Errorf("expected 2 anonymous viewers, got %d", roster.AnonymousCount)
	}
}

func TestListOnlineFiltersExpiredRecords(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	now := time.Now()

	// 29s old: inside the 30s window. 31s old: expired.
	if _, err := f.presence.Heartbeat(ctx, "general", domain.AuthenticatedIdentity("u-alice"), now.Add(-29*time.Second)); err != nil {
		t.Fatalf("seed alice: %v", err)
	}
	if _, err := f.presence.Heartbeat(ctx, "general", domain.AuthenticatedIdentity("u-bob"), now.Add(-31*time.Second)); err != nil {
		t.Fatalf("seed bob: %v", err)
	}
	if _, err := f.presence.Heartbeat(ctx, "general", domain.AnonymousIdentity("anon-1"), now.Add(-31*time.Second)); err != nil {
		t.Fatalf("seed anon: %v", err)
	}

	roster, err := f.svc.ListOnline(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}

	names := rosterNames(roster)
	if _, ok := names["u-alice"]; !ok {
		t.Error("a record inside the window should be listed")
	}
	if _, ok := names["u-bob"]; ok {
		t.Error("an expired record should be filtered out")
	}
	if roster.AnonymousCount != 0 {
		t.Errorf("expired anonymous records should not be counted, got %d", roster.AnonymousCount)
	}
}

func TestListOnlineUnknownProfileFallsBackToSentinel(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()

	if err := f.svc.Heartbeat(ctx, "general", domain.AuthenticatedIdentity("u-ghost")); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	roster, err := f.svc.ListOnline(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if got := rosterNames(roster)["u-ghost"]; got != domain.AnonymousDisplayName {
		t.Errorf("missing profile should resolve to %q, got %q", domain.AnonymousDisplayName, got)
	}
}

func TestListOnlineUnknownChannelIsNotFound(t *testing.T) {
	f := newPresenceFixture(t)

	_, err := f.svc.ListOnline(context.Background(), "nope", domain.NoIdentity())
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPrivateChannelGatesRosterReads(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()

	if err := f.svc.Heartbeat(ctx, "staff-room", domain.AuthenticatedIdentity("u-alice")); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	cases := []struct {
		name    string
		viewer  domain.Identity
		allowed bool
	}{
		{"member", domain.AuthenticatedIdentity("u-alice"), true},
		{"non-member", domain.AuthenticatedIdentity("u-bob"), false},
		{"anonymous", domain.AnonymousIdentity("anon-1"), false},
		{"unresolved", domain.NoIdentity(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			roster, err := f.svc.ListOnline(ctx, "staff-room", tc.viewer)
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected access, got %v", err)
				}
				if len(roster.Users) != 1 {
					t.Errorf("expected one user in roster, got %d", len(roster.Users))
				}
				return
			}
			if !apperrors.IsAccessDenied(err) {
				t.Fatalf("expected access denied, got %v", err)
			}
		})
	}
}

func TestMutationsAreNotGated(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	anon := domain.AnonymousIdentity("anon-1")

	// Heartbeat and leave skip the gate even on a private channel; only the
	// roster reads reveal anything.
	if err := f.svc.Heartbeat(ctx, "staff-room", anon); err != nil {
		t.Fatalf("heartbeat should not be gated: %v", err)
	}
	if err := f.svc.Leave(ctx, "staff-room", anon); err != nil {
		t.Fatalf("leave should not be gated: %v", err)
	}
}

func TestNoneIdentityWritesAreSilentNoOps(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	none := domain.NoIdentity()

	if err := f.svc.Heartbeat(ctx, "general", none); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := f.svc.Leave(ctx, "general", none); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := f.svc.TypingBeat(ctx, "general", none, true); err != nil {
		t.Fatalf("typing: %v", err)
	}

	roster, err := f.svc.ListOnline(ctx, "general", none)
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(roster.Users) != 0 || roster.AnonymousCount != 0 {
		t.Errorf("unresolved identity must leave no trace, got %+v", roster)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	alice := domain.AuthenticatedIdentity("u-alice")

	if err := f.svc.Heartbeat(ctx, "general", alice); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := f.svc.Leave(ctx, "general", alice); err != nil {
		t.Fatalf("first leave: %v", err)
	}
	if err := f.svc.Leave(ctx, "general", alice); err != nil {
		t.Fatalf("second leave should be absence-tolerant: %v", err)
	}

	roster, err := f.svc.ListOnline(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(roster.Users) != 0 {
		t.Errorf("expected empty roster after leave, got %d users", len(roster.Users))
	}
}

func TestListTypingFiltersByTypingWindow(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	now := time.Now()

	// 4s old: inside the 5s window. 6s old: expired.
	if err := f.presence.UpsertTyping(ctx, "general", "u-alice", true, now.Add(-4*time.Second)); err != nil {
		t.Fatalf("seed alice: %v", err)
	}
	if err := f.presence.UpsertTyping(ctx, "general", "u-bob", true, now.Add(-6*time.Second)); err != nil {
		t.Fatalf("seed bob: %v", err)
	}

	typing, err := f.svc.ListTyping(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("list typing: %v", err)
	}
	if len(typing) != 1 || typing[0].ID != "u-alice" {
		t.Fatalf("expected only alice typing, got %+v", typing)
	}
	if typing[0].Name != "alice" {
		t.Errorf("typing entries carry display names, got %q", typing[0].Name)
	}
}

func TestTypingFalseClearsWithoutLeavingChannel(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	alice := domain.AuthenticatedIdentity("u-alice")

	if err := f.svc.Heartbeat(ctx, "general", alice); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := f.svc.TypingBeat(ctx, "general", alice, true); err != nil {
		t.Fatalf("typing true: %v", err)
	}
	if err := f.svc.TypingBeat(ctx, "general", alice, false); err != nil {
		t.Fatalf("typing false: %v", err)
	}

	typing, err := f.svc.ListTyping(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("list typing: %v", err)
	}
	if len(typing) != 0 {
		t.Errorf("typing=false should clear the indicator, got %+v", typing)
	}

	roster, err := f.svc.ListOnline(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("list online: %v", err)
	}
	if len(roster.Users) != 1 {
		t.Errorf("clearing typing must not remove the presence record, got %d users", len(roster.Users))
	}
}

func TestAnonymousTypingIsIgnored(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()

	if err := f.svc.TypingBeat(ctx, "general", domain.AnonymousIdentity("anon-1"), true); err != nil {
		t.Fatalf("typing: %v", err)
	}

	typing, err := f.svc.ListTyping(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("list typing: %v", err)
	}
	if len(typing) != 0 {
		t.Errorf("anonymous identities never appear in typing, got %+v", typing)
	}
}

func TestSweepStaleRemovesOnlyOldRecords(t *testing.T) {
	f := newPresenceFixture(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := f.presence.Heartbeat(ctx, "general", domain.AuthenticatedIdentity("u-alice"), now); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}
	if _, err := f.presence.Heartbeat(ctx, "general", domain.AnonymousIdentity("anon-1"), now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("seed stale: %v", err)
	}

	removed, err := f.svc.SweepStale(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 record swept, got %d", removed)
	}

	records, err := f.presence.ListByChannel(ctx, "general")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("fresh record should survive the sweep, got %d records", len(records))
	}
}

func TestGatedReadsServeOnAllMemoryStores(t *testing.T) {
	// The DSN-less wiring backs channels, users, and presence with the
	// in-memory stores; the full gated read path has to work against them.
	channels := repository.NewMemoryChannelRepository()
	channels.Put(domain.Channel{ID: "staff-room", Name: "staff-room", Type: domain.ChannelTypePrivate})
	channels.PutMember("staff-room", "u-alice")
	users := repository.NewMemoryUserRepository()

	svc := service.NewPresenceService(
		config.PresenceConfig{PresenceTTLSeconds: 30, TypingTTLSeconds: 5},
		service.PresenceDependencies{
			PresenceRepo: repository.NewMemoryPresenceRepository(),
			ChannelRepo:  channels,
			UserRepo:     users,
			Access:       service.NewAccessService(channels),
			Dispatcher:   events.NewInMemoryDispatcher(),
		},
	)

	ctx := context.Background()
	if err := svc.Heartbeat(ctx, "general", domain.AnonymousIdentity("anon-1")); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	roster, err := svc.ListOnline(ctx, "general", domain.NoIdentity())
	if err != nil {
		t.Fatalf("list online on seeded channel: %v", err)
	}
	if roster.AnonymousCount != 1 {
		t.Errorf("expected the anonymous heartbeat in the roster, got %+v", roster)
	}

	if _, err := svc.ListOnline(ctx, "staff-room", domain.AnonymousIdentity("anon-1")); !apperrors.IsAccessDenied(err) {
		t.Fatalf("expected access denied on the private channel, got %v", err)
	}
	if _, err := svc.ListOnline(ctx, "staff-room", domain.AuthenticatedIdentity("u-alice")); err != nil {
		t.Fatalf("member read should pass the gate: %v", err)
	}
	if _, err := svc.ListOnline(ctx, "missing", domain.NoIdentity()); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found for an unknown channel, got %v", err)
	}
}

func TestHeartbeatPublishesJoinOnlyOnCreate(t *testing.T) {
	channels := newFakeChannelRepo()
	channels.add(domain.Channel{ID: "general", Name: "general", Type: domain.ChannelTypePublic})
	dispatcher := events.NewInMemoryDispatcher()

	var mu sync.Mutex
	var joined int
	dispatcher.Subscribe(events.EventPresenceJoined, func(context.Context, events.Event) error {
		mu.Lock()
		joined++
		mu.Unlock()
		return nil
	})

	svc := service.NewPresenceService(
		config.PresenceConfig{PresenceTTLSeconds: 30, TypingTTLSeconds: 5},
		service.PresenceDependencies{
			PresenceRepo: repository.NewMemoryPresenceRepository(),
			ChannelRepo:  channels,
			UserRepo:     newFakeUserRepo(),
			Access:       service.NewAccessService(channels),
			Dispatcher:   dispatcher,
		},
	)

	ctx := context.Background()
	alice := domain.AuthenticatedIdentity("u-alice")
	for i := 0; i < 3; i++ {
		if err := svc.Heartbeat(ctx, "general", alice); err != nil {
			t.Fatalf("heartbeat %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if joined != 1 {
		t.Errorf("refreshes must not re-announce a join, got %d events", joined)
	}
}
