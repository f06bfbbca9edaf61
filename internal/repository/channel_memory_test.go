package repository_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/repository"
)

func TestMemoryChannelDirectoryIsSeeded(t *testing.T) {
	repo := repository.NewMemoryChannelRepository()
	ctx := context.Background()

	channel, err := repo.GetByID(ctx, "general")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if !channel.IsPublic() {
		t.Error("seeded channel should be public")
	}

	byName, err := repo.GetByName(ctx, "general")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if byName.ID != channel.ID {
		t.Errorf("lookups disagree: %q vs %q", byName.ID, channel.ID)
	}
}

func TestMemoryChannelDirectoryMissIsErrNoRows(t *testing.T) {
	repo := repository.NewMemoryChannelRepository()

	if _, err := repo.GetByID(context.Background(), "nope"); err != pgx.ErrNoRows {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
	if _, err := repo.GetByName(context.Background(), "nope"); err != pgx.ErrNoRows {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestMemoryChannelDirectoryMembership(t *testing.T) {
	repo := repository.NewMemoryChannelRepository()
	ctx := context.Background()

	repo.Put(domain.Channel{ID: "staff-room", Name: "staff-room", Type: domain.ChannelTypePrivate})
	repo.PutMember("staff-room", "u-alice")

	isMember, err := repo.IsMember(ctx, "u-alice", "staff-room")
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if !isMember {
		t.Error("granted membership should be visible")
	}

	isMember, err = repo.IsMember(ctx, "u-bob", "staff-room")
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if isMember {
		t.Error("bob was never granted membership")
	}

	channels, err := repo.ListForMember(ctx, "u-alice")
	if err != nil {
		t.Fatalf("list for member: %v", err)
	}
	if len(channels) != 1 || channels[0].ID != "staff-room" {
		t.Errorf("expected alice's private channel, got %+v", channels)
	}
}

func TestMemoryChannelDirectoryListsPublicSorted(t *testing.T) {
	repo := repository.NewMemoryChannelRepository()
	ctx := context.Background()

	repo.Put(domain.Channel{ID: "zeta", Name: "zeta", Type: domain.ChannelTypePublic})
	repo.Put(domain.Channel{ID: "alpha", Name: "alpha", Type: domain.ChannelTypePublic})
	repo.Put(domain.Channel{ID: "hidden", Name: "hidden", Type: domain.ChannelTypePrivate})

	channels, err := repo.ListPublic(ctx)
	if err != nil {
		t.Fatalf("list public: %v", err)
	}
	if len(channels) != 3 {
		t.Fatalf("expected 3 public channels, got %d", len(channels))
	}
	for i := 1; i < len(channels); i++ {
		if channels[i-1].Name > channels[i].Name {
			t.Fatalf("channels not sorted by name: %+v", channels)
		}
	}
	for _, channel := range channels {
		if !channel.IsPublic() {
			t.Errorf("private channel leaked into the public list: %+v", channel)
		}
	}
}

func TestMemoryUserStoreRoundTrip(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	ctx := context.Background()

	user := &domain.User{Email: "alice@example.com", PasswordHash: "hash"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.ID == "" {
		t.Fatal("create should assign an id")
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Email != "alice@example.com" {
		t.Errorf("unexpected email %q", byID.Email)
	}

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("lookups disagree: %q vs %q", byEmail.ID, user.ID)
	}

	if _, err := repo.GetByID(ctx, "nope"); err != pgx.ErrNoRows {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}

	users, err := repo.ListByIDs(ctx, []string{user.ID, "nope"})
	if err != nil {
		t.Fatalf("list by ids: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("missing ids are skipped, not errors; got %d users", len(users))
	}
}
