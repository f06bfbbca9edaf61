package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/presence-service/internal/domain"
)

// MemoryChannelRepository is a mutex-guarded channel directory backing the
// service when no Postgres DSN is configured. It starts with the same seeded
// public "general" channel the SQL migrations create, so roster reads work
// out of the box in that mode.
type MemoryChannelRepository struct {
	mu       sync.Mutex
	channels map[string]domain.Channel
	// channelID -> userID -> membership
	members map[string]map[string]bool
}

// NewMemoryChannelRepository returns the seeded in-memory directory.
func NewMemoryChannelRepository() *MemoryChannelRepository {
	r := &MemoryChannelRepository{
		channels: make(map[string]domain.Channel),
		members:  make(map[string]map[string]bool),
	}
	r.Put(domain.Channel{
		ID:          "general",
		Name:        "general",
		Description: "General discussion",
		Type:        domain.ChannelTypePublic,
		CreatedAt:   time.Now(),
	})
	return r
}

// Put inserts or replaces a channel.
func (r *MemoryChannelRepository) Put(channel domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channel.ID] = channel
}

// PutMember records a membership grant.
func (r *MemoryChannelRepository) PutMember(channelID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[channelID] == nil {
		r.members[channelID] = make(map[string]bool)
	}
	r.members[channelID][userID] = true
}

func (r *MemoryChannelRepository) GetByID(_ context.Context, id string) (*domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channel, ok := r.channels[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &channel, nil
}

func (r *MemoryChannelRepository) GetByName(_ context.Context, name string) (*domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, channel := range r.channels {
		if channel.Name == name {
			found := channel
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryChannelRepository) ListPublic(context.Context) ([]domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels := []domain.Channel{}
	for _, channel := range r.channels {
		if channel.IsPublic() {
			channels = append(channels, channel)
		}
	}
	sortChannelsByName(channels)
	return channels, nil
}

func (r *MemoryChannelRepository) ListForMember(_ context.Context, userID string) ([]domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels := []domain.Channel{}
	for channelID, members := range r.members {
		if !members[userID] {
			continue
		}
		if channel, ok := r.channels[channelID]; ok {
			channels = append(channels, channel)
		}
	}
	sortChannelsByName(channels)
	return channels, nil
}

func (r *MemoryChannelRepository) IsMember(_ context.Context, userID, channelID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[channelID][userID], nil
}

// sortChannelsByName matches the ORDER BY name of the SQL queries.
func sortChannelsByName(channels []domain.Channel) {
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].Name < channels[j].Name
	})
}
