package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/presence-service/internal/domain"
)

// memoryPresenceRepository is a mutex-guarded map store. It backs the service
// when no Postgres DSN is configured and is the store used in tests. The
// mutex serializes the read-check-then-write upserts per the concurrency
// contract the SQL backends get from their atomic primitives.
type memoryPresenceRepository struct {
	mu sync.Mutex
	// channelID -> identity key -> record
	channels map[string]map[string]*domain.PresenceRecord
}

// NewMemoryPresenceRepository returns an in-memory implementation.
func NewMemoryPresenceRepository() PresenceRepository {
	return &memoryPresenceRepository{
		channels: make(map[string]map[string]*domain.PresenceRecord),
	}
}

func (r *memoryPresenceRepository) Heartbeat(_ context.Context, channelID string, identity domain.Identity, at time.Time) (bool, error) {
	key := identity.Key()
	if key == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.channels[channelID][key]; ok {
		record.LastActiveAt = at
		return false, nil
	}
	r.insertLocked(channelID, identity, at, nil)
	return true, nil
}

func (r *memoryPresenceRepository) UpsertTyping(_ context.Context, channelID, userID string, typing bool, at time.Time) error {
	identity := domain.AuthenticatedIdentity(userID)
	key := identity.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.channels[channelID][key]
	if !ok {
		var typingAt *time.Time
		if typing {
			typingAt = &at
		}
		r.insertLocked(channelID, identity, at, typingAt)
		return nil
	}
	if typing {
		typingAt := at
		record.TypingAt = &typingAt
	} else {
		record.TypingAt = nil
	}
	return nil
}

func (r *memoryPresenceRepository) Delete(_ context.Context, channelID string, identity domain.Identity) (bool, error) {
	key := identity.Key()
	if key == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, ok := r.channels[channelID]
	if !ok {
		return false, nil
	}
	if _, ok := records[key]; !ok {
		return false, nil
	}
	delete(records, key)
	if len(records) == 0 {
		delete(r.channels, channelID)
	}
	return true, nil
}

func (r *memoryPresenceRepository) ListByChannel(_ context.Context, channelID string) ([]domain.PresenceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]domain.PresenceRecord, 0, len(r.channels[channelID]))
	for _, record := range r.channels[channelID] {
		records = append(records, cloneRecord(record))
	}
	return records, nil
}

func (r *memoryPresenceRepository) DeleteStale(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for channelID, records := range r.channels {
		for key, record := range records {
			if record.LastActiveAt.Before(olderThan) {
				delete(records, key)
				removed++
			}
		}
		if len(records) == 0 {
			delete(r.channels, channelID)
		}
	}
	return removed, nil
}

func (r *memoryPresenceRepository) insertLocked(channelID string, identity domain.Identity, at time.Time, typingAt *time.Time) {
	record := &domain.PresenceRecord{
		ID:           uuid.NewString(),
		ChannelID:    channelID,
		LastActiveAt: at,
		TypingAt:     typingAt,
	}
	if identity.IsAuthenticated() {
		userID := identity.UserID
		record.UserID = &userID
	} else {
		anonKey := identity.AnonKey
		record.AnonKey = &anonKey
	}
	if r.channels[channelID] == nil {
		r.channels[channelID] = make(map[string]*domain.PresenceRecord)
	}
	r.channels[channelID][identity.Key()] = record
}

func cloneRecord(record *domain.PresenceRecord) domain.PresenceRecord {
	clone := *record
	if record.UserID != nil {
		userID := *record.UserID
		clone.UserID = &userID
	}
	if record.AnonKey != nil {
		anonKey := *record.AnonKey
		clone.AnonKey = &anonKey
	}
	if record.TypingAt != nil {
		typingAt := *record.TypingAt
		clone.TypingAt = &typingAt
	}
	return clone
}
