package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/presence-service/internal/domain"
)

// redisPresenceRepository keeps liveness timestamps in two hashes per channel:
// one for last-active, one for typing. Field-level HSET/HDEL are the atomic
// upsert primitives, so concurrent heartbeats for one key cannot duplicate.
// No key TTLs are used; expiry stays a read-time filter to match the record
// lifecycle of the Postgres backend.
type redisPresenceRepository struct {
	client *redis.Client
}

const redisChannelSetKey = "presence:channels"

// NewRedisPresenceRepository returns a Redis-backed implementation.
func NewRedisPresenceRepository(client *redis.Client) PresenceRepository {
	return &redisPresenceRepository{client: client}
}

func redisActiveKey(channelID string) string {
	return "presence:" + channelID + ":active"
}

func redisTypingKey(channelID string) string {
	return "presence:" + channelID + ":typing"
}

func (r *redisPresenceRepository) Heartbeat(ctx context.Context, channelID string, identity domain.Identity, at time.Time) (bool, error) {
	field := identity.Key()
	if field == "" {
		return false, nil
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, redisChannelSetKey, channelID)
	set := pipe.HSet(ctx, redisActiveKey(channelID), field, at.UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return set.Val() > 0, nil
}

func (r *redisPresenceRepository) UpsertTyping(ctx context.Context, channelID, userID string, typing bool, at time.Time) error {
	field := domain.AuthenticatedIdentity(userID).Key()

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, redisChannelSetKey, channelID)
	// Create the record if this identity has never heartbeated here.
	pipe.HSetNX(ctx, redisActiveKey(channelID), field, at.UnixMilli())
	if typing {
		pipe.HSet(ctx, redisTypingKey(channelID), field, at.UnixMilli())
	} else {
		pipe.HDel(ctx, redisTypingKey(channelID), field)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisPresenceRepository) Delete(ctx context.Context, channelID string, identity domain.Identity) (bool, error) {
	field := identity.Key()
	if field == "" {
		return false, nil
	}

	pipe := r.client.TxPipeline()
	del := pipe.HDel(ctx, redisActiveKey(channelID), field)
	pipe.HDel(ctx, redisTypingKey(channelID), field)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return del.Val() > 0, nil
}

func (r *redisPresenceRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.PresenceRecord, error) {
	active, err := r.client.HGetAll(ctx, redisActiveKey(channelID)).Result()
	if err != nil {
		return nil, err
	}
	typing, err := r.client.HGetAll(ctx, redisTypingKey(channelID)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]domain.PresenceRecord, 0, len(active))
	for field, raw := range active {
		lastActive, ok := parseRedisMillis(raw)
		if !ok {
			continue
		}
		record := domain.PresenceRecord{
			ID:           field,
			ChannelID:    channelID,
			LastActiveAt: lastActive,
		}
		switch {
		case strings.HasPrefix(field, "u:"):
			userID := strings.TrimPrefix(field, "u:")
			record.UserID = &userID
		case strings.HasPrefix(field, "a:"):
			anonKey := strings.TrimPrefix(field, "a:")
			record.AnonKey = &anonKey
		default:
			continue
		}
		if raw, ok := typing[field]; ok {
			if typingAt, ok := parseRedisMillis(raw); ok {
				record.TypingAt = &typingAt
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *redisPresenceRepository) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	channels, err := r.client.SMembers(ctx, redisChannelSetKey).Result()
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, channelID := range channels {
		active, err := r.client.HGetAll(ctx, redisActiveKey(channelID)).Result()
		if err != nil {
			return removed, err
		}

		stale := make([]string, 0)
		for field, raw := range active {
			lastActive, ok := parseRedisMillis(raw)
			if !ok || lastActive.Before(olderThan) {
				stale = append(stale, field)
			}
		}
		if len(stale) == 0 {
			continue
		}

		pipe := r.client.TxPipeline()
		del := pipe.HDel(ctx, redisActiveKey(channelID), stale...)
		pipe.HDel(ctx, redisTypingKey(channelID), stale...)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, err
		}
		removed += del.Val()

		if remaining, err := r.client.HLen(ctx, redisActiveKey(channelID)).Result(); err == nil && remaining == 0 {
			_ = r.client.SRem(ctx, redisChannelSetKey, channelID).Err()
		}
	}
	return removed, nil
}

func parseRedisMillis(raw string) (time.Time, bool) {
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}
