package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/presence-service/internal/domain"
)

// PresenceRepository is the durable store of per-(channel, identity) liveness
// records. Upserts are the unit of atomicity: concurrent heartbeats for the
// same key must converge to a single record.
type PresenceRepository interface {
	// Heartbeat refreshes last_active_at, inserting the record on first
	// contact. Reports whether a new record was created. Existing typing
	// state is left untouched.
	Heartbeat(ctx context.Context, channelID string, identity domain.Identity, at time.Time) (bool, error)
	// UpsertTyping sets (typing=true) or clears (typing=false) the typing
	// timestamp for an authenticated user, creating the record if needed.
	// Clearing never deletes the record.
	UpsertTyping(ctx context.Context, channelID, userID string, typing bool, at time.Time) error
	// Delete removes the record for the identity. Absence is not an error;
	// the return value reports whether anything was removed.
	Delete(ctx context.Context, channelID string, identity domain.Identity) (bool, error)
	// ListByChannel returns every record for the channel, fresh or stale.
	// TTL filtering is the reader's job.
	ListByChannel(ctx context.Context, channelID string) ([]domain.PresenceRecord, error)
	// DeleteStale removes records whose last_active_at is older than the
	// cutoff and returns how many were dropped.
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type presenceRepository struct {
	pool *pgxpool.Pool
}

// NewPresenceRepository returns a Postgres-backed implementation. The partial
// unique indexes on channel_presence make the upserts race-free per key.
func NewPresenceRepository(pool *pgxpool.Pool) PresenceRepository {
	return &presenceRepository{pool: pool}
}

func (r *presenceRepository) Heartbeat(ctx context.Context, channelID string, identity domain.Identity, at time.Time) (bool, error) {
	// xmax = 0 distinguishes a fresh insert from a conflict-update.
	const userQuery = `
        INSERT INTO channel_presence (channel_id, user_id, last_active_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (channel_id, user_id) WHERE user_id IS NOT NULL
        DO UPDATE SET last_active_at = EXCLUDED.last_active_at
        RETURNING (xmax = 0)`

	const anonQuery = `
        INSERT INTO channel_presence (channel_id, anon_key, last_active_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (channel_id, anon_key) WHERE anon_key IS NOT NULL
        DO UPDATE SET last_active_at = EXCLUDED.last_active_at
        RETURNING (xmax = 0)`

	var created bool
	switch {
	case identity.IsAuthenticated():
		err := r.pool.QueryRow(ctx, userQuery, channelID, identity.UserID, at).Scan(&created)
		return created, err
	case identity.IsAnonymous():
		err := r.pool.QueryRow(ctx, anonQuery, channelID, identity.AnonKey, at).Scan(&created)
		return created, err
	default:
		return false, nil
	}
}

func (r *presenceRepository) UpsertTyping(ctx context.Context, channelID, userID string, typing bool, at time.Time) error {
	const setQuery = `
        INSERT INTO channel_presence (channel_id, user_id, last_active_at, typing_at)
        VALUES ($1, $2, $3, $3)
        ON CONFLICT (channel_id, user_id) WHERE user_id IS NOT NULL
        DO UPDATE SET typing_at = EXCLUDED.typing_at`

	const clearQuery = `
        INSERT INTO channel_presence (channel_id, user_id, last_active_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (channel_id, user_id) WHERE user_id IS NOT NULL
        DO UPDATE SET typing_at = NULL`

	query := setQuery
	if !typing {
		query = clearQuery
	}
	_, err := r.pool.Exec(ctx, query, channelID, userID, at)
	return err
}

func (r *presenceRepository) Delete(ctx context.Context, channelID string, identity domain.Identity) (bool, error) {
	const userQuery = `DELETE FROM channel_presence WHERE channel_id=$1 AND user_id=$2`
	const anonQuery = `DELETE FROM channel_presence WHERE channel_id=$1 AND anon_key=$2`

	switch {
	case identity.IsAuthenticated():
		cmd, err := r.pool.Exec(ctx, userQuery, channelID, identity.UserID)
		return cmd.RowsAffected() > 0, err
	case identity.IsAnonymous():
		cmd, err := r.pool.Exec(ctx, anonQuery, channelID, identity.AnonKey)
		return cmd.RowsAffected() > 0, err
	default:
		return false, nil
	}
}

func (r *presenceRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.PresenceRecord, error) {
	const query = `
        SELECT id, channel_id, user_id, anon_key, last_active_at, typing_at
        FROM channel_presence WHERE channel_id=$1
        ORDER BY id`

	rows, err := r.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.PresenceRecord{}
	for rows.Next() {
		var record domain.PresenceRecord
		if err := rows.Scan(
			&record.ID,
			&record.ChannelID,
			&record.UserID,
			&record.AnonKey,
			&record.LastActiveAt,
			&record.TypingAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *presenceRepository) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	const query = `DELETE FROM channel_presence WHERE last_active_at < $1`

	cmd, err := r.pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
