package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/presence-service/internal/domain"
)

// ChannelRepository defines persistence access for channels and memberships.
// Membership rows are owned by the room/membership collaborator; this
// subsystem only reads them.
type ChannelRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
	GetByName(ctx context.Context, name string) (*domain.Channel, error)
	ListPublic(ctx context.Context) ([]domain.Channel, error)
	ListForMember(ctx context.Context, userID string) ([]domain.Channel, error)
	IsMember(ctx context.Context, userID, channelID string) (bool, error)
}

type channelRepository struct {
	pool *pgxpool.Pool
}

// NewChannelRepository returns a Postgres-backed implementation.
func NewChannelRepository(pool *pgxpool.Pool) ChannelRepository {
	return &channelRepository{pool: pool}
}

func (r *channelRepository) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	const query = `
        SELECT id, name, description, type, created_at
        FROM channels WHERE id=$1`

	var channel domain.Channel
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&channel.ID,
		&channel.Name,
		&channel.Description,
		&channel.Type,
		&channel.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) GetByName(ctx context.Context, name string) (*domain.Channel, error) {
	const query = `
        SELECT id, name, description, type, created_at
        FROM channels WHERE name=$1`

	var channel domain.Channel
	if err := r.pool.QueryRow(ctx, query, name).Scan(
		&channel.ID,
		&channel.Name,
		&channel.Description,
		&channel.Type,
		&channel.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) ListPublic(ctx context.Context) ([]domain.Channel, error) {
	const query = `
        SELECT id, name, description, type, created_at
        FROM channels WHERE type='public' ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

func (r *channelRepository) ListForMember(ctx context.Context, userID string) ([]domain.Channel, error) {
	const query = `
        SELECT c.id, c.name, c.description, c.type, c.created_at
        FROM channels c
        JOIN channel_members m ON m.channel_id = c.id
        WHERE m.user_id = $1
        ORDER BY c.name`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

func (r *channelRepository) IsMember(ctx context.Context, userID, channelID string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM channel_members WHERE user_id=$1 AND channel_id=$2
        )`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, channelID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanChannels(rows pgx.Rows) ([]domain.Channel, error) {
	channels := []domain.Channel{}
	for rows.Next() {
		var channel domain.Channel
		if err := rows.Scan(
			&channel.ID,
			&channel.Name,
			&channel.Description,
			&channel.Type,
			&channel.CreatedAt,
		); err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}
