package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the production registry, backed by a channels table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a registry to an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect builds a pgx pool for the registry database and verifies it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate creates the channels table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS channels (
			channel_id VARCHAR(50) PRIMARY KEY,
			owner_key  VARCHAR(100) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create channels table: %w", err)
	}
	return nil
}

// Put registers or replaces the owner of a channel.
func (p *Postgres) Put(ctx context.Context, ownerKey, channelID string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO channels (channel_id, owner_key)
		VALUES ($1, $2)
		ON CONFLICT (channel_id) DO UPDATE SET owner_key = EXCLUDED.owner_key
	`, channelID, ownerKey)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}

// Remove drops a channel's registration.
func (p *Postgres) Remove(ctx context.Context, channelID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM channels WHERE channel_id = $1`, channelID)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

// Lookup returns the owner key for a channel.
func (p *Postgres) Lookup(ctx context.Context, channelID string) (string, error) {
	var owner string
	err := p.pool.QueryRow(ctx,
		`SELECT owner_key FROM channels WHERE channel_id = $1`, channelID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOwnerNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query channel owner: %w", err)
	}
	return owner, nil
}

// ChannelIDs lists every registered channel id.
func (p *Postgres) ChannelIDs(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT channel_id FROM channels ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan channel id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
