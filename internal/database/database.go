package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS webhooks (
	id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	owner_id   text NOT NULL,
	url        text NOT NULL,
	secret     text NOT NULL DEFAULT '',
	events     text[] NOT NULL DEFAULT '{}',
	is_active  boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_webhooks_owner ON webhooks (owner_id);

CREATE TABLE IF NOT EXISTS deliveries (
	id          uuid PRIMARY KEY,
	webhook_id  uuid NOT NULL REFERENCES webhooks (id) ON DELETE CASCADE,
	event_type  text NOT NULL,
	payload     jsonb NOT NULL,
	status_code int,
	response    text,
	error       text,
	success     boolean NOT NULL,
	created_at  timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_webhook_created ON deliveries (webhook_id, created_at DESC);
`

// Connect opens a pgx pool against url and verifies connectivity.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the schema. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
