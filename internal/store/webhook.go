package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accountly/webhook-dispatch/internal/model"
)

type WebhookStore struct {
	pool *pgxpool.Pool
}

func (s *WebhookStore) Create(ctx context.Context, ownerID, url, secret string, events []string) (*model.Webhook, error) {
	var wh model.Webhook
	err := s.pool.QueryRow(ctx,
		`INSERT INTO webhooks (owner_id, url, secret, events)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, owner_id, url, secret, events, is_active, created_at, updated_at`,
		ownerID, url, secret, events,
	).Scan(&wh.ID, &wh.OwnerID, &wh.URL, &wh.Secret, &wh.Events, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	return &wh, nil
}

func (s *WebhookStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Webhook, error) {
	var wh model.Webhook
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, url, secret, events, is_active, created_at, updated_at
		 FROM webhooks WHERE id = $1`,
		id,
	).Scan(&wh.ID, &wh.OwnerID, &wh.URL, &wh.Secret, &wh.Events, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	return &wh, nil
}

func (s *WebhookStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Webhook, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, url, secret, events, is_active, created_at, updated_at
		 FROM webhooks WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []model.Webhook
	for rows.Next() {
		var wh model.Webhook
		if err := rows.Scan(&wh.ID, &wh.OwnerID, &wh.URL, &wh.Secret, &wh.Events, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		hooks = append(hooks, wh)
	}
	return hooks, rows.Err()
}

func (s *WebhookStore) Update(ctx context.Context, id uuid.UUID, url, secret *string, events []string, isActive *bool) (*model.Webhook, error) {
	var wh model.Webhook
	err := s.pool.QueryRow(ctx,
		`UPDATE webhooks SET
			url       = COALESCE($2, url),
			secret    = COALESCE($3, secret),
			events    = COALESCE($4, events),
			is_active = COALESCE($5, is_active),
			updated_at = $6
		 WHERE id = $1
		 RETURNING id, owner_id, url, secret, events, is_active, created_at, updated_at`,
		id, url, secret, events, isActive, time.Now(),
	).Scan(&wh.ID, &wh.OwnerID, &wh.URL, &wh.Secret, &wh.Events, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update webhook: %w", err)
	}
	return &wh, nil
}

func (s *WebhookStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
