package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accountly/webhook-dispatch/internal/model"
)

type DeliveryStore struct {
	pool *pgxpool.Pool
}

// Create appends one delivery record. Records are immutable once written;
// there is no update or delete path.
func (s *DeliveryStore) Create(ctx context.Context, rec *model.DeliveryRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO deliveries (id, webhook_id, event_type, payload, status_code, response, error, success, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.WebhookID, rec.EventType, rec.Payload, rec.StatusCode, rec.Response, rec.Error, rec.Success, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return nil
}

// ListByWebhook returns the newest records for one webhook, scoped to the
// owning tenant so one tenant cannot read another's delivery history.
func (s *DeliveryStore) ListByWebhook(ctx context.Context, ownerID string, webhookID uuid.UUID, limit int) ([]model.DeliveryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT d.id, d.webhook_id, d.event_type, d.payload, d.status_code, d.response, d.error, d.success, d.created_at
		 FROM deliveries d
		 JOIN webhooks w ON d.webhook_id = w.id
		 WHERE w.id = $1 AND w.owner_id = $2
		 ORDER BY d.created_at DESC
		 LIMIT $3`,
		webhookID, ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var recs []model.DeliveryRecord
	for rows.Next() {
		var rec model.DeliveryRecord
		if err := rows.Scan(&rec.ID, &rec.WebhookID, &rec.EventType, &rec.Payload, &rec.StatusCode, &rec.Response, &rec.Error, &rec.Success, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
