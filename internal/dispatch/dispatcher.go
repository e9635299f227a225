package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/accountly/webhook-dispatch/internal/metrics"
	"github.com/accountly/webhook-dispatch/internal/model"
	"github.com/accountly/webhook-dispatch/internal/signing"
)

const (
	maxBodyLen        = 4096
	defaultQueryLimit = 10
	defaultBaseDelay  = 100 * time.Millisecond
	defaultTimeout    = 10 * time.Second
)

// ErrInvalidEventType is returned by SendEvent before any network activity
// when the event type is empty.
var ErrInvalidEventType = errors.New("event type must be a non-empty string")

// WebhookSource resolves a tenant's registered webhooks.
type WebhookSource interface {
	ListByOwner(ctx context.Context, ownerID string) ([]model.Webhook, error)
}

// DeliveryLog persists and reads back delivery records.
type DeliveryLog interface {
	Create(ctx context.Context, rec *model.DeliveryRecord) error
	ListByWebhook(ctx context.Context, ownerID string, webhookID uuid.UUID, limit int) ([]model.DeliveryRecord, error)
}

type Config struct {
	// MaxRetries is the number of retries after the first attempt. The
	// zero value disables retries; the production default of 2 is
	// supplied through internal/config (MAX_RETRIES).
	MaxRetries int
	// RetryBaseDelay is doubled before each successive retry.
	RetryBaseDelay time.Duration
	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration
	// MaxConcurrent caps in-flight deliveries per SendEvent call. Zero
	// means unlimited.
	MaxConcurrent int
}

// Dispatcher fans an event out to every eligible webhook of a tenant,
// delivering to each independently with bounded retries, and records the
// final outcome of every delivery.
type Dispatcher struct {
	webhooks       WebhookSource
	deliveries     DeliveryLog
	httpClient     *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
	maxConcurrent  int
}

func New(webhooks WebhookSource, deliveries DeliveryLog, cfg Config) *Dispatcher {
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultBaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Dispatcher{
		webhooks:       webhooks,
		deliveries:     deliveries,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		maxConcurrent:  cfg.MaxConcurrent,
	}
}

// SendEvent delivers the event to every active webhook of ownerID subscribed
// to eventType, concurrently and independently, and returns one record per
// eligible webhook once all deliveries have settled. Per-webhook failures are
// reported as records with Success=false, never as an error; the returned
// error is non-nil only for an invalid event type, an unmarshalable payload,
// or a failure to resolve the subscriber set.
func (d *Dispatcher) SendEvent(ctx context.Context, eventType string, payload any, ownerID string) ([]model.DeliveryRecord, error) {
	if eventType == "" {
		return nil, ErrInvalidEventType
	}

	body, err := json.Marshal(model.Envelope{Event: eventType, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	hooks, err := d.webhooks.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}

	var eligible []model.Webhook
	for _, wh := range hooks {
		if wh.Eligible(eventType) {
			eligible = append(eligible, wh)
		}
	}
	if len(eligible) == 0 {
		return []model.DeliveryRecord{}, nil
	}

	// One task per webhook; a slow or failing endpoint never delays the
	// others. Wait for every delivery to settle before returning.
	results := make([]model.DeliveryRecord, len(eligible))
	var g errgroup.Group
	if d.maxConcurrent > 0 {
		g.SetLimit(d.maxConcurrent)
	}
	for i, wh := range eligible {
		g.Go(func() error {
			results[i] = d.deliver(ctx, wh, eventType, body)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// GetDeliveries returns the most recent delivery records for one webhook,
// newest first. Store errors degrade to an empty list; this is an
// observability read, not a critical path.
func (d *Dispatcher) GetDeliveries(ctx context.Context, ownerID string, webhookID uuid.UUID, limit int) []model.DeliveryRecord {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	recs, err := d.deliveries.ListByWebhook(ctx, ownerID, webhookID, limit)
	if err != nil {
		slog.Error("failed to list deliveries", "error", err, "webhook_id", webhookID, "owner_id", ownerID)
		return []model.DeliveryRecord{}
	}
	if recs == nil {
		recs = []model.DeliveryRecord{}
	}
	return recs
}

// deliver runs the retry loop for a single webhook and persists the final
// outcome. Attempts are strictly sequential; backoff doubles before each
// retry. 2xx stops with success, non-5xx responses stop immediately, 5xx and
// transport errors retry while attempts remain.
func (d *Dispatcher) deliver(ctx context.Context, wh model.Webhook, eventType string, body []byte) model.DeliveryRecord {
	signature := signing.Sign(body, wh.Secret)
	start := time.Now()

	var (
		statusCode *int
		response   *string
		errMsg     *string
	)

	for attempt := 0; ; attempt++ {
		code, respText, err := d.attempt(ctx, wh.URL, eventType, signature, body)
		metrics.Attempts.WithLabelValues(eventType).Inc()

		if err != nil {
			statusCode, response = nil, nil
			msg := transportError(err)
			errMsg = &msg
			if attempt < d.maxRetries && d.backoff(ctx, attempt) {
				continue
			}
			break
		}

		statusCode, response = &code, &respText
		if code >= 200 && code < 300 {
			errMsg = nil
			break
		}
		msg := statusError(code)
		errMsg = &msg
		if code >= 500 && attempt < d.maxRetries && d.backoff(ctx, attempt) {
			continue
		}
		break
	}

	rec := model.DeliveryRecord{
		ID:         uuid.New(),
		WebhookID:  wh.ID,
		EventType:  eventType,
		Payload:    body,
		StatusCode: statusCode,
		Response:   response,
		Error:      errMsg,
		Success:    errMsg == nil,
		CreatedAt:  time.Now().UTC(),
	}

	status := "failed"
	if rec.Success {
		status = "success"
	}
	metrics.Deliveries.WithLabelValues(eventType, status).Inc()
	metrics.Latency.WithLabelValues(eventType, status).Observe(time.Since(start).Seconds())

	// Recording is best-effort observability: a failed write never changes
	// the reported outcome.
	if err := d.deliveries.Create(ctx, &rec); err != nil {
		slog.Error("failed to record delivery", "error", err, "webhook_id", wh.ID, "event_type", eventType)
	}

	return rec
}

// attempt performs one signed HTTP POST. An unreadable response body is
// treated the same as receiving no response.
func (d *Dispatcher) attempt(ctx context.Context, url, eventType, signature string, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signing.SignatureHeader, signature)
	req.Header.Set(signing.EventTypeHeader, eventType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLen))
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(respBody), nil
}

// backoff waits retryBaseDelay * 2^attempt before the next retry. Returns
// false if the context was cancelled, in which case no further attempts are
// made.
func (d *Dispatcher) backoff(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(d.retryBaseDelay * (1 << attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func statusError(code int) string {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return "Invalid signature"
	}
	return fmt.Sprintf("Failed with status: %d", code)
}

func transportError(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "network error"
}
