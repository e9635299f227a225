package model

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Webhook is a subscriber endpoint registered by a tenant. The secret is
// used to sign outbound payloads and is never serialized in API responses.
type Webhook struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []string  `json:"events"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Eligible reports whether the webhook should receive events of the given type.
func (w *Webhook) Eligible(eventType string) bool {
	return w.IsActive && slices.Contains(w.Events, eventType)
}

// Envelope is the wire format POSTed to subscriber endpoints.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// DeliveryRecord is the immutable outcome of one delivery, covering all of
// its retries. StatusCode and Response are nil when no response was ever
// received; Error is nil only on success.
type DeliveryRecord struct {
	ID         uuid.UUID       `json:"id"`
	WebhookID  uuid.UUID       `json:"webhook_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	StatusCode *int            `json:"status_code,omitempty"`
	Response   *string         `json:"response,omitempty"`
	Error      *string         `json:"error,omitempty"`
	Success    bool            `json:"success"`
	CreatedAt  time.Time       `json:"created_at"`
}
