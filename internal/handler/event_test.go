package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountly/webhook-dispatch/internal/dispatch"
	"github.com/accountly/webhook-dispatch/internal/model"
)

type stubSender struct {
	results []model.DeliveryRecord
	err     error
}

func (s *stubSender) SendEvent(ctx context.Context, eventType string, payload any, ownerID string) ([]model.DeliveryRecord, error) {
	if eventType == "" {
		return nil, dispatch.ErrInvalidEventType
	}
	return s.results, s.err
}

type stubReader struct {
	recs []model.DeliveryRecord
}

func (s *stubReader) GetDeliveries(ctx context.Context, ownerID string, webhookID uuid.UUID, limit int) []model.DeliveryRecord {
	return s.recs
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSendEventEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	whID := uuid.New()
	sender := &stubSender{results: []model.DeliveryRecord{{ID: uuid.New(), WebhookID: whID, Success: true}}}
	h := NewEventHandler(sender, nil)

	r := gin.New()
	r.POST("/api/events", h.Send)

	w := doRequest(t, r, http.MethodPost, "/api/events",
		`{"owner_id":"owner-1","event_type":"user_created","payload":{"id":"u1"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var results []model.DeliveryRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, whID, results[0].WebhookID)
}

func TestSendEventEndpointValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewEventHandler(&stubSender{}, nil)
	r := gin.New()
	r.POST("/api/events", h.Send)

	// empty event type is rejected before any dispatch
	w := doRequest(t, r, http.MethodPost, "/api/events", `{"owner_id":"owner-1","payload":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// missing owner is a binding error
	w = doRequest(t, r, http.MethodPost, "/api/events", `{"event_type":"user_created"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDeliveriesEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	whID := uuid.New()
	reader := &stubReader{recs: []model.DeliveryRecord{{ID: uuid.New(), WebhookID: whID, Success: true}}}
	h := NewDeliveryHandler(reader)

	r := gin.New()
	r.GET("/api/webhooks/:id/deliveries", h.List)

	w := doRequest(t, r, http.MethodGet, "/api/webhooks/"+whID.String()+"/deliveries?owner_id=owner-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs []model.DeliveryRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	assert.Len(t, recs, 1)

	w = doRequest(t, r, http.MethodGet, "/api/webhooks/"+whID.String()+"/deliveries", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "owner_id is required")

	w = doRequest(t, r, http.MethodGet, "/api/webhooks/not-a-uuid/deliveries?owner_id=owner-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
