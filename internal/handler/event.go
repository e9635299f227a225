package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/accountly/webhook-dispatch/internal/dispatch"
	"github.com/accountly/webhook-dispatch/internal/model"
)

// StreamName is the Redis stream async events are enqueued to; the worker
// consumes from it.
const StreamName = "events"

// EventSender is the dispatch surface the handler needs.
type EventSender interface {
	SendEvent(ctx context.Context, eventType string, payload any, ownerID string) ([]model.DeliveryRecord, error)
}

type EventHandler struct {
	dispatcher EventSender
	rdb        *redis.Client
}

func NewEventHandler(d EventSender, rdb *redis.Client) *EventHandler {
	return &EventHandler{dispatcher: d, rdb: rdb}
}

type sendEventRequest struct {
	OwnerID   string          `json:"owner_id" binding:"required"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// Send fans the event out synchronously and returns one result per eligible
// webhook. Individual delivery failures come back as entries with
// success=false, not as an error status.
func (h *EventHandler) Send(c *gin.Context) {
	var req sendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.dispatcher.SendEvent(c.Request.Context(), req.EventType, req.Payload, req.OwnerID)
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidEventType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Error("failed to send event", "error", err, "event_type", req.EventType, "owner_id", req.OwnerID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send event"})
		return
	}
	c.JSON(http.StatusOK, results)
}

// Enqueue accepts the event and hands it to the worker via a Redis stream.
func (h *EventHandler) Enqueue(c *gin.Context) {
	var req sendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EventType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": dispatch.ErrInvalidEventType.Error()})
		return
	}

	err := h.rdb.XAdd(c.Request.Context(), &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]any{
			"owner_id":   req.OwnerID,
			"event_type": req.EventType,
			"payload":    string(req.Payload),
		},
	}).Err()
	if err != nil {
		slog.Error("failed to enqueue event", "error", err, "event_type", req.EventType)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue event"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
