package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/accountly/webhook-dispatch/internal/model"
)

// DeliveryReader is the query surface of the dispatcher.
type DeliveryReader interface {
	GetDeliveries(ctx context.Context, ownerID string, webhookID uuid.UUID, limit int) []model.DeliveryRecord
}

type DeliveryHandler struct {
	dispatcher DeliveryReader
}

func NewDeliveryHandler(d DeliveryReader) *DeliveryHandler {
	return &DeliveryHandler{dispatcher: d}
}

// List returns recent deliveries for one webhook, newest first. Degrades to
// an empty list on store errors.
func (h *DeliveryHandler) List(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook id"})
		return
	}

	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	recs := h.dispatcher.GetDeliveries(c.Request.Context(), ownerID, id, limit)
	c.JSON(http.StatusOK, recs)
}
