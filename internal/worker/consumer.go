package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/accountly/webhook-dispatch/internal/model"
)

const (
	streamName    = "events"
	consumerGroup = "dispatch-workers"
)

// EventSender dispatches one event to a tenant's webhooks.
type EventSender interface {
	SendEvent(ctx context.Context, eventType string, payload any, ownerID string) ([]model.DeliveryRecord, error)
}

// Consumer drains the events stream and fans each event out through the
// dispatcher. Delivery guarantees stay best-effort at-least-once: messages
// are acked after dispatch regardless of per-webhook outcomes.
type Consumer struct {
	sender      EventSender
	rdb         *redis.Client
	concurrency int
}

func New(sender EventSender, rdb *redis.Client, concurrency int) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{sender: sender, rdb: rdb, concurrency: concurrency}
}

func (c *Consumer) Start(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, streamName, consumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("create consumer group: %w", err)
	}

	for i := range c.concurrency {
		go c.consume(ctx, fmt.Sprintf("worker-%d", i))
	}
	return nil
}

func (c *Consumer) consume(ctx context.Context, consumer string) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: consumer,
			Streams:  []string{streamName, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			slog.Error("xreadgroup error", "error", err, "consumer", consumer)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.processMessage(ctx, msg)
				c.rdb.XAck(ctx, streamName, consumerGroup, msg.ID)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) {
	ownerID, _ := msg.Values["owner_id"].(string)
	eventType, _ := msg.Values["event_type"].(string)
	payloadStr, _ := msg.Values["payload"].(string)

	var payload any
	if payloadStr != "" {
		payload = json.RawMessage(payloadStr)
	}

	results, err := c.sender.SendEvent(ctx, eventType, payload, ownerID)
	if err != nil {
		// Malformed messages are not retried; ack and move on.
		slog.Error("failed to dispatch event", "error", err, "msg_id", msg.ID, "event_type", eventType)
		return
	}

	failed := 0
	for _, rec := range results {
		if !rec.Success {
			failed++
		}
	}
	slog.Info("event dispatched", "event_type", eventType, "owner_id", ownerID, "deliveries", len(results), "failed", failed)
}
