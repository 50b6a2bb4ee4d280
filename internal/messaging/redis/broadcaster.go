// Package redis implements the stock-updates broadcaster. Every cache
// invalidation publishes a {productId, availableStock, timestamp} message on
// a dedicated channel for real-time dashboard consumers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// Broadcaster publishes stock update events on a Redis pub/sub channel
type Broadcaster struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewBroadcaster creates a stock-updates broadcaster
func NewBroadcaster(client *redis.Client, channel string, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// PublishStockUpdate publishes a stock update event. Best-effort: a publish
// failure is reported to the caller, who logs it without rolling back the
// stock mutation that triggered it.
func (b *Broadcaster) PublishStockUpdate(ctx context.Context, event domain.StockUpdateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stock update event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish stock update: %w", err)
	}

	b.logger.Debug("Published stock update",
		"channel", b.channel,
		"product_id", event.ProductID,
		"available_stock", event.AvailableStock)
	return nil
}
