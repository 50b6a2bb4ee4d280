// Package cache implements the short-TTL availability cache. It is a pure
// cache: never the system of record, invalidated by delete on every write
// path, and a miss always triggers recomputation from the inventory record
// plus the reservation ledger.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// AvailabilityCache caches computed availability per (product, variant).
// Get returns (nil, nil) on a miss; implementations must treat backend
// unavailability as a miss rather than failing the request.
type AvailabilityCache interface {
	Get(ctx context.Context, productID, variantID string) (*domain.Availability, error)
	Set(ctx context.Context, availability *domain.Availability) error
	Invalidate(ctx context.Context, productID, variantID string) error
}

// RedisCache implements AvailabilityCache on Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a Redis-backed availability cache
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func availabilityKey(productID, variantID string) string {
	if variantID == "" {
		return fmt.Sprintf("inventory:availability:%s", productID)
	}
	return fmt.Sprintf("inventory:availability:%s:%s", productID, variantID)
}

// Get returns the cached availability, or nil on a miss. Redis errors are
// logged and degrade to a miss so the caller recomputes from source.
func (c *RedisCache) Get(ctx context.Context, productID, variantID string) (*domain.Availability, error) {
	payload, err := c.client.Get(ctx, availabilityKey(productID, variantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		c.logger.Warn("Availability cache read failed, treating as miss",
			"product_id", productID, "error", err)
		return nil, nil
	}

	var availability domain.Availability
	if err := json.Unmarshal(payload, &availability); err != nil {
		c.logger.Warn("Availability cache entry corrupt, treating as miss",
			"product_id", productID, "error", err)
		return nil, nil
	}
	return &availability, nil
}

// Set stores the availability with the configured TTL. Failures are logged
// and swallowed; the cache is best-effort.
func (c *RedisCache) Set(ctx context.Context, availability *domain.Availability) error {
	payload, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}

	key := availabilityKey(availability.ProductID, availability.VariantID)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Availability cache write failed",
			"product_id", availability.ProductID, "error", err)
	}
	return nil
}

// Invalidate deletes the cache entry. Delete, not update: the next reader
// recomputes from source.
func (c *RedisCache) Invalidate(ctx context.Context, productID, variantID string) error {
	if err := c.client.Del(ctx, availabilityKey(productID, variantID)).Err(); err != nil {
		c.logger.Warn("Availability cache invalidation failed",
			"product_id", productID, "error", err)
	}
	return nil
}
