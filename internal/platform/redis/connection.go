package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hanbit-commerce/inventory-service/internal/config"
	"github.com/hanbit-commerce/inventory-service/internal/platform/errors"
)

// Connection manages a Redis connection shared by the availability cache and
// the stock-updates broadcaster
type Connection struct {
	Client *redis.Client
	config config.RedisConfig
	logger *slog.Logger
}

// NewConnection creates a new Redis connection
func NewConnection(cfg config.RedisConfig, logger *slog.Logger) (*Connection, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	logger.Info("Redis connection established",
		"address", cfg.Address(),
		"db", cfg.DB,
		"pool_size", cfg.PoolSize)

	return &Connection{
		Client: rdb,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Connection) Close() error {
	if c.Client != nil {
		if err := c.Client.Close(); err != nil {
			c.logger.Error("Failed to close Redis connection", "error", err)
			return err
		}
		c.logger.Info("Redis connection closed")
	}
	return nil
}

// HealthCheck performs a health check on the Redis connection
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return errors.NewInternal("Redis client is nil")
	}
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "Redis ping failed")
	}
	return nil
}
