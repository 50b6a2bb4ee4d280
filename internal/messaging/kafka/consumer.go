package kafka

import (
	"context"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/hanbit-commerce/inventory-service/internal/cache"
	"github.com/hanbit-commerce/inventory-service/internal/config"
	"github.com/hanbit-commerce/inventory-service/internal/domain"
	"github.com/hanbit-commerce/inventory-service/internal/platform/errors"
)

// Consumer subscribes to the inventory-events topic and invalidates the
// local availability cache for movements originated by peer processes.
// Events produced by this process are skipped; the originating code path
// already invalidated synchronously before returning.
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	topic         string
	instanceID    string
	cache         cache.AvailabilityCache
	logger        *slog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewConsumer creates a consumer-group subscriber for movement events
func NewConsumer(cfg config.KafkaConfig, instanceID string, availabilityCache cache.AvailabilityCache, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroupID, saramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Kafka consumer group")
	}

	return &Consumer{
		consumerGroup: consumerGroup,
		topic:         cfg.MovementsTopic,
		instanceID:    instanceID,
		cache:         availabilityCache,
		logger:        logger,
	}, nil
}

// Start begins consuming in a background goroutine until Stop or context
// cancellation.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return errors.NewInternal("consumer already running")
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumerGroup.Consume(consumeCtx, []string{c.topic}, c); err != nil {
				c.logger.Error("Kafka consume error", "topic", c.topic, "error", err)
			}
			if consumeCtx.Err() != nil {
				return
			}
			// Rebalance; loop re-joins the group.
		}
	}()

	c.logger.Info("Movement event consumer started", "topic", c.topic)
	return nil
}

// Stop drains the consumer and closes the group
func (c *Consumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	c.running = false

	if err := c.consumerGroup.Close(); err != nil {
		return errors.Wrap(err, "failed to close Kafka consumer group")
	}
	c.logger.Info("Movement event consumer stopped")
	return nil
}

// Setup implements sarama.ConsumerGroupHandler
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		c.handleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	var event domain.MovementEvent
	if err := event.Unmarshal(message.Value); err != nil {
		c.logger.Warn("Skipping malformed movement event",
			"topic", message.Topic,
			"offset", message.Offset,
			"error", err)
		return
	}

	if event.Source == c.instanceID {
		return
	}

	if err := c.cache.Invalidate(ctx, event.ProductID, event.VariantID); err != nil {
		c.logger.Warn("Failed to invalidate cache from movement event",
			"product_id", event.ProductID,
			"error", err)
		return
	}

	c.logger.Debug("Invalidated cache from peer movement event",
		"product_id", event.ProductID,
		"type", event.Type,
		"source", event.Source)
}
