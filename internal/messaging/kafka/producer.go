// Package kafka carries the inventory-events topic: movement envelopes
// produced on every stock mutation and consumed by peer processes to keep
// their availability caches coherent.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/hanbit-commerce/inventory-service/internal/config"
	"github.com/hanbit-commerce/inventory-service/internal/domain"
	"github.com/hanbit-commerce/inventory-service/internal/platform/errors"
)

// Producer publishes movement events to the inventory-events topic
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewProducer creates a Kafka producer for movement events
func NewProducer(cfg config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Kafka producer")
	}

	logger.Info("Kafka producer created",
		"brokers", cfg.Brokers,
		"topic", cfg.MovementsTopic)

	return &Producer{
		producer: producer,
		topic:    cfg.MovementsTopic,
		logger:   logger,
	}, nil
}

// PublishMovement publishes a movement event, keyed by product ID so all
// events for a product land on one partition in order.
func (p *Producer) PublishMovement(ctx context.Context, event domain.MovementEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal movement event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ProductID),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return errors.Wrap(err, "failed to publish movement event")
	}

	p.logger.Debug("Published movement event",
		"topic", p.topic,
		"product_id", event.ProductID,
		"type", event.Type,
		"partition", partition,
		"offset", offset)
	return nil
}

// Close shuts down the producer
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
