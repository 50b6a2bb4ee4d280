package service

import (
	"context"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// StockUpdateBroadcaster publishes availability snapshots to the real-time
// stock-updates channel consumed by dashboards.
type StockUpdateBroadcaster interface {
	PublishStockUpdate(ctx context.Context, event domain.StockUpdateEvent) error
}

// MovementEventPublisher publishes movement envelopes to the
// inventory-events topic for cross-process cache coordination.
type MovementEventPublisher interface {
	PublishMovement(ctx context.Context, event domain.MovementEvent) error
}

// NoopBroadcaster drops stock updates. Used when no pub/sub backend is wired.
type NoopBroadcaster struct{}

// PublishStockUpdate does nothing
func (NoopBroadcaster) PublishStockUpdate(context.Context, domain.StockUpdateEvent) error { return nil }

// NoopPublisher drops movement events. Used when Kafka is disabled.
type NoopPublisher struct{}

// PublishMovement does nothing
func (NoopPublisher) PublishMovement(context.Context, domain.MovementEvent) error { return nil }

// AlertEvaluator is the slice of the alert engine the inventory service
// drives after each mutation.
type AlertEvaluator interface {
	EvaluateProduct(ctx context.Context, productID, variantID string, trigger EvaluationTrigger) error
}

// EvaluationTrigger describes what prompted an alert evaluation.
type EvaluationTrigger struct {
	Kind          EvaluationKind
	MovementType  domain.MovementType
	PreviousStock int
}

// EvaluationKind distinguishes movement-driven evaluation from the periodic
// full sweep.
type EvaluationKind string

const (
	EvaluationMovement EvaluationKind = "movement"
	EvaluationSweep    EvaluationKind = "sweep"
)
