package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/cache"
	"github.com/hanbit-commerce/inventory-service/internal/config"
	"github.com/hanbit-commerce/inventory-service/internal/domain"
	"github.com/hanbit-commerce/inventory-service/internal/notification"
	"github.com/hanbit-commerce/inventory-service/internal/repository/memory"
)

const testInstanceID = "test-instance"

// recordingBroadcaster captures published stock updates.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []domain.StockUpdateEvent
}

func (b *recordingBroadcaster) PublishStockUpdate(ctx context.Context, event domain.StockUpdateEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroadcaster) Events() []domain.StockUpdateEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.StockUpdateEvent(nil), b.events...)
}

// recordingPublisher captures published movement events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.MovementEvent
}

func (p *recordingPublisher) PublishMovement(ctx context.Context, event domain.MovementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []domain.MovementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.MovementEvent(nil), p.events...)
}

// fixture wires the services against in-memory stores.
type fixture struct {
	inventory   InventoryService
	alerts      StockAlertService
	repo        *memory.InventoryRepository
	movements   *memory.MovementRepository
	alertRepo   *memory.AlertRepository
	subRepo     *memory.SubscriptionRepository
	cache       *cache.MemoryCache
	broadcaster *recordingBroadcaster
	publisher   *recordingPublisher
	recorder    *notification.Recorder
}

func testInventoryConfig() config.InventoryConfig {
	return config.InventoryConfig{
		DefaultReservationTTL:  15 * time.Minute,
		CheckoutReservationTTL: 30 * time.Minute,
		SweepInterval:          5 * time.Minute,
		SweepBatchSize:         100,
		CacheTTL:               time.Minute,
		StockUpdatesChannel:    "stock-updates",
	}
}

func testAlertConfig() config.AlertConfig {
	return config.AlertConfig{
		LowStockThreshold:    5,
		DedupWindow:          time.Hour,
		SweepInterval:        10 * time.Minute,
		VelocityWindow:       7 * 24 * time.Hour,
		HighDemandCoverDays:  2.0,
		SlowMovingVelocity:   0.5,
		SlowMovingStockRatio: 3.0,
	}
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		repo:        memory.NewInventoryRepository(),
		movements:   memory.NewMovementRepository(),
		alertRepo:   memory.NewAlertRepository(),
		subRepo:     memory.NewSubscriptionRepository(),
		cache:       cache.NewMemoryCache(time.Minute),
		broadcaster: &recordingBroadcaster{},
		publisher:   &recordingPublisher{},
		recorder:    notification.NewRecorder(),
	}

	senders := notification.Senders{
		Email: f.recorder,
		SMS:   f.recorder,
		Push:  f.recorder,
		InApp: f.recorder,
	}

	f.alerts = NewStockAlertService(
		f.repo, f.movements, f.alertRepo, f.subRepo,
		senders, f.recorder, testAlertConfig(), logger)

	f.inventory = NewInventoryService(
		f.repo, f.movements, f.cache,
		f.broadcaster, f.publisher, f.alerts,
		testInventoryConfig(), testInstanceID, logger)

	return f
}

func (f *fixture) seed(productID, warehouseID string, quantity, reorderPoint int) {
	f.repo.Seed(domain.InventoryRecord{
		ProductID:       productID,
		WarehouseID:     warehouseID,
		Quantity:        quantity,
		ReorderPoint:    reorderPoint,
		ReorderQuantity: reorderPoint * 2,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	})
}
