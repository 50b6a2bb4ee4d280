package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// AlertRepository is an in-memory domain.AlertRepository
type AlertRepository struct {
	mu     sync.Mutex
	alerts map[string]*domain.StockAlert
}

// NewAlertRepository creates an empty in-memory alert repository
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{
		alerts: make(map[string]*domain.StockAlert),
	}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.StockAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *alert
	r.alerts[alert.ID] = &copied
	return nil
}

func (r *AlertRepository) FindOpenSince(ctx context.Context, productID string, alertType domain.AlertType, since time.Time) (*domain.StockAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *domain.StockAlert
	for _, alert := range r.alerts {
		if alert.ProductID != productID || alert.Type != alertType {
			continue
		}
		if !alert.Status.IsOpen() || alert.CreatedAt.Before(since) {
			continue
		}
		if newest == nil || alert.CreatedAt.After(newest.CreatedAt) {
			newest = alert
		}
	}
	if newest == nil {
		return nil, nil
	}
	copied := *newest
	return &copied, nil
}

func (r *AlertRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if alert, ok := r.alerts[id]; ok && alert.Status == domain.AlertPending {
		alert.Status = domain.AlertNotified
		notifiedAt := at
		alert.NotifiedAt = &notifiedAt
	}
	return nil
}

func (r *AlertRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if alert, ok := r.alerts[id]; ok && alert.Status.IsOpen() {
		alert.Status = domain.AlertResolved
		resolvedAt := at
		alert.ResolvedAt = &resolvedAt
	}
	return nil
}

func (r *AlertRepository) OpenAlerts(ctx context.Context, productID string, types ...domain.AlertType) ([]*domain.StockAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	typeSet := make(map[domain.AlertType]bool, len(types))
	for _, alertType := range types {
		typeSet[alertType] = true
	}

	var open []*domain.StockAlert
	for _, alert := range r.alerts {
		if alert.ProductID != productID || !alert.Status.IsOpen() {
			continue
		}
		if len(typeSet) > 0 && !typeSet[alert.Type] {
			continue
		}
		copied := *alert
		open = append(open, &copied)
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].CreatedAt.After(open[j].CreatedAt)
	})
	return open, nil
}

func (r *AlertRepository) Stats(ctx context.Context) (*domain.AlertStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &domain.AlertStats{
		ByType:   make(map[domain.AlertType]int),
		ByStatus: make(map[domain.AlertStatus]int),
	}
	for _, alert := range r.alerts {
		stats.Total++
		stats.ByType[alert.Type]++
		stats.ByStatus[alert.Status]++
		if alert.Status.IsOpen() {
			stats.Open++
		}
	}
	return stats, nil
}
