package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// SubscriptionRepository is an in-memory domain.SubscriptionRepository
type SubscriptionRepository struct {
	mu   sync.Mutex
	subs map[string]*domain.StockSubscription
}

// NewSubscriptionRepository creates an empty in-memory subscription repository
func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		subs: make(map[string]*domain.StockSubscription),
	}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.StockSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Mirror the partial unique index: at most one active row per
	// (user, product). A concurrent duplicate create is absorbed.
	for _, existing := range r.subs {
		if existing.UserID == sub.UserID && existing.ProductID == sub.ProductID && existing.Active {
			return nil
		}
	}

	copied := *sub
	r.subs[sub.ID] = &copied
	return nil
}

func (r *SubscriptionRepository) FindActive(ctx context.Context, userID, productID string) (*domain.StockSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		if sub.UserID == userID && sub.ProductID == productID && sub.Active {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *SubscriptionRepository) ListActiveForProduct(ctx context.Context, productID string) ([]*domain.StockSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []*domain.StockSubscription
	for _, sub := range r.subs {
		if sub.ProductID == productID && sub.Active {
			copied := *sub
			active = append(active, &copied)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

func (r *SubscriptionRepository) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || !sub.Active {
		return domain.ErrSubscriptionNotFound
	}
	sub.Active = false
	sub.UpdatedAt = time.Now().UTC()
	return nil
}
