package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// MovementRepository is an in-memory, append-only movement log
type MovementRepository struct {
	mu        sync.Mutex
	movements []*domain.StockMovement
}

// NewMovementRepository creates an empty in-memory movement log
func NewMovementRepository() *MovementRepository {
	return &MovementRepository{}
}

func (r *MovementRepository) Append(ctx context.Context, movement *domain.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *movement
	r.movements = append(r.movements, &copied)
	return nil
}

func (r *MovementRepository) List(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	typeSet := make(map[domain.MovementType]bool, len(filter.Types))
	for _, movementType := range filter.Types {
		typeSet[movementType] = true
	}

	var matched []*domain.StockMovement
	for _, movement := range r.movements {
		if filter.ProductID != "" && movement.ProductID != filter.ProductID {
			continue
		}
		if filter.VariantID != "" && movement.VariantID != filter.VariantID {
			continue
		}
		if len(typeSet) > 0 && !typeSet[movement.Type] {
			continue
		}
		if !filter.Since.IsZero() && movement.CreatedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !movement.CreatedAt.Before(filter.Until) {
			continue
		}
		copied := *movement
		matched = append(matched, &copied)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MovementRepository) SalesVelocity(ctx context.Context, productID, variantID string, window time.Duration) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	since := time.Now().UTC().Add(-window)
	sold := 0
	for _, movement := range r.movements {
		if movement.ProductID != productID || movement.VariantID != variantID {
			continue
		}
		if movement.Type != domain.MovementOut || movement.CreatedAt.Before(since) {
			continue
		}
		// Only order-tied sales count; admin write-offs are not demand.
		if movement.ReferenceType != string(domain.ReferenceOrder) {
			continue
		}
		qty := movement.Quantity
		if qty < 0 {
			qty = -qty
		}
		sold += qty
	}

	days := window.Hours() / 24
	if days <= 0 {
		return 0, nil
	}
	return float64(sold) / days, nil
}
