package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// MemoryCache is an in-process AvailabilityCache for tests and single-node
// deployments without Redis.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	availability domain.Availability
	expiresAt    time.Time
}

// NewMemoryCache creates an in-memory availability cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(ctx context.Context, productID, variantID string) (*domain.Availability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[availabilityKey(productID, variantID)]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	copied := entry.availability
	return &copied, nil
}

func (c *MemoryCache) Set(ctx context.Context, availability *domain.Availability) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[availabilityKey(availability.ProductID, availability.VariantID)] = memoryEntry{
		availability: *availability,
		expiresAt:    time.Now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, productID, variantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, availabilityKey(productID, variantID))
	return nil
}
