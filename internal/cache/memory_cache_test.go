package cache

import (
	"context"
	"testing"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

func testAvailability(productID string, available int) *domain.Availability {
	return &domain.Availability{
		ProductID:  productID,
		Total:      available,
		Available:  available,
		ComputedAt: time.Now().UTC(),
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, testAvailability("p1", 7)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := c.Get(ctx, "p1", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Available != 7 {
		t.Errorf("unexpected cache hit: %+v", got)
	}

	// Miss returns nil, nil.
	got, err = c.Get(ctx, "p2", "")
	if err != nil {
		t.Fatalf("Get miss errored: %v", err)
	}
	if got != nil {
		t.Errorf("expected miss, got %+v", got)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache(5 * time.Millisecond)
	ctx := context.Background()

	if err := c.Set(ctx, testAvailability("p1", 7)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	got, err := c.Get(ctx, "p1", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("entry should have expired, got %+v", got)
	}
}

func TestMemoryCache_Invalidate(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, testAvailability("p1", 7)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Invalidate(ctx, "p1", ""); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	got, err := c.Get(ctx, "p1", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected invalidated entry to miss, got %+v", got)
	}
}

func TestMemoryCache_VariantsAreIndependent(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	withVariant := testAvailability("p1", 3)
	withVariant.VariantID = "red"
	if err := c.Set(ctx, withVariant); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set(ctx, testAvailability("p1", 9)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, _ := c.Get(ctx, "p1", "red")
	if got == nil || got.Available != 3 {
		t.Errorf("variant entry clobbered: %+v", got)
	}
	got, _ = c.Get(ctx, "p1", "")
	if got == nil || got.Available != 9 {
		t.Errorf("base entry clobbered: %+v", got)
	}
}
