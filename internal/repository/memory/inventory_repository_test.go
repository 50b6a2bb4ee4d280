package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

func seedRecord(r *InventoryRepository, productID, warehouseID string, qty int) {
	r.Seed(domain.InventoryRecord{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	})
}

func mustReserve(t *testing.T, r *InventoryRepository, productID string, qty int, referenceID string) *domain.Reservation {
	t.Helper()
	reservation, err := domain.NewReservation(productID, "", qty, referenceID, domain.ReferenceCart, time.Minute)
	if err != nil {
		t.Fatalf("NewReservation failed: %v", err)
	}
	if err := r.ReserveAtomic(context.Background(), reservation); err != nil {
		t.Fatalf("ReserveAtomic failed: %v", err)
	}
	return reservation
}

func TestReserveAtomic_InsufficientStock(t *testing.T) {
	repo := NewInventoryRepository()
	seedRecord(repo, "p1", "main", 5)
	ctx := context.Background()

	mustReserve(t, repo, "p1", 5, "cart-1")

	reservation, _ := domain.NewReservation("p1", "", 1, "cart-2", domain.ReferenceCart, time.Minute)
	if err := repo.ReserveAtomic(ctx, reservation); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestReserveAtomic_UnknownProduct(t *testing.T) {
	repo := NewInventoryRepository()

	reservation, _ := domain.NewReservation("ghost", "", 1, "cart-1", domain.ReferenceCart, time.Minute)
	if err := repo.ReserveAtomic(context.Background(), reservation); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestReserveAtomic_ConcurrentLastUnit(t *testing.T) {
	repo := NewInventoryRepository()
	seedRecord(repo, "p1", "main", 1)
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reservation, err := domain.NewReservation("p1", "", 1, "cart-x", domain.ReferenceCart, time.Minute)
			if err != nil {
				return
			}
			if err := repo.ReserveAtomic(ctx, reservation); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("exactly one reservation may claim the last unit, got %d", succeeded)
	}
}

func TestReleaseReservation_Semantics(t *testing.T) {
	repo := NewInventoryRepository()
	seedRecord(repo, "p1", "main", 10)
	ctx := context.Background()

	reservation := mustReserve(t, repo, "p1", 3, "cart-1")

	released, err := repo.ReleaseReservation(ctx, reservation.ID, domain.ReservationCancelled)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !released {
		t.Error("first release should succeed")
	}

	released, err = repo.ReleaseReservation(ctx, reservation.ID, domain.ReservationCancelled)
	if err != nil {
		t.Fatalf("second release errored: %v", err)
	}
	if released {
		t.Error("second release must be a no-op")
	}

	// Confirmed is not a valid release target.
	if _, err := repo.ReleaseReservation(ctx, reservation.ID, domain.ReservationConfirmed); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestConfirmReservations(t *testing.T) {
	repo := NewInventoryRepository()
	seedRecord(repo, "p1", "main", 10)
	ctx := context.Background()

	mustReserve(t, repo, "p1", 4, "order-9")

	confirmed, err := repo.ConfirmReservations(ctx, "p1", "", 4, "order-9")
	if err != nil {
		t.Fatalf("ConfirmReservations failed: %v", err)
	}
	if len(confirmed) != 1 || confirmed[0].Status != domain.ReservationConfirmed {
		t.Errorf("unexpected confirmation result: %+v", confirmed)
	}

	record, err := repo.GetRecord(ctx, domain.ItemKey{ProductID: "p1"})
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if record.Quantity != 6 {
		t.Errorf("confirmation should decrement stock to 6, got %d", record.Quantity)
	}

	// No more active reservations for the order.
	if _, err := repo.ConfirmReservations(ctx, "p1", "", 4, "order-9"); !errors.Is(err, domain.ErrReservationNotFound) {
		t.Errorf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestConfirmReservations_SpansWarehouses(t *testing.T) {
	repo := NewInventoryRepository()
	seedRecord(repo, "p1", "wh-a", 3)
	seedRecord(repo, "p1", "wh-b", 5)
	ctx := context.Background()

	mustReserve(t, repo, "p1", 6, "order-1")

	if _, err := repo.ConfirmReservations(ctx, "p1", "", 6, "order-1"); err != nil {
		t.Fatalf("ConfirmReservations failed: %v", err)
	}

	record, _ := repo.GetRecord(ctx, domain.ItemKey{ProductID: "p1"})
	if record.Quantity != 2 {
		t.Errorf("expected 2 remaining across warehouses, got %d", record.Quantity)
	}

	// Largest warehouse is drawn down first.
	whB, _ := repo.GetRecord(ctx, domain.ItemKey{ProductID: "p1", WarehouseID: "wh-b"})
	if whB.Quantity != 0 {
		t.Errorf("expected wh-b drained first, got %d", whB.Quantity)
	}
}

func TestExpireDue(t *testing.T) {
	repo := NewInventoryRepository()
	seedRecord(repo, "p1", "main", 10)
	ctx := context.Background()

	reservation, _ := domain.NewReservation("p1", "", 2, "cart-1", domain.ReferenceCart, time.Minute)
	reservation.ExpiresAt = time.Now().Add(-time.Second)
	if err := repo.ReserveAtomic(ctx, reservation); err != nil {
		t.Fatalf("ReserveAtomic failed: %v", err)
	}
	mustReserve(t, repo, "p1", 3, "cart-2") // not yet expired

	expired, err := repo.ExpireDue(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("ExpireDue failed: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != reservation.ID {
		t.Fatalf("expected only the lapsed reservation, got %v", expired)
	}
	if expired[0].Status != domain.ReservationExpired {
		t.Errorf("expected expired status, got %s", expired[0].Status)
	}

	reserved, _ := repo.ActiveReservedSum(ctx, "p1", "")
	if reserved != 3 {
		t.Errorf("expected 3 still reserved, got %d", reserved)
	}
}

func TestTransfer_Rollback(t *testing.T) {
	repo := NewInventoryRepository()
	seedRecord(repo, "p1", "wh-a", 3)
	ctx := context.Background()

	if err := repo.Transfer(ctx, "p1", "", 5, "wh-a", "wh-b"); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	source, _ := repo.GetRecord(ctx, domain.ItemKey{ProductID: "p1", WarehouseID: "wh-a"})
	if source.Quantity != 3 {
		t.Errorf("failed transfer must leave source intact, got %d", source.Quantity)
	}
	if _, err := repo.GetRecord(ctx, domain.ItemKey{ProductID: "p1", WarehouseID: "wh-b"}); !errors.Is(err, domain.ErrProductNotFound) {
		t.Error("failed transfer must not create the destination record")
	}
}

func TestGetRecord_AggregatesWarehouses(t *testing.T) {
	repo := NewInventoryRepository()
	seedRecord(repo, "p1", "wh-a", 3)
	seedRecord(repo, "p1", "wh-b", 7)

	record, err := repo.GetRecord(context.Background(), domain.ItemKey{ProductID: "p1"})
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if record.Quantity != 10 {
		t.Errorf("expected aggregated quantity 10, got %d", record.Quantity)
	}
	if record.WarehouseID != "" {
		t.Errorf("aggregate record must not carry a warehouse ID, got %q", record.WarehouseID)
	}
}

func TestEnsureRecord(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()

	record, err := repo.EnsureRecord(ctx, domain.ItemKey{ProductID: "p1", WarehouseID: "main"})
	if err != nil {
		t.Fatalf("EnsureRecord failed: %v", err)
	}
	if record.Quantity != 0 {
		t.Errorf("lazily created record should start at zero, got %d", record.Quantity)
	}

	seedRecord(repo, "p2", "main", 8)
	record, err = repo.EnsureRecord(ctx, domain.ItemKey{ProductID: "p2", WarehouseID: "main"})
	if err != nil {
		t.Fatalf("EnsureRecord failed: %v", err)
	}
	if record.Quantity != 8 {
		t.Errorf("existing record must be returned unchanged, got %d", record.Quantity)
	}
}
