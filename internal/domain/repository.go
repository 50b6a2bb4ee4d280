package domain

import (
	"context"
	"time"
)

// InventoryRepository is the contract for the inventory store and the
// reservation ledger. The two live behind one interface because the
// no-oversell contract requires the availability check and the reservation
// insert to be a single atomic unit against the storage layer, and the same
// holds for confirmation (status transition plus quantity decrement).
type InventoryRepository interface {
	// GetRecord retrieves an inventory record; ErrProductNotFound if absent.
	GetRecord(ctx context.Context, key ItemKey) (*InventoryRecord, error)

	// EnsureRecord retrieves a record, lazily creating one with zero
	// quantity on first reference.
	EnsureRecord(ctx context.Context, key ItemKey) (*InventoryRecord, error)

	// ActiveReservedSum returns the total quantity held by active,
	// non-expired reservations for the product.
	ActiveReservedSum(ctx context.Context, productID, variantID string) (int, error)

	// ReserveAtomic recomputes availability and inserts the reservation in
	// one atomic operation. Two concurrent calls for the last unit of stock
	// must not both succeed. Returns ErrInsufficientStock when availability
	// is below the reservation quantity and ErrProductNotFound when no
	// record exists.
	ReserveAtomic(ctx context.Context, reservation *Reservation) error

	// FindReservation retrieves a reservation by ID.
	FindReservation(ctx context.Context, id string) (*Reservation, error)

	// ReleaseReservation transitions an active reservation to cancelled or
	// expired. Releasing an already-terminal reservation is a no-op and
	// reports released=false with a nil error (idempotent release).
	ReleaseReservation(ctx context.Context, id string, status ReservationStatus) (released bool, err error)

	// OldestActiveReservations returns active, non-expired reservations for
	// the product, oldest first, whose quantities cover at least qty.
	OldestActiveReservations(ctx context.Context, productID, variantID string, qty int) ([]*Reservation, error)

	// ConfirmReservations marks active reservations matching the order as
	// confirmed and decrements the inventory record by the confirmed
	// quantity, atomically. This is the only path that reduces total stock
	// for a sale.
	ConfirmReservations(ctx context.Context, productID, variantID string, qty int, orderID string) ([]*Reservation, error)

	// AdjustQuantity applies a direct administrative adjustment. Decrement
	// floors at zero. Returns the updated record.
	AdjustQuantity(ctx context.Context, key ItemKey, operation StockOperation, qty int) (*InventoryRecord, error)

	// Transfer debits the source warehouse and credits the destination in a
	// single transaction; partial transfers roll back fully.
	Transfer(ctx context.Context, productID, variantID string, qty int, fromWarehouse, toWarehouse string) error

	// ExpireDue transitions active reservations past their expiry to
	// expired and returns them. Reservations already terminal are skipped.
	ExpireDue(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)

	// ListLowStock returns records whose availability is at or below their
	// reorder point.
	ListLowStock(ctx context.Context) ([]*InventoryRecord, error)

	// ListRecords returns all inventory records (alert sweep input).
	ListRecords(ctx context.Context) ([]*InventoryRecord, error)
}

// MovementRepository is the append-only stock movement log.
type MovementRepository interface {
	Append(ctx context.Context, movement *StockMovement) error
	List(ctx context.Context, filter MovementFilter) ([]*StockMovement, error)

	// SalesVelocity returns the average units sold per day over the window,
	// derived from `out` movements.
	SalesVelocity(ctx context.Context, productID, variantID string, window time.Duration) (float64, error)
}

// AlertRepository persists stock alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *StockAlert) error

	// FindOpenSince returns an open (pending|notified) alert of the given
	// type created at or after since, or nil when none exists. This backs
	// the dedup window.
	FindOpenSince(ctx context.Context, productID string, alertType AlertType, since time.Time) (*StockAlert, error)

	MarkNotified(ctx context.Context, id string, at time.Time) error
	Resolve(ctx context.Context, id string, at time.Time) error

	// OpenAlerts returns open alerts for a product, optionally filtered by type.
	OpenAlerts(ctx context.Context, productID string, types ...AlertType) ([]*StockAlert, error)

	Stats(ctx context.Context) (*AlertStats, error)
}

// SubscriptionRepository persists per-user stock notification preferences.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *StockSubscription) error

	// FindActive returns the active subscription for (userID, productID),
	// or nil when none exists.
	FindActive(ctx context.Context, userID, productID string) (*StockSubscription, error)

	// ListActiveForProduct returns all active subscriptions for a product.
	ListActiveForProduct(ctx context.Context, productID string) ([]*StockSubscription, error)

	// Deactivate soft-deactivates a subscription by ID.
	Deactivate(ctx context.Context, id string) error
}
