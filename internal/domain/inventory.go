package domain

import (
	"errors"
	"time"
)

// InventoryRecord is the authoritative per-product stock record.
// Quantity is total physical stock. A reservation alone never reduces it;
// only a confirmed sale, an explicit adjustment, or the outbound leg of a
// transfer does.
type InventoryRecord struct {
	ProductID       string     `json:"product_id" db:"product_id"`
	VariantID       string     `json:"variant_id,omitempty" db:"variant_id"`
	WarehouseID     string     `json:"warehouse_id,omitempty" db:"warehouse_id"`
	Quantity        int        `json:"quantity" db:"quantity"`
	ReorderPoint    int        `json:"reorder_point" db:"reorder_point"`
	ReorderQuantity int        `json:"reorder_quantity" db:"reorder_quantity"`
	LastRestockedAt *time.Time `json:"last_restocked_at,omitempty" db:"last_restocked_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// ItemKey identifies an inventory record. VariantID and WarehouseID may be
// empty; records for the same product in different warehouses are independent
// and carry no cross-warehouse locking.
type ItemKey struct {
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	WarehouseID string `json:"warehouse_id,omitempty"`
}

// Availability is the derived view "total minus active reservations".
// It is never stored durably as authoritative; it only lives in the
// short-TTL availability cache and is always recomputable from the
// inventory record plus the reservation ledger.
type Availability struct {
	ProductID  string    `json:"product_id"`
	VariantID  string    `json:"variant_id,omitempty"`
	Total      int       `json:"total"`
	Reserved   int       `json:"reserved"`
	Available  int       `json:"available"`
	ComputedAt time.Time `json:"computed_at"`
}

// StockOperation is the kind of direct administrative stock adjustment.
type StockOperation string

const (
	OperationIncrement StockOperation = "increment"
	OperationDecrement StockOperation = "decrement"
	OperationSet       StockOperation = "set"
)

// StockUpdate is one item of a bulk administrative adjustment.
type StockUpdate struct {
	ProductID string         `json:"product_id"`
	VariantID string         `json:"variant_id,omitempty"`
	Quantity  int            `json:"quantity"`
	Operation StockOperation `json:"operation"`
}

// LowStockProduct describes a product at or below its reorder point,
// with a suggested replenishment quantity.
type LowStockProduct struct {
	Record           InventoryRecord `json:"record"`
	Available        int             `json:"available"`
	ShortageQuantity int             `json:"shortage_quantity"`
	SuggestedReorder int             `json:"suggested_reorder"`
}

// Domain errors
var (
	ErrProductNotFound      = errors.New("inventory record not found")
	ErrInsufficientStock    = errors.New("insufficient stock available")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidOperation     = errors.New("unknown stock operation")
	ErrInvalidReference     = errors.New("reference ID cannot be empty")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrSameWarehouse        = errors.New("source and destination warehouse must differ")
	ErrSubscriptionNotFound = errors.New("stock subscription not found")
)
