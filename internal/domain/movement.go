package domain

import (
	"time"

	"github.com/google/uuid"
)

// MovementType classifies a stock movement log entry.
type MovementType string

const (
	MovementIn          MovementType = "in"
	MovementOut         MovementType = "out"
	MovementReserved    MovementType = "reserved"
	MovementReleased    MovementType = "released"
	MovementAdjusted    MovementType = "adjusted"
	MovementTransferred MovementType = "transferred"
)

// StockMovement is an append-only audit entry for every quantity-affecting
// event. Entries are never mutated or deleted; they form the audit trail and
// the basis for sales-velocity analytics.
type StockMovement struct {
	ID            string       `json:"id" db:"id"`
	ProductID     string       `json:"product_id" db:"product_id"`
	VariantID     string       `json:"variant_id,omitempty" db:"variant_id"`
	Type          MovementType `json:"type" db:"type"`
	Quantity      int          `json:"quantity" db:"quantity"` // signed; negative for outbound legs
	ReferenceID   string       `json:"reference_id,omitempty" db:"reference_id"`
	ReferenceType string       `json:"reference_type,omitempty" db:"reference_type"`
	FromLocation  string       `json:"from_location,omitempty" db:"from_location"`
	ToLocation    string       `json:"to_location,omitempty" db:"to_location"`
	Reason        string       `json:"reason,omitempty" db:"reason"`
	UserID        string       `json:"user_id,omitempty" db:"user_id"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// NewStockMovement creates a movement entry with a generated ID and the
// current timestamp.
func NewStockMovement(productID, variantID string, movementType MovementType, quantity int) *StockMovement {
	return &StockMovement{
		ID:        uuid.New().String(),
		ProductID: productID,
		VariantID: variantID,
		Type:      movementType,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
}

// MovementFilter narrows a movement log query.
type MovementFilter struct {
	ProductID string
	VariantID string
	Types     []MovementType
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}
