package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus represents the lifecycle state of a stock reservation.
// Terminal states (confirmed, cancelled, expired) are final; a reservation
// is never resurrected.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationConfirmed || s == ReservationCancelled || s == ReservationExpired
}

// ReferenceType identifies what a reservation is held for.
type ReferenceType string

const (
	ReferenceOrder ReferenceType = "order"
	ReferenceCart  ReferenceType = "cart"
)

// Reservation is a time-bounded hold against available stock. It does not
// change InventoryRecord.Quantity; it only reduces derived availability
// until it is confirmed, cancelled, or expires.
type Reservation struct {
	ID            string            `json:"id" db:"id"`
	ProductID     string            `json:"product_id" db:"product_id"`
	VariantID     string            `json:"variant_id,omitempty" db:"variant_id"`
	Quantity      int               `json:"quantity" db:"quantity"`
	ReferenceID   string            `json:"reference_id" db:"reference_id"`
	ReferenceType ReferenceType     `json:"reference_type" db:"reference_type"`
	Status        ReservationStatus `json:"status" db:"status"`
	ExpiresAt     time.Time         `json:"expires_at" db:"expires_at"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// Default reservation lifetimes. Checkout-stage holds get the longer window
// because payment entry routinely takes more than fifteen minutes.
const (
	DefaultReservationTTL  = 15 * time.Minute
	CheckoutReservationTTL = 30 * time.Minute
)

// NewReservation creates an active reservation expiring after ttl.
// A zero ttl selects the default for the reference type.
func NewReservation(productID, variantID string, quantity int, referenceID string, refType ReferenceType, ttl time.Duration) (*Reservation, error) {
	if productID == "" {
		return nil, ErrProductNotFound
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if referenceID == "" {
		return nil, ErrInvalidReference
	}

	if ttl <= 0 {
		if refType == ReferenceOrder {
			ttl = CheckoutReservationTTL
		} else {
			ttl = DefaultReservationTTL
		}
	}

	now := time.Now().UTC()
	return &Reservation{
		ID:            uuid.New().String(),
		ProductID:     productID,
		VariantID:     variantID,
		Quantity:      quantity,
		ReferenceID:   referenceID,
		ReferenceType: refType,
		Status:        ReservationActive,
		ExpiresAt:     now.Add(ttl),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsExpired reports whether the reservation's TTL has elapsed.
func (r *Reservation) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// IsActive reports whether the reservation still holds stock.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive && !r.IsExpired()
}
