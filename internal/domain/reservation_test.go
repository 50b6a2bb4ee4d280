package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewReservation_Validation(t *testing.T) {
	tests := []struct {
		name        string
		productID   string
		quantity    int
		referenceID string
		wantErr     error
	}{
		{"missing product", "", 1, "cart-1", ErrProductNotFound},
		{"zero quantity", "p1", 0, "cart-1", ErrInvalidQuantity},
		{"negative quantity", "p1", -2, "cart-1", ErrInvalidQuantity},
		{"missing reference", "p1", 1, "", ErrInvalidReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReservation(tt.productID, "", tt.quantity, tt.referenceID, ReferenceCart, 0)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewReservation_DefaultTTL(t *testing.T) {
	cart, err := NewReservation("p1", "", 1, "cart-1", ReferenceCart, 0)
	if err != nil {
		t.Fatalf("cart reservation failed: %v", err)
	}
	order, err := NewReservation("p1", "", 1, "order-1", ReferenceOrder, 0)
	if err != nil {
		t.Fatalf("order reservation failed: %v", err)
	}

	cartTTL := time.Until(cart.ExpiresAt)
	if cartTTL < DefaultReservationTTL-time.Minute || cartTTL > DefaultReservationTTL {
		t.Errorf("cart TTL should default to %v, got %v", DefaultReservationTTL, cartTTL)
	}
	orderTTL := time.Until(order.ExpiresAt)
	if orderTTL < CheckoutReservationTTL-time.Minute || orderTTL > CheckoutReservationTTL {
		t.Errorf("order TTL should default to %v, got %v", CheckoutReservationTTL, orderTTL)
	}
}

func TestNewReservation_ExplicitTTL(t *testing.T) {
	reservation, err := NewReservation("p1", "", 1, "cart-1", ReferenceCart, time.Hour)
	if err != nil {
		t.Fatalf("reservation failed: %v", err)
	}
	ttl := time.Until(reservation.ExpiresAt)
	if ttl < 59*time.Minute || ttl > time.Hour {
		t.Errorf("expected TTL near one hour, got %v", ttl)
	}
}

func TestReservationStatus_IsTerminal(t *testing.T) {
	if ReservationActive.IsTerminal() {
		t.Error("active must not be terminal")
	}
	for _, status := range []ReservationStatus{ReservationConfirmed, ReservationCancelled, ReservationExpired} {
		if !status.IsTerminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
}

func TestReservation_IsActive(t *testing.T) {
	reservation, err := NewReservation("p1", "", 1, "cart-1", ReferenceCart, time.Minute)
	if err != nil {
		t.Fatalf("reservation failed: %v", err)
	}
	if !reservation.IsActive() {
		t.Error("fresh reservation should be active")
	}

	reservation.ExpiresAt = time.Now().Add(-time.Second)
	if reservation.IsActive() {
		t.Error("expired reservation must not be active")
	}
	if !reservation.IsExpired() {
		t.Error("IsExpired should report true past the deadline")
	}
}
