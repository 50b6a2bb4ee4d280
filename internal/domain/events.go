package domain

import (
	"encoding/json"
	"time"
)

// StockUpdateEvent is published on the stock-updates channel for real-time
// dashboard consumers on every cache invalidation.
type StockUpdateEvent struct {
	ProductID      string    `json:"productId"`
	VariantID      string    `json:"variantId,omitempty"`
	AvailableStock int       `json:"availableStock"`
	Timestamp      time.Time `json:"timestamp"`
}

// MovementEvent is the envelope published to the inventory-events topic for
// cross-process coordination. Peer processes invalidate their availability
// cache entries when they observe a movement they did not originate.
type MovementEvent struct {
	EventID      string       `json:"eventId"`
	Source       string       `json:"source"` // originating process instance
	ProductID    string       `json:"productId"`
	VariantID    string       `json:"variantId,omitempty"`
	Type         MovementType `json:"type"`
	Quantity     int          `json:"quantity"`
	CurrentStock int          `json:"currentStock"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Unmarshal decodes a movement event from its wire form.
func (e *MovementEvent) Unmarshal(payload []byte) error {
	return json.Unmarshal(payload, e)
}
