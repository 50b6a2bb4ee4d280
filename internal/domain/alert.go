package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertType classifies a stock alert.
type AlertType string

const (
	AlertLowStock   AlertType = "low_stock"
	AlertOutOfStock AlertType = "out_of_stock"
	AlertRestock    AlertType = "restock"
	AlertHighDemand AlertType = "high_demand"
	AlertSlowMoving AlertType = "slow_moving"
)

// AlertStatus represents the lifecycle of a stock alert.
type AlertStatus string

const (
	AlertPending  AlertStatus = "pending"
	AlertNotified AlertStatus = "notified"
	AlertResolved AlertStatus = "resolved"
	AlertIgnored  AlertStatus = "ignored"
)

// IsOpen reports whether the alert still counts against the dedup window.
func (s AlertStatus) IsOpen() bool {
	return s == AlertPending || s == AlertNotified
}

// AlertSeverity ranks alerts for admin notification routing.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Severity returns the severity associated with an alert type.
func (t AlertType) Severity() AlertSeverity {
	switch t {
	case AlertOutOfStock:
		return SeverityCritical
	case AlertLowStock, AlertHighDemand:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// AlertMetadata is the typed payload attached to an alert. Only the fields
// relevant to the alert type are populated.
type AlertMetadata struct {
	SalesVelocity  float64 `json:"sales_velocity,omitempty"`  // high_demand / slow_moving: avg units/day over the velocity window
	DaysOfCover    float64 `json:"days_of_cover,omitempty"`   // high_demand: stock divided by velocity
	RestockedBy    string  `json:"restocked_by,omitempty"`    // restock: user who performed the inbound movement
	RestockedQty   int     `json:"restocked_qty,omitempty"`   // restock: quantity added
	TriggerReason  string  `json:"trigger_reason,omitempty"`  // free-form context for admins
	EvaluationKind string  `json:"evaluation_kind,omitempty"` // "movement" or "sweep"
}

// StockAlert is a deduplicated, typed stock condition notification.
// At most one open (pending|notified) alert of a given (product, type) may
// exist within the dedup window; repeated triggers are absorbed.
type StockAlert struct {
	ID           string        `json:"id" db:"id"`
	ProductID    string        `json:"product_id" db:"product_id"`
	VariantID    string        `json:"variant_id,omitempty" db:"variant_id"`
	Type         AlertType     `json:"type" db:"type"`
	Threshold    int           `json:"threshold" db:"threshold"`
	CurrentStock int           `json:"current_stock" db:"current_stock"`
	Status       AlertStatus   `json:"status" db:"status"`
	Metadata     AlertMetadata `json:"metadata" db:"metadata"`
	NotifiedAt   *time.Time    `json:"notified_at,omitempty" db:"notified_at"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// NewStockAlert creates a pending alert.
func NewStockAlert(productID, variantID string, alertType AlertType, threshold, currentStock int, metadata AlertMetadata) *StockAlert {
	return &StockAlert{
		ID:           uuid.New().String(),
		ProductID:    productID,
		VariantID:    variantID,
		Type:         alertType,
		Threshold:    threshold,
		CurrentStock: currentStock,
		Status:       AlertPending,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
}

// AlertStats aggregates alert counts for the admin dashboard.
type AlertStats struct {
	Total    int                   `json:"total"`
	ByType   map[AlertType]int     `json:"by_type"`
	ByStatus map[AlertStatus]int   `json:"by_status"`
	Open     int                   `json:"open"`
}

// NotificationType is the delivery channel of a stock subscription.
type NotificationType string

const (
	NotifyEmail NotificationType = "email"
	NotifySMS   NotificationType = "sms"
	NotifyPush  NotificationType = "push"
	NotifyInApp NotificationType = "in_app"
)

// StockSubscription is a per-user, per-product notification preference.
// Restock subscriptions are one-shot: they are deactivated after the restock
// notification fires.
type StockSubscription struct {
	ID               string           `json:"id" db:"id"`
	UserID           string           `json:"user_id" db:"user_id"`
	ProductID        string           `json:"product_id" db:"product_id"`
	NotificationType NotificationType `json:"notification_type" db:"notification_type"`
	Threshold        *int             `json:"threshold,omitempty" db:"threshold"`
	Active           bool             `json:"active" db:"active"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// NewStockSubscription creates an active subscription.
func NewStockSubscription(userID, productID string, notificationType NotificationType, threshold *int) *StockSubscription {
	now := time.Now().UTC()
	return &StockSubscription{
		ID:               uuid.New().String(),
		UserID:           userID,
		ProductID:        productID,
		NotificationType: notificationType,
		Threshold:        threshold,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
