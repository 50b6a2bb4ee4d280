package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/config"
	"github.com/hanbit-commerce/inventory-service/internal/domain"
	"github.com/hanbit-commerce/inventory-service/internal/notification"
	apperrors "github.com/hanbit-commerce/inventory-service/internal/platform/errors"
)

// StockAlertService is the alert engine: it evaluates stock state against
// thresholds, raises deduplicated alerts, fans notifications out to
// subscribers and admins, and manages stock subscriptions.
type StockAlertService interface {
	AlertEvaluator

	// SweepOnce evaluates every inventory record. Backs the periodic alert
	// sweep; exposed for deterministic tests.
	SweepOnce(ctx context.Context) error

	// GetAlertStats aggregates alert counts for the admin dashboard.
	GetAlertStats(ctx context.Context) (*domain.AlertStats, error)

	// GetOpenAlerts returns open alerts for a product.
	GetOpenAlerts(ctx context.Context, productID string, types ...domain.AlertType) ([]*domain.StockAlert, error)

	// CreateSubscription registers a user's interest in a product's stock.
	// Creating a duplicate returns the existing active subscription.
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*domain.StockSubscription, error)

	// CancelSubscription deactivates the user's active subscription.
	CancelSubscription(ctx context.Context, userID, productID string) error
}

type CreateSubscriptionRequest struct {
	UserID           string
	ProductID        string
	NotificationType domain.NotificationType
	Threshold        *int
}

type stockAlertService struct {
	repo      domain.InventoryRepository
	movements domain.MovementRepository
	alerts    domain.AlertRepository
	subs      domain.SubscriptionRepository
	senders   notification.Senders
	admin     notification.AdminNotifier
	cfg       config.AlertConfig
	logger    *slog.Logger
}

// NewStockAlertService creates the alert engine.
func NewStockAlertService(
	repo domain.InventoryRepository,
	movements domain.MovementRepository,
	alerts domain.AlertRepository,
	subs domain.SubscriptionRepository,
	senders notification.Senders,
	admin notification.AdminNotifier,
	cfg config.AlertConfig,
	logger *slog.Logger,
) StockAlertService {
	if admin == nil {
		admin = notification.NewLogAdminNotifier(logger)
	}
	return &stockAlertService{
		repo:      repo,
		movements: movements,
		alerts:    alerts,
		subs:      subs,
		senders:   senders,
		admin:     admin,
		cfg:       cfg,
		logger:    logger,
	}
}

// EvaluateProduct evaluates one product's stock state. Threshold checks run
// on every trigger; velocity-based checks (high demand, slow moving) only
// run during the sweep because they query the movement log.
func (s *stockAlertService) EvaluateProduct(ctx context.Context, productID, variantID string, trigger EvaluationTrigger) error {
	record, err := s.repo.GetRecord(ctx, domain.ItemKey{ProductID: productID, VariantID: variantID})
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil
		}
		return apperrors.Wrap(err, "failed to load record for alert evaluation")
	}

	reserved, err := s.repo.ActiveReservedSum(ctx, productID, variantID)
	if err != nil {
		return apperrors.Wrap(err, "failed to sum reservations for alert evaluation")
	}
	available := record.Quantity - reserved

	threshold := record.ReorderPoint
	if threshold <= 0 {
		threshold = s.cfg.LowStockThreshold
	}

	if s.isRestock(trigger, record) {
		s.raiseRestock(ctx, record, trigger)
	}

	switch {
	case available <= 0:
		s.raise(ctx, record, domain.AlertOutOfStock, threshold, available, domain.AlertMetadata{
			TriggerReason:  "availability exhausted",
			EvaluationKind: string(trigger.Kind),
		})
	case available <= threshold:
		s.raise(ctx, record, domain.AlertLowStock, threshold, available, domain.AlertMetadata{
			TriggerReason:  fmt.Sprintf("available %d at or below threshold %d", available, threshold),
			EvaluationKind: string(trigger.Kind),
		})
	default:
		s.resolveRecovered(ctx, record.ProductID)
	}

	if trigger.Kind == EvaluationSweep {
		s.evaluateVelocity(ctx, record, available, trigger)
	}

	return nil
}

func (s *stockAlertService) isRestock(trigger EvaluationTrigger, record *domain.InventoryRecord) bool {
	return trigger.Kind == EvaluationMovement &&
		trigger.MovementType == domain.MovementIn &&
		trigger.PreviousStock == 0 &&
		record.Quantity > 0
}

// evaluateVelocity runs the sales-velocity checks. High demand fires when
// remaining stock covers fewer days than the configured floor; slow moving
// fires when velocity is near zero while stock sits well above the reorder
// point.
func (s *stockAlertService) evaluateVelocity(ctx context.Context, record *domain.InventoryRecord, available int, trigger EvaluationTrigger) {
	velocity, err := s.movements.SalesVelocity(ctx, record.ProductID, record.VariantID, s.cfg.VelocityWindow)
	if err != nil {
		s.logger.Warn("Failed to compute sales velocity",
			"productID", record.ProductID, "error", err)
		return
	}

	if velocity > 0 {
		daysOfCover := float64(available) / velocity
		if daysOfCover < s.cfg.HighDemandCoverDays {
			s.raise(ctx, record, domain.AlertHighDemand, record.ReorderPoint, available, domain.AlertMetadata{
				SalesVelocity:  velocity,
				DaysOfCover:    daysOfCover,
				TriggerReason:  fmt.Sprintf("%.1f days of cover at %.1f units/day", daysOfCover, velocity),
				EvaluationKind: string(trigger.Kind),
			})
		}
	}

	if velocity < s.cfg.SlowMovingVelocity &&
		record.ReorderPoint > 0 &&
		float64(available) > s.cfg.SlowMovingStockRatio*float64(record.ReorderPoint) {
		s.raise(ctx, record, domain.AlertSlowMoving, record.ReorderPoint, available, domain.AlertMetadata{
			SalesVelocity:  velocity,
			TriggerReason:  fmt.Sprintf("velocity %.2f units/day against %d on hand", velocity, available),
			EvaluationKind: string(trigger.Kind),
		})
	}
}

// raise creates an alert unless an open alert of the same type exists within
// the dedup window, then dispatches notifications.
func (s *stockAlertService) raise(ctx context.Context, record *domain.InventoryRecord, alertType domain.AlertType, threshold, currentStock int, metadata domain.AlertMetadata) {
	since := time.Now().UTC().Add(-s.cfg.DedupWindow)
	existing, err := s.alerts.FindOpenSince(ctx, record.ProductID, alertType, since)
	if err != nil {
		s.logger.Error("Alert dedup lookup failed",
			"productID", record.ProductID, "type", alertType, "error", err)
		return
	}
	if existing != nil {
		// Absorbed by the dedup window.
		return
	}

	alert := domain.NewStockAlert(record.ProductID, record.VariantID, alertType, threshold, currentStock, metadata)
	if err := s.alerts.Create(ctx, alert); err != nil {
		s.logger.Error("Failed to persist alert",
			"productID", record.ProductID, "type", alertType, "error", err)
		return
	}

	s.logger.Info("Stock alert raised",
		"productID", record.ProductID,
		"type", alertType,
		"severity", alertType.Severity(),
		"currentStock", currentStock,
		"threshold", threshold)

	s.dispatch(ctx, alert)
}

// dispatch notifies admins for every alert and fans out to subscribers for
// the subscriber-facing types. Delivery failures are logged; the alert is
// marked notified once dispatch has been attempted.
func (s *stockAlertService) dispatch(ctx context.Context, alert *domain.StockAlert) {
	if err := s.admin.NotifyAdmins(ctx, alert); err != nil {
		s.logger.Warn("Admin notification failed",
			"productID", alert.ProductID, "type", alert.Type, "error", err)
	}

	switch alert.Type {
	case domain.AlertLowStock, domain.AlertOutOfStock, domain.AlertRestock:
		s.notifySubscribers(ctx, alert)
	}

	if err := s.alerts.MarkNotified(ctx, alert.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("Failed to mark alert notified", "alertID", alert.ID, "error", err)
	}
}

// notifySubscribers delivers the alert to each active subscriber over their
// chosen channel. Restock subscriptions are one-shot: a delivered restock
// notification deactivates the subscription.
func (s *stockAlertService) notifySubscribers(ctx context.Context, alert *domain.StockAlert) {
	subscriptions, err := s.subs.ListActiveForProduct(ctx, alert.ProductID)
	if err != nil {
		s.logger.Error("Failed to list subscribers",
			"productID", alert.ProductID, "error", err)
		return
	}

	for _, sub := range subscriptions {
		if alert.Type == domain.AlertLowStock && sub.Threshold != nil && alert.CurrentStock > *sub.Threshold {
			continue
		}

		sender := s.senders.ForChannel(sub.NotificationType)
		if sender == nil {
			s.logger.Warn("No sender configured for channel",
				"channel", sub.NotificationType, "userID", sub.UserID)
			continue
		}

		message := notification.Message{
			Recipient:   sub.UserID,
			ProductID:   alert.ProductID,
			ProductName: alert.ProductID,
			AlertType:   alert.Type,
			Channel:     sub.NotificationType,
			Body:        messageBody(alert),
		}
		if err := sender.Send(ctx, message); err != nil {
			s.logger.Warn("Subscriber notification failed",
				"userID", sub.UserID, "channel", sub.NotificationType, "error", err)
			continue
		}

		if alert.Type == domain.AlertRestock {
			if err := s.subs.Deactivate(ctx, sub.ID); err != nil {
				s.logger.Warn("Failed to deactivate restock subscription",
					"subscriptionID", sub.ID, "error", err)
			}
		}
	}
}

func messageBody(alert *domain.StockAlert) string {
	switch alert.Type {
	case domain.AlertRestock:
		return fmt.Sprintf("Product %s is back in stock (%d available)", alert.ProductID, alert.CurrentStock)
	case domain.AlertOutOfStock:
		return fmt.Sprintf("Product %s is out of stock", alert.ProductID)
	default:
		return fmt.Sprintf("Product %s is running low (%d left)", alert.ProductID, alert.CurrentStock)
	}
}

func (s *stockAlertService) raiseRestock(ctx context.Context, record *domain.InventoryRecord, trigger EvaluationTrigger) {
	s.raise(ctx, record, domain.AlertRestock, 0, record.Quantity, domain.AlertMetadata{
		RestockedQty:   record.Quantity - trigger.PreviousStock,
		TriggerReason:  "stock recovered from zero",
		EvaluationKind: string(trigger.Kind),
	})
}

// resolveRecovered closes open low/out-of-stock alerts once availability is
// back above the threshold.
func (s *stockAlertService) resolveRecovered(ctx context.Context, productID string) {
	open, err := s.alerts.OpenAlerts(ctx, productID, domain.AlertLowStock, domain.AlertOutOfStock)
	if err != nil {
		s.logger.Warn("Failed to list open alerts for resolution",
			"productID", productID, "error", err)
		return
	}

	now := time.Now().UTC()
	for _, alert := range open {
		if err := s.alerts.Resolve(ctx, alert.ID, now); err != nil {
			s.logger.Warn("Failed to resolve alert", "alertID", alert.ID, "error", err)
			continue
		}
		s.logger.Info("Stock alert resolved",
			"alertID", alert.ID, "productID", productID, "type", alert.Type)
	}
}

// SweepOnce evaluates every record; per-product failures are logged and do
// not stop the sweep.
func (s *stockAlertService) SweepOnce(ctx context.Context) error {
	records, err := s.repo.ListRecords(ctx)
	if err != nil {
		return apperrors.Wrap(err, "failed to list records for alert sweep")
	}

	evaluated := make(map[string]bool)
	for _, record := range records {
		key := record.ProductID + "|" + record.VariantID
		if evaluated[key] {
			continue
		}
		evaluated[key] = true

		trigger := EvaluationTrigger{Kind: EvaluationSweep}
		if err := s.EvaluateProduct(ctx, record.ProductID, record.VariantID, trigger); err != nil {
			s.logger.Error("Sweep evaluation failed",
				"productID", record.ProductID, "error", err)
		}
	}
	return nil
}

// GetAlertStats returns aggregate alert counts.
func (s *stockAlertService) GetAlertStats(ctx context.Context) (*domain.AlertStats, error) {
	stats, err := s.alerts.Stats(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to aggregate alert stats")
	}
	return stats, nil
}

// GetOpenAlerts returns open alerts for a product, optionally filtered by type.
func (s *stockAlertService) GetOpenAlerts(ctx context.Context, productID string, types ...domain.AlertType) ([]*domain.StockAlert, error) {
	if productID == "" {
		return nil, apperrors.NewValidation("product ID is required")
	}
	alerts, err := s.alerts.OpenAlerts(ctx, productID, types...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list open alerts")
	}
	return alerts, nil
}

// CreateSubscription registers a stock subscription. A second subscription
// for the same (user, product) returns the existing one unchanged.
func (s *stockAlertService) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*domain.StockSubscription, error) {
	if req.UserID == "" || req.ProductID == "" {
		return nil, apperrors.NewValidation("user ID and product ID are required")
	}
	switch req.NotificationType {
	case domain.NotifyEmail, domain.NotifySMS, domain.NotifyPush, domain.NotifyInApp:
	default:
		return nil, apperrors.NewValidation("unknown notification type")
	}

	existing, err := s.subs.FindActive(ctx, req.UserID, req.ProductID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to look up subscription")
	}
	if existing != nil {
		return existing, nil
	}

	sub := domain.NewStockSubscription(req.UserID, req.ProductID, req.NotificationType, req.Threshold)
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, apperrors.Wrap(err, "failed to create subscription")
	}

	s.logger.Info("Stock subscription created",
		"userID", req.UserID, "productID", req.ProductID, "channel", req.NotificationType)
	return sub, nil
}

// CancelSubscription deactivates the user's active subscription for the product.
func (s *stockAlertService) CancelSubscription(ctx context.Context, userID, productID string) error {
	if userID == "" || productID == "" {
		return apperrors.NewValidation("user ID and product ID are required")
	}

	existing, err := s.subs.FindActive(ctx, userID, productID)
	if err != nil {
		return apperrors.Wrap(err, "failed to look up subscription")
	}
	if existing == nil {
		return &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: "no active subscription", Err: domain.ErrSubscriptionNotFound}
	}

	if err := s.subs.Deactivate(ctx, existing.ID); err != nil {
		return apperrors.Wrap(err, "failed to deactivate subscription")
	}

	s.logger.Info("Stock subscription cancelled", "userID", userID, "productID", productID)
	return nil
}
