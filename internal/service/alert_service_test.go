package service

import (
	"context"
	"testing"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
	apperrors "github.com/hanbit-commerce/inventory-service/internal/platform/errors"
)

func openAlerts(t *testing.T, f *fixture, productID string, types ...domain.AlertType) []*domain.StockAlert {
	t.Helper()
	alerts, err := f.alerts.GetOpenAlerts(context.Background(), productID, types...)
	if err != nil {
		t.Fatalf("GetOpenAlerts failed: %v", err)
	}
	return alerts
}

func TestLowStockAlert_RaisedAndDeduped(t *testing.T) {
	f := newFixture()
	f.seed("p1", "main", 10, 0) // threshold falls back to the configured 5
	ctx := context.Background()

	_, err := f.inventory.ReserveStock(ctx, ReserveStockRequest{
		ProductID: "p1", Quantity: 6, ReferenceID: "cart-1", ReferenceType: domain.ReferenceCart,
	})
	if err != nil {
		t.Fatalf("ReserveStock failed: %v", err)
	}

	alerts := openAlerts(t, f, "p1", domain.AlertLowStock)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 open low-stock alert, got %d", len(alerts))
	}
	if alerts[0].CurrentStock != 4 || alerts[0].Threshold != 5 {
		t.Errorf("unexpected alert payload: stock=%d threshold=%d", alerts[0].CurrentStock, alerts[0].Threshold)
	}
	if alerts[0].Status != domain.AlertNotified {
		t.Errorf("alert should be notified after dispatch, got %s", alerts[0].Status)
	}
	if len(f.recorder.AdminAlerts()) != 1 {
		t.Errorf("expected 1 admin notification, got %d", len(f.recorder.AdminAlerts()))
	}

	// A second trigger inside the dedup window is absorbed.
	_, err = f.inventory.ReserveStock(ctx, ReserveStockRequest{
		ProductID: "p1", Quantity: 1, ReferenceID: "cart-2", ReferenceType: domain.ReferenceCart,
	})
	if err != nil {
		t.Fatalf("second reserve failed: %v", err)
	}

	if got := openAlerts(t, f, "p1", domain.AlertLowStock); len(got) != 1 {
		t.Errorf("dedup window should absorb repeat triggers, got %d alerts", len(got))
	}
	if len(f.recorder.AdminAlerts()) != 1 {
		t.Errorf("repeat trigger must not re-notify admins, got %d", len(f.recorder.AdminAlerts()))
	}
}

func TestOutOfStockAlert(t *testing.T) {
	f := newFixture()
	f.seed("p1", "main", 3, 0)
	ctx := context.Background()

	_, err := f.inventory.ReserveStock(ctx, ReserveStockRequest{
		ProductID: "p1", Quantity: 3, ReferenceID: "cart-1", ReferenceType: domain.ReferenceCart,
	})
	if err != nil {
		t.Fatalf("ReserveStock failed: %v", err)
	}

	alerts := openAlerts(t, f, "p1", domain.AlertOutOfStock)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 out-of-stock alert, got %d", len(alerts))
	}
	if alerts[0].Type.Severity() != domain.SeverityCritical {
		t.Errorf("out-of-stock should be critical, got %s", alerts[0].Type.Severity())
	}
}

func TestAlertResolvedOnRecovery(t *testing.T) {
	f := newFixture()
	f.seed("p1", "main", 4, 0) // below the configured threshold of 5
	ctx := context.Background()

	if err := f.alerts.EvaluateProduct(ctx, "p1", "", EvaluationTrigger{Kind: EvaluationSweep}); err != nil {
		t.Fatalf("EvaluateProduct failed: %v", err)
	}
	if got := openAlerts(t, f, "p1", domain.AlertLowStock); len(got) != 1 {
		t.Fatalf("expected low-stock alert, got %d", len(got))
	}

	_, err := f.inventory.UpdateStock(ctx, UpdateStockRequest{
		ProductID: "p1", WarehouseID: "main", Quantity: 50,
		Operation: domain.OperationIncrement, Reason: "restock", UserID: "admin",
	})
	if err != nil {
		t.Fatalf("UpdateStock failed: %v", err)
	}

	if got := openAlerts(t, f, "p1", domain.AlertLowStock); len(got) != 0 {
		t.Errorf("recovery should resolve the alert, still open: %d", len(got))
	}

	stats, err := f.alerts.GetAlertStats(ctx)
	if err != nil {
		t.Fatalf("GetAlertStats failed: %v", err)
	}
	if stats.ByStatus[domain.AlertResolved] == 0 {
		t.Error("expected a resolved alert in stats")
	}
}

func TestRestockNotification_OneShotSubscription(t *testing.T) {
	f := newFixture()
	f.seed("p1", "main", 0, 0)
	ctx := context.Background()

	sub, err := f.alerts.CreateSubscription(ctx, CreateSubscriptionRequest{
		UserID: "u1", ProductID: "p1", NotificationType: domain.NotifyInApp,
	})
	if err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	if !sub.Active {
		t.Fatal("new subscription should be active")
	}

	_, err = f.inventory.UpdateStock(ctx, UpdateStockRequest{
		ProductID: "p1", WarehouseID: "main", Quantity: 20,
		Operation: domain.OperationIncrement, Reason: "restock", UserID: "admin",
	})
	if err != nil {
		t.Fatalf("UpdateStock failed: %v", err)
	}

	var restockMessages int
	for _, message := range f.recorder.Messages() {
		if message.AlertType == domain.AlertRestock && message.Recipient == "u1" {
			restockMessages++
		}
	}
	if restockMessages != 1 {
		t.Fatalf("expected 1 restock notification for u1, got %d", restockMessages)
	}

	// One-shot: the subscription is deactivated after delivery.
	active, err := f.subRepo.FindActive(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if active != nil {
		t.Error("restock subscription should be deactivated after notification")
	}

	// A later restock from zero does not re-notify the lapsed subscriber.
	_, _ = f.inventory.UpdateStock(ctx, UpdateStockRequest{
		ProductID: "p1", WarehouseID: "main", Quantity: 0, Operation: domain.OperationSet, UserID: "admin",
	})
	_, _ = f.inventory.UpdateStock(ctx, UpdateStockRequest{
		ProductID: "p1", WarehouseID: "main", Quantity: 10, Operation: domain.OperationIncrement, UserID: "admin",
	})

	for _, message := range f.recorder.Messages() {
		if message.AlertType == domain.AlertRestock && message.Recipient == "u1" {
			restockMessages--
		}
	}
	if restockMessages != 0 {
		t.Error("lapsed subscription must not receive further restock notifications")
	}
}

func TestSubscriberThresholdFiltersLowStock(t *testing.T) {
	f := newFixture()
	f.seed("p1", "main", 10, 0)
	ctx := context.Background()

	threshold := 2
	_, err := f.alerts.CreateSubscription(ctx, CreateSubscriptionRequest{
		UserID: "u1", ProductID: "p1", NotificationType: domain.NotifyEmail, Threshold: &threshold,
	})
	if err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}

	// Availability 4 is low stock but above the subscriber's threshold of 2.
	_, err = f.inventory.ReserveStock(ctx, ReserveStockRequest{
		ProductID: "p1", Quantity: 6, ReferenceID: "cart-1", ReferenceType: domain.ReferenceCart,
	})
	if err != nil {
		t.Fatalf("ReserveStock failed: %v", err)
	}
	if len(f.recorder.Messages()) != 0 {
		t.Errorf("subscriber above personal threshold must not be notified, got %d messages", len(f.recorder.Messages()))
	}
}

func TestHighDemandAlert_SweepOnly(t *testing.T) {
	f := newFixture()
	f.seed("p1", "main", 4, 10)
	ctx := context.Background()

	// Roughly 2.9 units/day sold over the window leaves under two days of
	// cover for the 4 on hand.
	sale := domain.NewStockMovement("p1", "", domain.MovementOut, -20)
	sale.ReferenceID = "ord-1"
	sale.ReferenceType = string(domain.ReferenceOrder)
	if err := f.movements.Append(ctx, sale); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Movement-driven evaluation skips velocity checks.
	if err := f.alerts.EvaluateProduct(ctx, "p1", "", EvaluationTrigger{Kind: EvaluationMovement, MovementType: domain.MovementOut}); err != nil {
		t.Fatalf("EvaluateProduct failed: %v", err)
	}
	if got := openAlerts(t, f, "p1", domain.AlertHighDemand); len(got) != 0 {
		t.Fatalf("high-demand must not fire outside the sweep, got %d", len(got))
	}

	if err := f.alerts.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}

	alerts := openAlerts(t, f, "p1", domain.AlertHighDemand)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 high-demand alert after sweep, got %d", len(alerts))
	}
	if alerts[0].Metadata.SalesVelocity <= 0 || alerts[0].Metadata.DaysOfCover >= 2.0 {
		t.Errorf("unexpected velocity metadata: %+v", alerts[0].Metadata)
	}
}

func TestDeliveryFailureDoesNotRollBackStock(t *testing.T) {
	f := newFixture()
	f.seed("p1", "main", 10, 5)
	ctx := context.Background()

	if _, err := f.alerts.CreateSubscription(ctx, CreateSubscriptionRequest{
		UserID: "u1", ProductID: "p1", NotificationType: domain.NotifyInApp,
	}); err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}

	// Every channel is down, admin included.
	f.recorder.SetFail(true)

	result, err := f.inventory.ReserveStock(ctx, ReserveStockRequest{
		ProductID: "p1", Quantity: 6, ReferenceID: "cart-1", ReferenceType: domain.ReferenceCart,
	})
	if err != nil {
		t.Fatalf("ReserveStock must not fail on delivery errors: %v", err)
	}
	if result.ReservationID == "" {
		t.Fatal("expected a reservation ID")
	}

	availability, err := f.inventory.GetAvailability(ctx, "p1", "")
	if err != nil {
		t.Fatalf("GetAvailability failed: %v", err)
	}
	if availability.Available != 4 {
		t.Errorf("reservation should have held despite delivery failures, available = %d", availability.Available)
	}

	// The alert is still marked notified after the failed dispatch attempt.
	alerts := openAlerts(t, f, "p1", domain.AlertLowStock)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 low-stock alert, got %d", len(alerts))
	}
	if alerts[0].Status != domain.AlertNotified {
		t.Errorf("alert should be notified after the attempt, got %s", alerts[0].Status)
	}

	// Channels recover, but the dedup window absorbs the next trigger
	// instead of re-dispatching.
	f.recorder.SetFail(false)
	if _, err := f.inventory.ReserveStock(ctx, ReserveStockRequest{
		ProductID: "p1", Quantity: 1, ReferenceID: "cart-2", ReferenceType: domain.ReferenceCart,
	}); err != nil {
		t.Fatalf("second ReserveStock failed: %v", err)
	}
	if got := len(f.recorder.Messages()); got != 0 {
		t.Errorf("deduped alert must not re-dispatch, got %d messages", got)
	}
	if got := len(f.recorder.AdminAlerts()); got != 0 {
		t.Errorf("deduped alert must not re-notify admins, got %d", got)
	}
}

func TestAdminWriteOffIsNotDemand(t *testing.T) {
	f := newFixture()
	f.seed("p1", "wh-1", 24, 10)
	ctx := context.Background()

	// A shrinkage write-off logs an `out` movement with no order reference.
	// It must not count toward sales velocity.
	_, err := f.inventory.UpdateStock(ctx, UpdateStockRequest{
		ProductID: "p1", WarehouseID: "wh-1", Quantity: 20,
		Operation: domain.OperationDecrement, Reason: "shrinkage write-off", UserID: "admin",
	})
	if err != nil {
		t.Fatalf("UpdateStock failed: %v", err)
	}

	velocity, err := f.movements.SalesVelocity(ctx, "p1", "", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("SalesVelocity failed: %v", err)
	}
	if velocity != 0 {
		t.Fatalf("write-off counted as sales, velocity = %v", velocity)
	}

	if err := f.alerts.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}
	if got := openAlerts(t, f, "p1", domain.AlertHighDemand); len(got) != 0 {
		t.Fatalf("high-demand raised from a non-sale decrement, got %d alerts", len(got))
	}
}

func TestSlowMovingAlert(t *testing.T) {
	f := newFixture()
	f.seed("p1", "main", 40, 10) // no sales, stock well above the reorder point

	if err := f.alerts.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}

	alerts := openAlerts(t, f, "p1", domain.AlertSlowMoving)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 slow-moving alert, got %d", len(alerts))
	}
	if alerts[0].Type.Severity() != domain.SeverityInfo {
		t.Errorf("slow-moving should be informational, got %s", alerts[0].Type.Severity())
	}
}

func TestCreateSubscription_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.alerts.CreateSubscription(ctx, CreateSubscriptionRequest{
		UserID: "u1", ProductID: "p1", NotificationType: domain.NotifyPush,
	})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	second, err := f.alerts.CreateSubscription(ctx, CreateSubscriptionRequest{
		UserID: "u1", ProductID: "p1", NotificationType: domain.NotifyEmail,
	})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Error("duplicate create should return the existing subscription")
	}
	if second.NotificationType != domain.NotifyPush {
		t.Error("duplicate create must not mutate the existing subscription")
	}
}

func TestCancelSubscription(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.alerts.CreateSubscription(ctx, CreateSubscriptionRequest{
		UserID: "u1", ProductID: "p1", NotificationType: domain.NotifyInApp,
	})
	if err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}

	if err := f.alerts.CancelSubscription(ctx, "u1", "p1"); err != nil {
		t.Fatalf("CancelSubscription failed: %v", err)
	}

	err = f.alerts.CancelSubscription(ctx, "u1", "p1")
	if err == nil {
		t.Fatal("cancelling a cancelled subscription should error")
	}
	if !apperrors.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestUnknownNotificationType(t *testing.T) {
	f := newFixture()

	_, err := f.alerts.CreateSubscription(context.Background(), CreateSubscriptionRequest{
		UserID: "u1", ProductID: "p1", NotificationType: "carrier-pigeon",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGetAlertStats(t *testing.T) {
	f := newFixture()
	f.seed("p1", "main", 0, 0)
	f.seed("p2", "main", 2, 0)
	ctx := context.Background()

	if err := f.alerts.SweepOnce(ctx); err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}

	stats, err := f.alerts.GetAlertStats(ctx)
	if err != nil {
		t.Fatalf("GetAlertStats failed: %v", err)
	}
	if stats.Total == 0 || stats.Open == 0 {
		t.Errorf("expected open alerts in stats, got %+v", stats)
	}
	if stats.ByType[domain.AlertOutOfStock] != 1 {
		t.Errorf("expected 1 out-of-stock alert, got %d", stats.ByType[domain.AlertOutOfStock])
	}
	if stats.ByType[domain.AlertLowStock] != 1 {
		t.Errorf("expected 1 low-stock alert, got %d", stats.ByType[domain.AlertLowStock])
	}
}
