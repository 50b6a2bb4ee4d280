package domain

import "testing"

func TestAlertTypeSeverity(t *testing.T) {
	tests := []struct {
		alertType AlertType
		want      AlertSeverity
	}{
		{AlertOutOfStock, SeverityCritical},
		{AlertLowStock, SeverityWarning},
		{AlertHighDemand, SeverityWarning},
		{AlertRestock, SeverityInfo},
		{AlertSlowMoving, SeverityInfo},
	}
	for _, tt := range tests {
		if got := tt.alertType.Severity(); got != tt.want {
			t.Errorf("%s severity = %s, want %s", tt.alertType, got, tt.want)
		}
	}
}

func TestAlertStatusIsOpen(t *testing.T) {
	if !AlertPending.IsOpen() || !AlertNotified.IsOpen() {
		t.Error("pending and notified alerts are open")
	}
	if AlertResolved.IsOpen() || AlertIgnored.IsOpen() {
		t.Error("resolved and ignored alerts are closed")
	}
}

func TestNewStockAlert(t *testing.T) {
	alert := NewStockAlert("p1", "v1", AlertLowStock, 5, 3, AlertMetadata{TriggerReason: "test"})
	if alert.ID == "" {
		t.Error("alert should get a generated ID")
	}
	if alert.Status != AlertPending {
		t.Errorf("new alert should be pending, got %s", alert.Status)
	}
	if alert.Threshold != 5 || alert.CurrentStock != 3 {
		t.Errorf("unexpected payload: threshold=%d stock=%d", alert.Threshold, alert.CurrentStock)
	}
}

func TestNewStockSubscription(t *testing.T) {
	threshold := 3
	sub := NewStockSubscription("u1", "p1", NotifyEmail, &threshold)
	if sub.ID == "" {
		t.Error("subscription should get a generated ID")
	}
	if !sub.Active {
		t.Error("new subscription should be active")
	}
	if sub.Threshold == nil || *sub.Threshold != 3 {
		t.Error("threshold not carried")
	}
}
