// Package notification defines the outbound notification boundary. Email,
// SMS, push, in-app, and admin delivery are external collaborators: the
// alert engine invokes them best-effort and never rolls back a stock
// mutation because a send failed.
package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// Message is one outbound stock notification
type Message struct {
	Recipient   string                  `json:"recipient"`
	ProductID   string                  `json:"product_id"`
	ProductName string                  `json:"product_name"`
	AlertType   domain.AlertType        `json:"alert_type"`
	Channel     domain.NotificationType `json:"channel"`
	Body        string                  `json:"body"`
}

// Sender delivers a notification over a single channel
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// AdminNotifier delivers alerts to the administrator channel, separate from
// subscriber fan-out
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, alert *domain.StockAlert) error
}

// Senders bundles one sender per subscriber channel
type Senders struct {
	Email Sender
	SMS   Sender
	Push  Sender
	InApp Sender
}

// ForChannel returns the sender for a notification type, or nil when the
// channel has no sender configured.
func (s Senders) ForChannel(channel domain.NotificationType) Sender {
	switch channel {
	case domain.NotifyEmail:
		return s.Email
	case domain.NotifySMS:
		return s.SMS
	case domain.NotifyPush:
		return s.Push
	case domain.NotifyInApp:
		return s.InApp
	default:
		return nil
	}
}

// LogSender logs deliveries instead of sending them. It is the default
// wiring until real delivery integrations are plugged in, and keeps the
// pipeline observable in development.
type LogSender struct {
	channel domain.NotificationType
	logger  *slog.Logger
}

// NewLogSender creates a logging sender for a channel
func NewLogSender(channel domain.NotificationType, logger *slog.Logger) *LogSender {
	return &LogSender{
		channel: channel,
		logger:  logger,
	}
}

// Send logs the notification
func (s *LogSender) Send(ctx context.Context, message Message) error {
	s.logger.Info("Notification dispatched",
		"channel", s.channel,
		"recipient", message.Recipient,
		"product_id", message.ProductID,
		"alert_type", message.AlertType)
	return nil
}

// LogAdminNotifier logs admin alerts instead of delivering them
type LogAdminNotifier struct {
	logger *slog.Logger
}

// NewLogAdminNotifier creates a logging admin notifier
func NewLogAdminNotifier(logger *slog.Logger) *LogAdminNotifier {
	return &LogAdminNotifier{logger: logger}
}

// NotifyAdmins logs the alert
func (n *LogAdminNotifier) NotifyAdmins(ctx context.Context, alert *domain.StockAlert) error {
	n.logger.Info("Admin alert dispatched",
		"product_id", alert.ProductID,
		"alert_type", alert.Type,
		"severity", alert.Type.Severity(),
		"current_stock", alert.CurrentStock)
	return nil
}

// Recorder captures sent messages for tests
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	alerts   []*domain.StockAlert
	fail     bool
}

// NewRecorder creates a recording sender/notifier
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetFail makes subsequent sends return an error
func (r *Recorder) SetFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

// Send records the message
func (r *Recorder) Send(ctx context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail {
		return context.DeadlineExceeded
	}
	r.messages = append(r.messages, message)
	return nil
}

// NotifyAdmins records the alert
func (r *Recorder) NotifyAdmins(ctx context.Context, alert *domain.StockAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail {
		return context.DeadlineExceeded
	}
	copied := *alert
	r.alerts = append(r.alerts, &copied)
	return nil
}

// Messages returns the recorded messages
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// AdminAlerts returns the recorded admin alerts
func (r *Recorder) AdminAlerts() []*domain.StockAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.StockAlert(nil), r.alerts...)
}
