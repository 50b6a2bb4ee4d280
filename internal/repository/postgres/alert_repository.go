package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// AlertRepository implements domain.AlertRepository for PostgreSQL
type AlertRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewAlertRepository creates a new PostgreSQL alert repository
func NewAlertRepository(db *sqlx.DB, logger *slog.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// alertRow is the scan target; metadata arrives as raw JSONB.
type alertRow struct {
	ID           string     `db:"id"`
	ProductID    string     `db:"product_id"`
	VariantID    string     `db:"variant_id"`
	Type         string     `db:"type"`
	Threshold    int        `db:"threshold"`
	CurrentStock int        `db:"current_stock"`
	Status       string     `db:"status"`
	Metadata     []byte     `db:"metadata"`
	NotifiedAt   *time.Time `db:"notified_at"`
	ResolvedAt   *time.Time `db:"resolved_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

func (row *alertRow) toDomain() (*domain.StockAlert, error) {
	alert := &domain.StockAlert{
		ID:           row.ID,
		ProductID:    row.ProductID,
		VariantID:    row.VariantID,
		Type:         domain.AlertType(row.Type),
		Threshold:    row.Threshold,
		CurrentStock: row.CurrentStock,
		Status:       domain.AlertStatus(row.Status),
		NotifiedAt:   row.NotifiedAt,
		ResolvedAt:   row.ResolvedAt,
		CreatedAt:    row.CreatedAt,
	}

	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &alert.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert metadata: %w", err)
		}
	}
	return alert, nil
}

const alertColumns = `id, product_id, variant_id, type, threshold, current_stock,
	status, metadata, notified_at, resolved_at, created_at`

// Create persists a stock alert
func (r *AlertRepository) Create(ctx context.Context, alert *domain.StockAlert) error {
	metadataJSON, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal alert metadata: %w", err)
	}

	query := `
		INSERT INTO stock_alerts (
			id, product_id, variant_id, type, threshold, current_stock,
			status, metadata, notified_at, resolved_at, created_at
		) VALUES (
			:id, :product_id, :variant_id, :type, :threshold, :current_stock,
			:status, :metadata, :notified_at, :resolved_at, :created_at
		)`

	params := map[string]interface{}{
		"id":            alert.ID,
		"product_id":    alert.ProductID,
		"variant_id":    alert.VariantID,
		"type":          string(alert.Type),
		"threshold":     alert.Threshold,
		"current_stock": alert.CurrentStock,
		"status":        string(alert.Status),
		"metadata":      metadataJSON,
		"notified_at":   alert.NotifiedAt,
		"resolved_at":   alert.ResolvedAt,
		"created_at":    alert.CreatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, query, params); err != nil {
		return fmt.Errorf("failed to create stock alert: %w", err)
	}
	return nil
}

// FindOpenSince returns an open alert of the given type created at or after
// since, or nil when none exists
func (r *AlertRepository) FindOpenSince(ctx context.Context, productID string, alertType domain.AlertType, since time.Time) (*domain.StockAlert, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM stock_alerts
		WHERE product_id = $1 AND type = $2
		  AND status IN ('pending', 'notified')
		  AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1`, alertColumns)

	var row alertRow
	err := r.db.GetContext(ctx, &row, query, productID, alertType, since)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}
	return row.toDomain()
}

// MarkNotified transitions a pending alert to notified
func (r *AlertRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE stock_alerts SET status = 'notified', notified_at = $2
		WHERE id = $1 AND status = 'pending'`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark alert notified: %w", err)
	}
	return nil
}

// Resolve transitions an open alert to resolved
func (r *AlertRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE stock_alerts SET status = 'resolved', resolved_at = $2
		WHERE id = $1 AND status IN ('pending', 'notified')`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	return nil
}

// OpenAlerts returns open alerts for a product, optionally filtered by type
func (r *AlertRepository) OpenAlerts(ctx context.Context, productID string, types ...domain.AlertType) ([]*domain.StockAlert, error) {
	conditions := []string{"product_id = $1", "status IN ('pending', 'notified')"}
	args := []interface{}{productID}

	if len(types) > 0 {
		placeholders := make([]string, 0, len(types))
		for i, alertType := range types {
			placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
			args = append(args, alertType)
		}
		conditions = append(conditions, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ", ")))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM stock_alerts
		WHERE %s
		ORDER BY created_at DESC`, alertColumns, strings.Join(conditions, " AND "))

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list open alerts: %w", err)
	}

	alerts := make([]*domain.StockAlert, 0, len(rows))
	for i := range rows {
		alert, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// Stats aggregates alert counts by type and status
func (r *AlertRepository) Stats(ctx context.Context) (*domain.AlertStats, error) {
	query := `
		SELECT type, status, COUNT(*) AS count
		FROM stock_alerts
		GROUP BY type, status`

	rows := []struct {
		Type   string `db:"type"`
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to aggregate alert stats: %w", err)
	}

	stats := &domain.AlertStats{
		ByType:   make(map[domain.AlertType]int),
		ByStatus: make(map[domain.AlertStatus]int),
	}
	for _, row := range rows {
		alertType := domain.AlertType(row.Type)
		status := domain.AlertStatus(row.Status)

		stats.Total += row.Count
		stats.ByType[alertType] += row.Count
		stats.ByStatus[status] += row.Count
		if status.IsOpen() {
			stats.Open += row.Count
		}
	}
	return stats, nil
}
