package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// MovementRepository implements domain.MovementRepository for PostgreSQL.
// Movements are append-only; there is no update or delete path.
type MovementRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewMovementRepository creates a new PostgreSQL movement repository
func NewMovementRepository(db *sqlx.DB, logger *slog.Logger) *MovementRepository {
	return &MovementRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a movement log entry
func (r *MovementRepository) Append(ctx context.Context, movement *domain.StockMovement) error {
	query := `
		INSERT INTO stock_movements (
			id, product_id, variant_id, type, quantity, reference_id,
			reference_type, from_location, to_location, reason, user_id, created_at
		) VALUES (
			:id, :product_id, :variant_id, :type, :quantity, :reference_id,
			:reference_type, :from_location, :to_location, :reason, :user_id, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, movement); err != nil {
		return fmt.Errorf("failed to append stock movement: %w", err)
	}
	return nil
}

// List returns movement log entries matching the filter, newest first.
func (r *MovementRepository) List(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	addCondition := func(condition string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(condition, argIndex))
		args = append(args, value)
		argIndex++
	}

	if filter.ProductID != "" {
		addCondition("product_id = $%d", filter.ProductID)
	}
	if filter.VariantID != "" {
		addCondition("variant_id = $%d", filter.VariantID)
	}
	if !filter.Since.IsZero() {
		addCondition("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		addCondition("created_at < $%d", filter.Until)
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, 0, len(filter.Types))
		for _, movementType := range filter.Types {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argIndex))
			args = append(args, movementType)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ", ")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, product_id, variant_id, type, quantity, reference_id,
			   reference_type, from_location, to_location, reason, user_id, created_at
		FROM stock_movements
		WHERE %s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d`, strings.Join(conditions, " AND "), limit, filter.Offset)

	var movements []*domain.StockMovement
	if err := r.db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return movements, nil
}

// SalesVelocity returns average units sold per day over the window, derived
// from `out` movements tied to completed orders. Administrative decrements
// (shrinkage, damage write-offs) carry no order reference and are excluded.
func (r *MovementRepository) SalesVelocity(ctx context.Context, productID, variantID string, window time.Duration) (float64, error) {
	query := `
		SELECT COALESCE(SUM(ABS(quantity)), 0)
		FROM stock_movements
		WHERE product_id = $1 AND variant_id = $2
		  AND type = 'out' AND reference_type = 'order' AND created_at >= $3`

	since := time.Now().UTC().Add(-window)

	var sold int
	if err := r.db.GetContext(ctx, &sold, query, productID, variantID, since); err != nil {
		return 0, fmt.Errorf("failed to compute sales velocity: %w", err)
	}

	days := window.Hours() / 24
	if days <= 0 {
		return 0, nil
	}
	return float64(sold) / days, nil
}
