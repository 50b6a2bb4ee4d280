package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// SubscriptionRepository implements domain.SubscriptionRepository for PostgreSQL
type SubscriptionRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSubscriptionRepository creates a new PostgreSQL subscription repository
func NewSubscriptionRepository(db *sqlx.DB, logger *slog.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:     db,
		logger: logger,
	}
}

const subscriptionColumns = `id, user_id, product_id, notification_type, threshold,
	active, created_at, updated_at`

// Create persists a subscription. The partial unique index on
// (user_id, product_id) WHERE active enforces at most one active
// subscription per user and product.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.StockSubscription) error {
	query := fmt.Sprintf(`INSERT INTO stock_subscriptions (%s)
		VALUES (:id, :user_id, :product_id, :notification_type, :threshold,
				:active, :created_at, :updated_at)`, subscriptionColumns)

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && strings.Contains(pqErr.Message, "idx_subscriptions_user_product_active") {
				// Lost a race with a concurrent create; the caller treats
				// the surviving row as the result.
				return nil
			}
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// FindActive returns the active subscription for (userID, productID), or nil
func (r *SubscriptionRepository) FindActive(ctx context.Context, userID, productID string) (*domain.StockSubscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM stock_subscriptions
		WHERE user_id = $1 AND product_id = $2 AND active`, subscriptionColumns)

	var sub domain.StockSubscription
	err := r.db.GetContext(ctx, &sub, query, userID, productID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active subscription: %w", err)
	}
	return &sub, nil
}

// ListActiveForProduct returns all active subscriptions for a product
func (r *SubscriptionRepository) ListActiveForProduct(ctx context.Context, productID string) ([]*domain.StockSubscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM stock_subscriptions
		WHERE product_id = $1 AND active
		ORDER BY created_at ASC`, subscriptionColumns)

	var subs []*domain.StockSubscription
	if err := r.db.SelectContext(ctx, &subs, query, productID); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// Deactivate soft-deactivates a subscription
func (r *SubscriptionRepository) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE stock_subscriptions SET active = FALSE, updated_at = NOW()
		WHERE id = $1 AND active`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deactivation result: %w", err)
	}
	if affected == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}
