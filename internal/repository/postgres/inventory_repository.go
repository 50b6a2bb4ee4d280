package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// InventoryRepository implements domain.InventoryRepository for PostgreSQL.
//
// The no-oversell contract is enforced here: ReserveAtomic and
// ConfirmReservations take a row-level lock (SELECT ... FOR UPDATE) on the
// inventory rows for the product before recomputing availability, so the
// check and the write are one atomic unit. Different products lock different
// rows and proceed fully concurrently.
type InventoryRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewInventoryRepository creates a new PostgreSQL inventory repository
func NewInventoryRepository(db *sqlx.DB, logger *slog.Logger) *InventoryRepository {
	return &InventoryRepository{
		db:     db,
		logger: logger,
	}
}

const recordColumns = `product_id, variant_id, warehouse_id, quantity, reorder_point,
	reorder_quantity, last_restocked_at, created_at, updated_at`

const reservationColumns = `id, product_id, variant_id, quantity, reference_id,
	reference_type, status, expires_at, created_at, updated_at`

// GetRecord retrieves the inventory record for the default warehouse view.
// When the key does not name a warehouse, quantities are aggregated across
// all warehouses holding the product.
func (r *InventoryRepository) GetRecord(ctx context.Context, key domain.ItemKey) (*domain.InventoryRecord, error) {
	if key.WarehouseID != "" {
		query := fmt.Sprintf(`SELECT %s FROM inventory_records
			WHERE product_id = $1 AND variant_id = $2 AND warehouse_id = $3`, recordColumns)

		var record domain.InventoryRecord
		err := r.db.GetContext(ctx, &record, query, key.ProductID, key.VariantID, key.WarehouseID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, domain.ErrProductNotFound
			}
			return nil, fmt.Errorf("failed to get inventory record: %w", err)
		}
		return &record, nil
	}

	query := `
		SELECT product_id, variant_id, '' AS warehouse_id,
			   COALESCE(SUM(quantity), 0) AS quantity,
			   MAX(reorder_point) AS reorder_point,
			   MAX(reorder_quantity) AS reorder_quantity,
			   MAX(last_restocked_at) AS last_restocked_at,
			   MIN(created_at) AS created_at,
			   MAX(updated_at) AS updated_at
		FROM inventory_records
		WHERE product_id = $1 AND variant_id = $2
		GROUP BY product_id, variant_id`

	var record domain.InventoryRecord
	err := r.db.GetContext(ctx, &record, query, key.ProductID, key.VariantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get inventory record: %w", err)
	}
	return &record, nil
}

// EnsureRecord retrieves a record, lazily creating a zero-quantity row for
// the default warehouse on first reference.
func (r *InventoryRepository) EnsureRecord(ctx context.Context, key domain.ItemKey) (*domain.InventoryRecord, error) {
	record, err := r.GetRecord(ctx, key)
	if err == nil {
		return record, nil
	}
	if err != domain.ErrProductNotFound {
		return nil, err
	}

	query := `
		INSERT INTO inventory_records (product_id, variant_id, warehouse_id, quantity)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (product_id, variant_id, warehouse_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, key.ProductID, key.VariantID, key.WarehouseID); err != nil {
		return nil, fmt.Errorf("failed to create inventory record: %w", err)
	}

	return r.GetRecord(ctx, key)
}

// ActiveReservedSum returns the quantity held by active, non-expired
// reservations for the product.
func (r *InventoryRepository) ActiveReservedSum(ctx context.Context, productID, variantID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_reservations
		WHERE product_id = $1 AND variant_id = $2
		  AND status = 'active' AND expires_at > NOW()`

	var reserved int
	if err := r.db.GetContext(ctx, &reserved, query, productID, variantID); err != nil {
		return 0, fmt.Errorf("failed to sum active reservations: %w", err)
	}
	return reserved, nil
}

// ReserveAtomic recomputes availability and inserts the reservation inside a
// single transaction holding FOR UPDATE on the product's inventory rows.
func (r *InventoryRepository) ReserveAtomic(ctx context.Context, reservation *domain.Reservation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reservation transaction: %w", err)
	}
	defer tx.Rollback()

	total, err := lockProductTotal(ctx, tx, reservation.ProductID, reservation.VariantID)
	if err != nil {
		return err
	}

	reserved, err := activeReservedSumTx(ctx, tx, reservation.ProductID, reservation.VariantID)
	if err != nil {
		return err
	}

	if total-reserved < reservation.Quantity {
		return domain.ErrInsufficientStock
	}

	insert := fmt.Sprintf(`INSERT INTO stock_reservations (%s)
		VALUES (:id, :product_id, :variant_id, :quantity, :reference_id,
				:reference_type, :status, :expires_at, :created_at, :updated_at)`, reservationColumns)

	if _, err := tx.NamedExecContext(ctx, insert, reservation); err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// FindReservation retrieves a reservation by ID
func (r *InventoryRepository) FindReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	query := fmt.Sprintf(`SELECT %s FROM stock_reservations WHERE id = $1`, reservationColumns)

	var reservation domain.Reservation
	if err := r.db.GetContext(ctx, &reservation, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

// ReleaseReservation transitions an active reservation to the given terminal
// status. The status guard in the WHERE clause makes the release idempotent:
// a reservation that is already terminal matches no rows and reports
// released=false without an error.
func (r *InventoryRepository) ReleaseReservation(ctx context.Context, id string, status domain.ReservationStatus) (bool, error) {
	if !status.IsTerminal() || status == domain.ReservationConfirmed {
		return false, domain.ErrInvalidOperation
	}

	query := `
		UPDATE stock_reservations
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return false, fmt.Errorf("failed to release reservation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read release result: %w", err)
	}
	return affected > 0, nil
}

// OldestActiveReservations returns active reservations oldest first until
// their quantities cover qty.
func (r *InventoryRepository) OldestActiveReservations(ctx context.Context, productID, variantID string, qty int) ([]*domain.Reservation, error) {
	query := fmt.Sprintf(`SELECT %s FROM stock_reservations
		WHERE product_id = $1 AND variant_id = $2
		  AND status = 'active' AND expires_at > NOW()
		ORDER BY created_at ASC`, reservationColumns)

	var reservations []*domain.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, productID, variantID); err != nil {
		return nil, fmt.Errorf("failed to list active reservations: %w", err)
	}

	selected := make([]*domain.Reservation, 0, len(reservations))
	covered := 0
	for _, reservation := range reservations {
		if covered >= qty {
			break
		}
		selected = append(selected, reservation)
		covered += reservation.Quantity
	}
	return selected, nil
}

// ConfirmReservations marks the order's active reservations confirmed and
// decrements total stock by qty, all inside one transaction with the product
// rows locked.
func (r *InventoryRepository) ConfirmReservations(ctx context.Context, productID, variantID string, qty int, orderID string) ([]*domain.Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin confirmation transaction: %w", err)
	}
	defer tx.Rollback()

	total, err := lockProductTotal(ctx, tx, productID, variantID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM stock_reservations
		WHERE product_id = $1 AND variant_id = $2 AND reference_id = $3
		  AND status = 'active'
		ORDER BY created_at ASC
		FOR UPDATE`, reservationColumns)

	var matching []*domain.Reservation
	if err := tx.SelectContext(ctx, &matching, query, productID, variantID, orderID); err != nil {
		return nil, fmt.Errorf("failed to find reservations for order: %w", err)
	}
	if len(matching) == 0 {
		return nil, domain.ErrReservationNotFound
	}

	reservedTotal := 0
	for _, reservation := range matching {
		reservedTotal += reservation.Quantity
	}
	if reservedTotal < qty || total < qty {
		return nil, domain.ErrInsufficientStock
	}

	now := time.Now().UTC()
	for _, reservation := range matching {
		update := `UPDATE stock_reservations SET status = 'confirmed', updated_at = $2 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, reservation.ID, now); err != nil {
			return nil, fmt.Errorf("failed to confirm reservation %s: %w", reservation.ID, err)
		}
		reservation.Status = domain.ReservationConfirmed
		reservation.UpdatedAt = now
	}

	if err := decrementAcrossWarehouses(ctx, tx, productID, variantID, qty); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return matching, nil
}

// AdjustQuantity applies a direct administrative adjustment. Decrement
// floors at zero.
func (r *InventoryRepository) AdjustQuantity(ctx context.Context, key domain.ItemKey, operation domain.StockOperation, qty int) (*domain.InventoryRecord, error) {
	if qty < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin adjustment transaction: %w", err)
	}
	defer tx.Rollback()

	ensure := `
		INSERT INTO inventory_records (product_id, variant_id, warehouse_id, quantity)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (product_id, variant_id, warehouse_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, ensure, key.ProductID, key.VariantID, key.WarehouseID); err != nil {
		return nil, fmt.Errorf("failed to ensure inventory record: %w", err)
	}

	var query string
	switch operation {
	case domain.OperationIncrement:
		query = `
			UPDATE inventory_records
			SET quantity = quantity + $4, last_restocked_at = NOW(), updated_at = NOW()
			WHERE product_id = $1 AND variant_id = $2 AND warehouse_id = $3`
	case domain.OperationDecrement:
		query = `
			UPDATE inventory_records
			SET quantity = GREATEST(quantity - $4, 0), updated_at = NOW()
			WHERE product_id = $1 AND variant_id = $2 AND warehouse_id = $3`
	case domain.OperationSet:
		query = `
			UPDATE inventory_records
			SET quantity = $4, updated_at = NOW()
			WHERE product_id = $1 AND variant_id = $2 AND warehouse_id = $3`
	default:
		return nil, domain.ErrInvalidOperation
	}

	if _, err := tx.ExecContext(ctx, query, key.ProductID, key.VariantID, key.WarehouseID, qty); err != nil {
		return nil, fmt.Errorf("failed to adjust quantity: %w", err)
	}

	selectQuery := fmt.Sprintf(`SELECT %s FROM inventory_records
		WHERE product_id = $1 AND variant_id = $2 AND warehouse_id = $3`, recordColumns)

	var record domain.InventoryRecord
	if err := tx.GetContext(ctx, &record, selectQuery, key.ProductID, key.VariantID, key.WarehouseID); err != nil {
		return nil, fmt.Errorf("failed to read adjusted record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}
	return &record, nil
}

// Transfer debits the source warehouse and credits the destination in one
// transaction. Rows are locked in warehouse order to avoid deadlocks between
// opposing transfers.
func (r *InventoryRepository) Transfer(ctx context.Context, productID, variantID string, qty int, fromWarehouse, toWarehouse string) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	if fromWarehouse == toWarehouse {
		return domain.ErrSameWarehouse
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transfer transaction: %w", err)
	}
	defer tx.Rollback()

	ensure := `
		INSERT INTO inventory_records (product_id, variant_id, warehouse_id, quantity)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (product_id, variant_id, warehouse_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, ensure, productID, variantID, toWarehouse); err != nil {
		return fmt.Errorf("failed to ensure destination record: %w", err)
	}

	lock := `
		SELECT warehouse_id, quantity FROM inventory_records
		WHERE product_id = $1 AND variant_id = $2 AND warehouse_id IN ($3, $4)
		ORDER BY warehouse_id
		FOR UPDATE`

	rows := []struct {
		WarehouseID string `db:"warehouse_id"`
		Quantity    int    `db:"quantity"`
	}{}
	if err := tx.SelectContext(ctx, &rows, lock, productID, variantID, fromWarehouse, toWarehouse); err != nil {
		return fmt.Errorf("failed to lock warehouse records: %w", err)
	}

	sourceQty := -1
	for _, row := range rows {
		if row.WarehouseID == fromWarehouse {
			sourceQty = row.Quantity
		}
	}
	if sourceQty < 0 {
		return domain.ErrProductNotFound
	}
	if sourceQty < qty {
		return domain.ErrInsufficientStock
	}

	debit := `
		UPDATE inventory_records SET quantity = quantity - $4, updated_at = NOW()
		WHERE product_id = $1 AND variant_id = $2 AND warehouse_id = $3`
	if _, err := tx.ExecContext(ctx, debit, productID, variantID, fromWarehouse, qty); err != nil {
		return fmt.Errorf("failed to debit source warehouse: %w", err)
	}

	credit := `
		UPDATE inventory_records SET quantity = quantity + $4, updated_at = NOW()
		WHERE product_id = $1 AND variant_id = $2 AND warehouse_id = $3`
	if _, err := tx.ExecContext(ctx, credit, productID, variantID, toWarehouse, qty); err != nil {
		return fmt.Errorf("failed to credit destination warehouse: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// ExpireDue transitions active reservations past their expiry to expired and
// returns them.
func (r *InventoryRepository) ExpireDue(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	query := fmt.Sprintf(`
		UPDATE stock_reservations
		SET status = 'expired', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM stock_reservations
			WHERE status = 'active' AND expires_at < $1
			ORDER BY expires_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, reservationColumns)

	var expired []*domain.Reservation
	if err := r.db.SelectContext(ctx, &expired, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to expire reservations: %w", err)
	}
	return expired, nil
}

// ListLowStock returns records whose availability is at or below their
// reorder point.
func (r *InventoryRepository) ListLowStock(ctx context.Context) ([]*domain.InventoryRecord, error) {
	query := `
		SELECT r.product_id, r.variant_id, '' AS warehouse_id,
			   SUM(r.quantity) AS quantity,
			   MAX(r.reorder_point) AS reorder_point,
			   MAX(r.reorder_quantity) AS reorder_quantity,
			   MAX(r.last_restocked_at) AS last_restocked_at,
			   MIN(r.created_at) AS created_at,
			   MAX(r.updated_at) AS updated_at
		FROM inventory_records r
		GROUP BY r.product_id, r.variant_id
		HAVING SUM(r.quantity) - COALESCE((
			SELECT SUM(s.quantity) FROM stock_reservations s
			WHERE s.product_id = r.product_id AND s.variant_id = r.variant_id
			  AND s.status = 'active' AND s.expires_at > NOW()
		), 0) <= MAX(r.reorder_point)
		ORDER BY r.product_id`

	var records []*domain.InventoryRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to list low stock records: %w", err)
	}
	return records, nil
}

// ListRecords returns all inventory records aggregated per product/variant.
func (r *InventoryRepository) ListRecords(ctx context.Context) ([]*domain.InventoryRecord, error) {
	query := `
		SELECT product_id, variant_id, '' AS warehouse_id,
			   SUM(quantity) AS quantity,
			   MAX(reorder_point) AS reorder_point,
			   MAX(reorder_quantity) AS reorder_quantity,
			   MAX(last_restocked_at) AS last_restocked_at,
			   MIN(created_at) AS created_at,
			   MAX(updated_at) AS updated_at
		FROM inventory_records
		GROUP BY product_id, variant_id
		ORDER BY product_id`

	var records []*domain.InventoryRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to list inventory records: %w", err)
	}
	return records, nil
}

// Transaction-scoped helpers

// lockProductTotal locks all warehouse rows for the product and returns the
// summed quantity. ErrProductNotFound when no rows exist.
func lockProductTotal(ctx context.Context, tx *sqlx.Tx, productID, variantID string) (int, error) {
	query := `
		SELECT quantity FROM inventory_records
		WHERE product_id = $1 AND variant_id = $2
		ORDER BY warehouse_id
		FOR UPDATE`

	var quantities []int
	if err := tx.SelectContext(ctx, &quantities, query, productID, variantID); err != nil {
		return 0, fmt.Errorf("failed to lock inventory rows: %w", err)
	}
	if len(quantities) == 0 {
		return 0, domain.ErrProductNotFound
	}

	total := 0
	for _, q := range quantities {
		total += q
	}
	return total, nil
}

func activeReservedSumTx(ctx context.Context, tx *sqlx.Tx, productID, variantID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_reservations
		WHERE product_id = $1 AND variant_id = $2
		  AND status = 'active' AND expires_at > NOW()`

	var reserved int
	if err := tx.GetContext(ctx, &reserved, query, productID, variantID); err != nil {
		return 0, fmt.Errorf("failed to sum active reservations: %w", err)
	}
	return reserved, nil
}

// decrementAcrossWarehouses consumes qty from the product's warehouse rows,
// largest quantity first. Callers must hold the row locks.
func decrementAcrossWarehouses(ctx context.Context, tx *sqlx.Tx, productID, variantID string, qty int) error {
	query := `
		SELECT warehouse_id, quantity FROM inventory_records
		WHERE product_id = $1 AND variant_id = $2 AND quantity > 0
		ORDER BY quantity DESC, warehouse_id`

	rows := []struct {
		WarehouseID string `db:"warehouse_id"`
		Quantity    int    `db:"quantity"`
	}{}
	if err := tx.SelectContext(ctx, &rows, query, productID, variantID); err != nil {
		return fmt.Errorf("failed to read warehouse quantities: %w", err)
	}

	remaining := qty
	for _, row := range rows {
		if remaining <= 0 {
			break
		}
		take := row.Quantity
		if take > remaining {
			take = remaining
		}

		update := `
			UPDATE inventory_records SET quantity = quantity - $4, updated_at = NOW()
			WHERE product_id = $1 AND variant_id = $2 AND warehouse_id = $3`
		if _, err := tx.ExecContext(ctx, update, productID, variantID, row.WarehouseID, take); err != nil {
			return fmt.Errorf("failed to decrement warehouse stock: %w", err)
		}
		remaining -= take
	}

	if remaining > 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}
