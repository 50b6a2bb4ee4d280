// Package memory provides in-memory repository implementations with the same
// atomicity semantics as the PostgreSQL repositories. They back unit tests
// and the container's test wiring; they are not durable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hanbit-commerce/inventory-service/internal/domain"
)

// InventoryRepository is an in-memory domain.InventoryRepository. A single
// mutex serializes all mutations, which satisfies the same contract as the
// Postgres row locks: check-and-write is one atomic unit.
type InventoryRepository struct {
	mu           sync.Mutex
	records      map[recordKey]*domain.InventoryRecord
	reservations map[string]*domain.Reservation
}

type recordKey struct {
	productID   string
	variantID   string
	warehouseID string
}

// NewInventoryRepository creates an empty in-memory inventory repository
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		records:      make(map[recordKey]*domain.InventoryRecord),
		reservations: make(map[string]*domain.Reservation),
	}
}

// Seed inserts or replaces a record directly, for test setup.
func (r *InventoryRepository) Seed(record domain.InventoryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey{record.ProductID, record.VariantID, record.WarehouseID}
	copied := record
	r.records[key] = &copied
}

func (r *InventoryRepository) GetRecord(ctx context.Context, key domain.ItemKey) (*domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getRecordLocked(key)
}

func (r *InventoryRepository) getRecordLocked(key domain.ItemKey) (*domain.InventoryRecord, error) {
	if key.WarehouseID != "" {
		record, ok := r.records[recordKey{key.ProductID, key.VariantID, key.WarehouseID}]
		if !ok {
			return nil, domain.ErrProductNotFound
		}
		copied := *record
		return &copied, nil
	}

	// Aggregate across warehouses
	var aggregate *domain.InventoryRecord
	for k, record := range r.records {
		if k.productID != key.ProductID || k.variantID != key.VariantID {
			continue
		}
		if aggregate == nil {
			copied := *record
			copied.WarehouseID = ""
			aggregate = &copied
			continue
		}
		aggregate.Quantity += record.Quantity
		if record.ReorderPoint > aggregate.ReorderPoint {
			aggregate.ReorderPoint = record.ReorderPoint
		}
		if record.ReorderQuantity > aggregate.ReorderQuantity {
			aggregate.ReorderQuantity = record.ReorderQuantity
		}
		if record.UpdatedAt.After(aggregate.UpdatedAt) {
			aggregate.UpdatedAt = record.UpdatedAt
		}
		if record.LastRestockedAt != nil &&
			(aggregate.LastRestockedAt == nil || record.LastRestockedAt.After(*aggregate.LastRestockedAt)) {
			restocked := *record.LastRestockedAt
			aggregate.LastRestockedAt = &restocked
		}
	}
	if aggregate == nil {
		return nil, domain.ErrProductNotFound
	}
	return aggregate, nil
}

func (r *InventoryRepository) EnsureRecord(ctx context.Context, key domain.ItemKey) (*domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.getRecordLocked(key)
	if err == nil {
		return record, nil
	}
	if err != domain.ErrProductNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	created := &domain.InventoryRecord{
		ProductID:   key.ProductID,
		VariantID:   key.VariantID,
		WarehouseID: key.WarehouseID,
		Quantity:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.records[recordKey{key.ProductID, key.VariantID, key.WarehouseID}] = created

	copied := *created
	return &copied, nil
}

func (r *InventoryRepository) ActiveReservedSum(ctx context.Context, productID, variantID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeReservedSumLocked(productID, variantID), nil
}

func (r *InventoryRepository) activeReservedSumLocked(productID, variantID string) int {
	now := time.Now()
	sum := 0
	for _, reservation := range r.reservations {
		if reservation.ProductID == productID && reservation.VariantID == variantID &&
			reservation.Status == domain.ReservationActive && reservation.ExpiresAt.After(now) {
			sum += reservation.Quantity
		}
	}
	return sum
}

func (r *InventoryRepository) totalQuantityLocked(productID, variantID string) (int, bool) {
	total := 0
	found := false
	for k, record := range r.records {
		if k.productID == productID && k.variantID == variantID {
			total += record.Quantity
			found = true
		}
	}
	return total, found
}

func (r *InventoryRepository) ReserveAtomic(ctx context.Context, reservation *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	total, found := r.totalQuantityLocked(reservation.ProductID, reservation.VariantID)
	if !found {
		return domain.ErrProductNotFound
	}

	reserved := r.activeReservedSumLocked(reservation.ProductID, reservation.VariantID)
	if total-reserved < reservation.Quantity {
		return domain.ErrInsufficientStock
	}

	copied := *reservation
	r.reservations[reservation.ID] = &copied
	return nil
}

func (r *InventoryRepository) FindReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	copied := *reservation
	return &copied, nil
}

func (r *InventoryRepository) ReleaseReservation(ctx context.Context, id string, status domain.ReservationStatus) (bool, error) {
	if !status.IsTerminal() || status == domain.ReservationConfirmed {
		return false, domain.ErrInvalidOperation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, ok := r.reservations[id]
	if !ok || reservation.Status != domain.ReservationActive {
		return false, nil
	}

	reservation.Status = status
	reservation.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *InventoryRepository) OldestActiveReservations(ctx context.Context, productID, variantID string, qty int) ([]*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var active []*domain.Reservation
	for _, reservation := range r.reservations {
		if reservation.ProductID == productID && reservation.VariantID == variantID &&
			reservation.Status == domain.ReservationActive && reservation.ExpiresAt.After(now) {
			copied := *reservation
			active = append(active, &copied)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	selected := make([]*domain.Reservation, 0, len(active))
	covered := 0
	for _, reservation := range active {
		if covered >= qty {
			break
		}
		selected = append(selected, reservation)
		covered += reservation.Quantity
	}
	return selected, nil
}

func (r *InventoryRepository) ConfirmReservations(ctx context.Context, productID, variantID string, qty int, orderID string) ([]*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total, found := r.totalQuantityLocked(productID, variantID)
	if !found {
		return nil, domain.ErrProductNotFound
	}

	var matching []*domain.Reservation
	for _, reservation := range r.reservations {
		if reservation.ProductID == productID && reservation.VariantID == variantID &&
			reservation.ReferenceID == orderID && reservation.Status == domain.ReservationActive {
			matching = append(matching, reservation)
		}
	}
	if len(matching) == 0 {
		return nil, domain.ErrReservationNotFound
	}
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})

	reservedTotal := 0
	for _, reservation := range matching {
		reservedTotal += reservation.Quantity
	}
	if reservedTotal < qty || total < qty {
		return nil, domain.ErrInsufficientStock
	}

	now := time.Now().UTC()
	confirmed := make([]*domain.Reservation, 0, len(matching))
	for _, reservation := range matching {
		reservation.Status = domain.ReservationConfirmed
		reservation.UpdatedAt = now
		copied := *reservation
		confirmed = append(confirmed, &copied)
	}

	r.decrementAcrossWarehousesLocked(productID, variantID, qty)
	return confirmed, nil
}

func (r *InventoryRepository) decrementAcrossWarehousesLocked(productID, variantID string, qty int) {
	type warehouseQty struct {
		key recordKey
		qty int
	}

	var rows []warehouseQty
	for k, record := range r.records {
		if k.productID == productID && k.variantID == variantID && record.Quantity > 0 {
			rows = append(rows, warehouseQty{k, record.Quantity})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].qty != rows[j].qty {
			return rows[i].qty > rows[j].qty
		}
		return rows[i].key.warehouseID < rows[j].key.warehouseID
	})

	remaining := qty
	now := time.Now().UTC()
	for _, row := range rows {
		if remaining <= 0 {
			break
		}
		take := row.qty
		if take > remaining {
			take = remaining
		}
		record := r.records[row.key]
		record.Quantity -= take
		record.UpdatedAt = now
		remaining -= take
	}
}

func (r *InventoryRepository) AdjustQuantity(ctx context.Context, key domain.ItemKey, operation domain.StockOperation, qty int) (*domain.InventoryRecord, error) {
	if qty < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rk := recordKey{key.ProductID, key.VariantID, key.WarehouseID}
	record, ok := r.records[rk]
	if !ok {
		now := time.Now().UTC()
		record = &domain.InventoryRecord{
			ProductID:   key.ProductID,
			VariantID:   key.VariantID,
			WarehouseID: key.WarehouseID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		r.records[rk] = record
	}

	now := time.Now().UTC()
	switch operation {
	case domain.OperationIncrement:
		record.Quantity += qty
		record.LastRestockedAt = &now
	case domain.OperationDecrement:
		record.Quantity -= qty
		if record.Quantity < 0 {
			record.Quantity = 0
		}
	case domain.OperationSet:
		record.Quantity = qty
	default:
		return nil, domain.ErrInvalidOperation
	}
	record.UpdatedAt = now

	copied := *record
	return &copied, nil
}

func (r *InventoryRepository) Transfer(ctx context.Context, productID, variantID string, qty int, fromWarehouse, toWarehouse string) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	if fromWarehouse == toWarehouse {
		return domain.ErrSameWarehouse
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	source, ok := r.records[recordKey{productID, variantID, fromWarehouse}]
	if !ok {
		return domain.ErrProductNotFound
	}
	if source.Quantity < qty {
		return domain.ErrInsufficientStock
	}

	destKey := recordKey{productID, variantID, toWarehouse}
	dest, ok := r.records[destKey]
	if !ok {
		now := time.Now().UTC()
		dest = &domain.InventoryRecord{
			ProductID:   productID,
			VariantID:   variantID,
			WarehouseID: toWarehouse,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		r.records[destKey] = dest
	}

	now := time.Now().UTC()
	source.Quantity -= qty
	source.UpdatedAt = now
	dest.Quantity += qty
	dest.UpdatedAt = now
	return nil
}

func (r *InventoryRepository) ExpireDue(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*domain.Reservation
	for _, reservation := range r.reservations {
		if reservation.Status == domain.ReservationActive && reservation.ExpiresAt.Before(now) {
			due = append(due, reservation)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ExpiresAt.Before(due[j].ExpiresAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	updated := time.Now().UTC()
	expired := make([]*domain.Reservation, 0, len(due))
	for _, reservation := range due {
		reservation.Status = domain.ReservationExpired
		reservation.UpdatedAt = updated
		copied := *reservation
		expired = append(expired, &copied)
	}
	return expired, nil
}

func (r *InventoryRepository) ListLowStock(ctx context.Context) ([]*domain.InventoryRecord, error) {
	records, err := r.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var low []*domain.InventoryRecord
	for _, record := range records {
		reserved := r.activeReservedSumLocked(record.ProductID, record.VariantID)
		if record.Quantity-reserved <= record.ReorderPoint {
			low = append(low, record)
		}
	}
	return low, nil
}

func (r *InventoryRepository) ListRecords(ctx context.Context) ([]*domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[recordKey]bool)
	var records []*domain.InventoryRecord
	for k := range r.records {
		aggKey := recordKey{k.productID, k.variantID, ""}
		if seen[aggKey] {
			continue
		}
		seen[aggKey] = true

		record, err := r.getRecordLocked(domain.ItemKey{ProductID: k.productID, VariantID: k.variantID})
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ProductID < records[j].ProductID
	})
	return records, nil
}
