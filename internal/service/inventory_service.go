package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hanbit-commerce/inventory-service/internal/cache"
	"github.com/hanbit-commerce/inventory-service/internal/config"
	"github.com/hanbit-commerce/inventory-service/internal/domain"
	apperrors "github.com/hanbit-commerce/inventory-service/internal/platform/errors"
)

// InventoryService defines the interface for inventory operations.
// This interface abstracts the business logic from the transport layer.
type InventoryService interface {
	// GetAvailability returns the derived availability for a product,
	// served from the short-TTL cache when possible.
	GetAvailability(ctx context.Context, productID, variantID string) (*domain.Availability, error)

	// CheckStock verifies whether the requested quantity is available.
	CheckStock(ctx context.Context, productID, variantID string, quantity int) (*StockCheckResult, error)

	// CheckBulkStock checks several items in one call (cart validation).
	CheckBulkStock(ctx context.Context, items []StockCheckItem) (*BulkStockCheckResult, error)

	// ReserveStock places a time-bounded hold against available stock.
	ReserveStock(ctx context.Context, req ReserveStockRequest) (*ReserveStockResult, error)

	// ReleaseStock cancels a reservation, returning held stock to the
	// available pool. Releasing an already-terminal reservation is a no-op.
	ReleaseStock(ctx context.Context, req ReleaseStockRequest) (bool, error)

	// ConfirmReservation converts an order's active reservations into a
	// completed sale, decrementing total stock.
	ConfirmReservation(ctx context.Context, req ConfirmReservationRequest) (bool, error)

	// UpdateStock applies a direct administrative adjustment.
	UpdateStock(ctx context.Context, req UpdateStockRequest) (*domain.InventoryRecord, error)

	// BulkUpdateStock applies several adjustments, continuing past
	// per-item failures.
	BulkUpdateStock(ctx context.Context, req BulkUpdateStockRequest) (*BulkUpdateResult, error)

	// TransferStock moves stock between warehouses atomically.
	TransferStock(ctx context.Context, req TransferStockRequest) error

	// GetLowStockProducts returns products at or below their reorder point.
	GetLowStockProducts(ctx context.Context) ([]domain.LowStockProduct, error)

	// GetStockMovements queries the append-only movement log.
	GetStockMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error)

	// ExpireReservations reclaims stock held by lapsed reservations.
	// Called by the background sweeper; exposed for deterministic tests.
	ExpireReservations(ctx context.Context) (*ExpireResult, error)
}

// Service DTOs

type StockCheckItem struct {
	ProductID string
	VariantID string
	Quantity  int
}

type StockCheckResult struct {
	ProductID string
	VariantID string
	InStock   bool
	Requested int
	Available int
	Reason    string
}

type BulkStockCheckResult struct {
	AllInStock bool
	Results    []StockCheckResult
}

type ReserveStockRequest struct {
	ProductID     string
	VariantID     string
	Quantity      int
	ReferenceID   string
	ReferenceType domain.ReferenceType

	// TTL overrides the configured lifetime when positive.
	TTL time.Duration
}

type ReserveStockResult struct {
	ReservationID string
	ExpiresAt     time.Time
}

// ReleaseStockRequest releases either a specific reservation by ID or, when
// ReservationID is empty, the oldest active reservations covering Quantity.
type ReleaseStockRequest struct {
	ReservationID string
	ProductID     string
	VariantID     string
	Quantity      int
	Reason        string
}

type ConfirmReservationRequest struct {
	ProductID string
	VariantID string
	Quantity  int
	OrderID   string
	UserID    string
}

type UpdateStockRequest struct {
	ProductID   string
	VariantID   string
	WarehouseID string
	Quantity    int
	Operation   domain.StockOperation
	Reason      string
	UserID      string
}

type BulkUpdateStockRequest struct {
	Updates []domain.StockUpdate
	Reason  string
	UserID  string
}

type BulkUpdateFailure struct {
	ProductID string
	VariantID string
	Reason    string
}

type BulkUpdateResult struct {
	Updated  int
	Failures []BulkUpdateFailure
}

type TransferStockRequest struct {
	ProductID     string
	VariantID     string
	Quantity      int
	FromWarehouse string
	ToWarehouse   string
	Reason        string
	UserID        string
}

type ExpireResult struct {
	Expired  int
	Products []string
}

// inventoryService is the concrete implementation of InventoryService.
type inventoryService struct {
	repo        domain.InventoryRepository
	movements   domain.MovementRepository
	cache       cache.AvailabilityCache
	broadcaster StockUpdateBroadcaster
	publisher   MovementEventPublisher
	alerts      AlertEvaluator
	cfg         config.InventoryConfig
	logger      *slog.Logger
	instanceID  string
}

// NewInventoryService creates an inventory service with its dependencies.
// A nil broadcaster or publisher is replaced with a no-op; a nil alert
// evaluator disables alert evaluation. instanceID identifies this process
// in published movement events so peers can skip self-originated ones; an
// empty value gets a generated ID.
func NewInventoryService(
	repo domain.InventoryRepository,
	movements domain.MovementRepository,
	availability cache.AvailabilityCache,
	broadcaster StockUpdateBroadcaster,
	publisher MovementEventPublisher,
	alerts AlertEvaluator,
	cfg config.InventoryConfig,
	instanceID string,
	logger *slog.Logger,
) InventoryService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	return &inventoryService{
		repo:        repo,
		movements:   movements,
		cache:       availability,
		broadcaster: broadcaster,
		publisher:   publisher,
		alerts:      alerts,
		cfg:         cfg,
		logger:      logger,
		instanceID:  instanceID,
	}
}

// GetAvailability returns total, reserved and available stock for a product.
func (s *inventoryService) GetAvailability(ctx context.Context, productID, variantID string) (*domain.Availability, error) {
	if productID == "" {
		return nil, apperrors.NewValidation("product ID is required")
	}

	if cached, err := s.cache.Get(ctx, productID, variantID); err == nil && cached != nil {
		return cached, nil
	}

	availability, err := s.computeAvailability(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, availability); err != nil {
		s.logger.Warn("Failed to cache availability", "productID", productID, "error", err)
	}

	return availability, nil
}

// CheckStock verifies whether the requested quantity is currently available.
func (s *inventoryService) CheckStock(ctx context.Context, productID, variantID string, quantity int) (*StockCheckResult, error) {
	if quantity <= 0 {
		return nil, apperrors.NewValidation("quantity must be positive")
	}

	availability, err := s.GetAvailability(ctx, productID, variantID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return &StockCheckResult{
				ProductID: productID,
				VariantID: variantID,
				Requested: quantity,
				Reason:    "product not found",
			}, nil
		}
		return nil, err
	}

	result := &StockCheckResult{
		ProductID: productID,
		VariantID: variantID,
		InStock:   availability.Available >= quantity,
		Requested: quantity,
		Available: availability.Available,
	}
	if !result.InStock {
		result.Reason = fmt.Sprintf("insufficient stock (available: %d, requested: %d)", availability.Available, quantity)
	}
	return result, nil
}

// CheckBulkStock checks multiple items; per-item failures do not abort the batch.
func (s *inventoryService) CheckBulkStock(ctx context.Context, items []StockCheckItem) (*BulkStockCheckResult, error) {
	if len(items) == 0 {
		return nil, apperrors.NewValidation("at least one item is required")
	}

	out := &BulkStockCheckResult{
		AllInStock: true,
		Results:    make([]StockCheckResult, 0, len(items)),
	}
	for _, item := range items {
		result, err := s.CheckStock(ctx, item.ProductID, item.VariantID, item.Quantity)
		if err != nil {
			out.Results = append(out.Results, StockCheckResult{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Requested: item.Quantity,
				Reason:    err.Error(),
			})
			out.AllInStock = false
			continue
		}
		out.Results = append(out.Results, *result)
		if !result.InStock {
			out.AllInStock = false
		}
	}
	return out, nil
}

// ReserveStock holds stock for a cart or order. The availability check and
// the ledger insert happen atomically in the repository, so two concurrent
// reservations cannot both claim the last unit.
func (s *inventoryService) ReserveStock(ctx context.Context, req ReserveStockRequest) (*ReserveStockResult, error) {
	ttl := req.TTL
	if ttl <= 0 {
		if req.ReferenceType == domain.ReferenceOrder {
			ttl = s.cfg.CheckoutReservationTTL
		} else {
			ttl = s.cfg.DefaultReservationTTL
		}
	}

	reservation, err := domain.NewReservation(req.ProductID, req.VariantID, req.Quantity, req.ReferenceID, req.ReferenceType, ttl)
	if err != nil {
		return nil, &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: "invalid reservation request", Err: err}
	}

	if err := s.repo.ReserveAtomic(ctx, reservation); err != nil {
		return nil, s.mapReservationError(err, req.ProductID, req.Quantity)
	}

	s.logger.Info("Stock reserved",
		"reservationID", reservation.ID,
		"productID", req.ProductID,
		"quantity", req.Quantity,
		"referenceID", req.ReferenceID,
		"expiresAt", reservation.ExpiresAt)

	movement := domain.NewStockMovement(req.ProductID, req.VariantID, domain.MovementReserved, -req.Quantity)
	movement.ReferenceID = req.ReferenceID
	movement.ReferenceType = string(req.ReferenceType)
	s.recordMovement(ctx, movement)

	s.afterMutation(ctx, req.ProductID, req.VariantID, movement, 0)

	return &ReserveStockResult{
		ReservationID: reservation.ID,
		ExpiresAt:     reservation.ExpiresAt,
	}, nil
}

// ReleaseStock cancels a reservation and returns its quantity to the
// available pool. The bool result reports whether stock was actually
// released; a terminal reservation yields (false, nil).
func (s *inventoryService) ReleaseStock(ctx context.Context, req ReleaseStockRequest) (bool, error) {
	if req.ReservationID != "" {
		return s.releaseByID(ctx, req.ReservationID, req.Reason)
	}

	if req.ProductID == "" {
		return false, apperrors.NewValidation("reservation ID or product ID is required")
	}
	if req.Quantity <= 0 {
		return false, apperrors.NewValidation("quantity must be positive")
	}

	// Oldest-first release when no reservation ID is given.
	reservations, err := s.repo.OldestActiveReservations(ctx, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to find active reservations")
	}
	if len(reservations) == 0 {
		return false, nil
	}

	released := false
	for _, reservation := range reservations {
		ok, err := s.releaseByID(ctx, reservation.ID, req.Reason)
		if err != nil {
			return released, err
		}
		released = released || ok
	}
	return released, nil
}

func (s *inventoryService) releaseByID(ctx context.Context, reservationID, reason string) (bool, error) {
	reservation, err := s.repo.FindReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return false, &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: "reservation not found", Err: err}
		}
		return false, apperrors.Wrap(err, "failed to find reservation")
	}

	released, err := s.repo.ReleaseReservation(ctx, reservationID, domain.ReservationCancelled)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to release reservation")
	}
	if !released {
		// Already confirmed, cancelled or expired; idempotent no-op.
		s.logger.Info("Release skipped, reservation already terminal",
			"reservationID", reservationID, "status", reservation.Status)
		return false, nil
	}

	s.logger.Info("Reservation released",
		"reservationID", reservationID,
		"productID", reservation.ProductID,
		"quantity", reservation.Quantity,
		"reason", reason)

	movement := domain.NewStockMovement(reservation.ProductID, reservation.VariantID, domain.MovementReleased, reservation.Quantity)
	movement.ReferenceID = reservation.ReferenceID
	movement.ReferenceType = string(reservation.ReferenceType)
	movement.Reason = reason
	s.recordMovement(ctx, movement)

	s.afterMutation(ctx, reservation.ProductID, reservation.VariantID, movement, 0)
	return true, nil
}

// ConfirmReservation completes a sale: the order's active reservations are
// marked confirmed and total stock is decremented by the confirmed quantity.
func (s *inventoryService) ConfirmReservation(ctx context.Context, req ConfirmReservationRequest) (bool, error) {
	if req.OrderID == "" {
		return false, apperrors.NewValidation("order ID is required")
	}
	if req.Quantity <= 0 {
		return false, apperrors.NewValidation("quantity must be positive")
	}

	prev, _ := s.currentTotal(ctx, req.ProductID, req.VariantID)

	confirmed, err := s.repo.ConfirmReservations(ctx, req.ProductID, req.VariantID, req.Quantity, req.OrderID)
	if err != nil {
		return false, s.mapReservationError(err, req.ProductID, req.Quantity)
	}

	s.logger.Info("Reservation confirmed",
		"productID", req.ProductID,
		"orderID", req.OrderID,
		"quantity", req.Quantity,
		"reservations", len(confirmed))

	movement := domain.NewStockMovement(req.ProductID, req.VariantID, domain.MovementOut, -req.Quantity)
	movement.ReferenceID = req.OrderID
	movement.ReferenceType = string(domain.ReferenceOrder)
	movement.UserID = req.UserID
	s.recordMovement(ctx, movement)

	s.afterMutation(ctx, req.ProductID, req.VariantID, movement, prev)
	return true, nil
}

// UpdateStock applies an administrative adjustment and logs the matching
// movement (in, out or adjusted).
func (s *inventoryService) UpdateStock(ctx context.Context, req UpdateStockRequest) (*domain.InventoryRecord, error) {
	if req.ProductID == "" {
		return nil, apperrors.NewValidation("product ID is required")
	}
	if req.Quantity < 0 {
		return nil, apperrors.NewValidation("quantity cannot be negative")
	}
	switch req.Operation {
	case domain.OperationIncrement, domain.OperationDecrement, domain.OperationSet:
	default:
		return nil, &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: "unknown stock operation", Err: domain.ErrInvalidOperation}
	}

	key := domain.ItemKey{ProductID: req.ProductID, VariantID: req.VariantID, WarehouseID: req.WarehouseID}

	// First adjustment for an unseen product creates its record with zero
	// quantity, so an increment can bootstrap inventory.
	if _, err := s.repo.EnsureRecord(ctx, key); err != nil {
		return nil, apperrors.Wrap(err, "failed to ensure inventory record")
	}

	prev, _ := s.currentTotal(ctx, req.ProductID, req.VariantID)

	record, err := s.repo.AdjustQuantity(ctx, key, req.Operation, req.Quantity)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to adjust stock")
	}

	current, err := s.currentTotal(ctx, req.ProductID, req.VariantID)
	if err != nil {
		current = record.Quantity
	}

	movement := s.movementForUpdate(req, prev, current)
	s.recordMovement(ctx, movement)

	s.logger.Info("Stock updated",
		"productID", req.ProductID,
		"operation", req.Operation,
		"quantity", req.Quantity,
		"previousStock", prev,
		"currentStock", current,
		"userID", req.UserID)

	s.afterMutation(ctx, req.ProductID, req.VariantID, movement, prev)
	return record, nil
}

// movementForUpdate translates an adjustment into its movement log entry.
// Increments log as inbound, decrements as outbound; set logs the signed
// delta as an adjustment.
func (s *inventoryService) movementForUpdate(req UpdateStockRequest, prev, current int) *domain.StockMovement {
	var movement *domain.StockMovement
	switch req.Operation {
	case domain.OperationIncrement:
		movement = domain.NewStockMovement(req.ProductID, req.VariantID, domain.MovementIn, req.Quantity)
	case domain.OperationDecrement:
		movement = domain.NewStockMovement(req.ProductID, req.VariantID, domain.MovementOut, -(prev - current))
	default:
		movement = domain.NewStockMovement(req.ProductID, req.VariantID, domain.MovementAdjusted, current-prev)
	}
	movement.Reason = req.Reason
	movement.UserID = req.UserID
	movement.ToLocation = req.WarehouseID
	return movement
}

// BulkUpdateStock applies each update independently, collecting failures
// instead of aborting the batch.
func (s *inventoryService) BulkUpdateStock(ctx context.Context, req BulkUpdateStockRequest) (*BulkUpdateResult, error) {
	if len(req.Updates) == 0 {
		return nil, apperrors.NewValidation("at least one update is required")
	}

	result := &BulkUpdateResult{}
	for _, update := range req.Updates {
		_, err := s.UpdateStock(ctx, UpdateStockRequest{
			ProductID: update.ProductID,
			VariantID: update.VariantID,
			Quantity:  update.Quantity,
			Operation: update.Operation,
			Reason:    req.Reason,
			UserID:    req.UserID,
		})
		if err != nil {
			s.logger.Error("Bulk update item failed",
				"productID", update.ProductID, "operation", update.Operation, "error", err)
			result.Failures = append(result.Failures, BulkUpdateFailure{
				ProductID: update.ProductID,
				VariantID: update.VariantID,
				Reason:    err.Error(),
			})
			continue
		}
		result.Updated++
	}
	return result, nil
}

// TransferStock moves stock between warehouses. The debit and credit happen
// in one repository transaction; a failed transfer leaves both sides intact.
func (s *inventoryService) TransferStock(ctx context.Context, req TransferStockRequest) error {
	if req.Quantity <= 0 {
		return apperrors.NewValidation("quantity must be positive")
	}
	if req.FromWarehouse == "" || req.ToWarehouse == "" {
		return apperrors.NewValidation("source and destination warehouses are required")
	}

	err := s.repo.Transfer(ctx, req.ProductID, req.VariantID, req.Quantity, req.FromWarehouse, req.ToWarehouse)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSameWarehouse):
			return &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: "source and destination warehouse must differ", Err: err}
		case errors.Is(err, domain.ErrProductNotFound):
			return &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: "no stock record in source warehouse", Err: err}
		case errors.Is(err, domain.ErrInsufficientStock):
			return &apperrors.AppError{Type: apperrors.ErrorTypeTransfer, Message: fmt.Sprintf("insufficient stock in warehouse %s", req.FromWarehouse), Err: err}
		default:
			return apperrors.Wrap(err, "transfer failed")
		}
	}

	s.logger.Info("Stock transferred",
		"productID", req.ProductID,
		"quantity", req.Quantity,
		"from", req.FromWarehouse,
		"to", req.ToWarehouse,
		"userID", req.UserID)

	// Two legs in the log: the debit and the credit, sharing the locations.
	outLeg := domain.NewStockMovement(req.ProductID, req.VariantID, domain.MovementTransferred, -req.Quantity)
	outLeg.FromLocation = req.FromWarehouse
	outLeg.ToLocation = req.ToWarehouse
	outLeg.Reason = req.Reason
	outLeg.UserID = req.UserID
	s.recordMovement(ctx, outLeg)

	inLeg := domain.NewStockMovement(req.ProductID, req.VariantID, domain.MovementTransferred, req.Quantity)
	inLeg.FromLocation = req.FromWarehouse
	inLeg.ToLocation = req.ToWarehouse
	inLeg.Reason = req.Reason
	inLeg.UserID = req.UserID
	s.recordMovement(ctx, inLeg)

	// Total across warehouses is unchanged, but per-warehouse views shift.
	s.afterMutation(ctx, req.ProductID, req.VariantID, outLeg, 0)
	return nil
}

// GetLowStockProducts returns every product at or below its reorder point
// together with a suggested replenishment quantity.
func (s *inventoryService) GetLowStockProducts(ctx context.Context) ([]domain.LowStockProduct, error) {
	records, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list low stock records")
	}

	out := make([]domain.LowStockProduct, 0, len(records))
	for _, record := range records {
		reserved, err := s.repo.ActiveReservedSum(ctx, record.ProductID, record.VariantID)
		if err != nil {
			s.logger.Warn("Failed to compute reserved sum for low-stock listing",
				"productID", record.ProductID, "error", err)
			continue
		}
		available := record.Quantity - reserved
		shortage := record.ReorderPoint - available
		if shortage < 0 {
			shortage = 0
		}
		suggested := record.ReorderQuantity
		if suggested < shortage {
			suggested = shortage
		}
		out = append(out, domain.LowStockProduct{
			Record:           *record,
			Available:        available,
			ShortageQuantity: shortage,
			SuggestedReorder: suggested,
		})
	}
	return out, nil
}

// GetStockMovements queries the movement log.
func (s *inventoryService) GetStockMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	movements, err := s.movements.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list stock movements")
	}
	return movements, nil
}

// ExpireReservations transitions lapsed reservations to expired and returns
// their stock to the available pool.
func (s *inventoryService) ExpireReservations(ctx context.Context) (*ExpireResult, error) {
	expired, err := s.repo.ExpireDue(ctx, time.Now().UTC(), s.cfg.SweepBatchSize)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to expire reservations")
	}
	if len(expired) == 0 {
		return &ExpireResult{}, nil
	}

	result := &ExpireResult{Expired: len(expired)}
	seen := make(map[string]bool)
	for _, reservation := range expired {
		movement := domain.NewStockMovement(reservation.ProductID, reservation.VariantID, domain.MovementReleased, reservation.Quantity)
		movement.ReferenceID = reservation.ReferenceID
		movement.ReferenceType = string(reservation.ReferenceType)
		movement.Reason = "reservation expired"
		s.recordMovement(ctx, movement)

		productKey := reservation.ProductID + "|" + reservation.VariantID
		if !seen[productKey] {
			seen[productKey] = true
			result.Products = append(result.Products, reservation.ProductID)
			s.afterMutation(ctx, reservation.ProductID, reservation.VariantID, movement, 0)
		}
	}

	s.logger.Info("Expired reservations reclaimed",
		"count", result.Expired, "products", len(result.Products))
	return result, nil
}

// computeAvailability derives availability from the inventory record and the
// active reservation ledger.
func (s *inventoryService) computeAvailability(ctx context.Context, productID, variantID string) (*domain.Availability, error) {
	record, err := s.repo.GetRecord(ctx, domain.ItemKey{ProductID: productID, VariantID: variantID})
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: fmt.Sprintf("product %s not found", productID), Err: err}
		}
		return nil, apperrors.Wrap(err, "failed to load inventory record")
	}

	reserved, err := s.repo.ActiveReservedSum(ctx, productID, variantID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to sum active reservations")
	}

	return &domain.Availability{
		ProductID:  productID,
		VariantID:  variantID,
		Total:      record.Quantity,
		Reserved:   reserved,
		Available:  record.Quantity - reserved,
		ComputedAt: time.Now().UTC(),
	}, nil
}

// currentTotal returns total stock across warehouses, zero when no record
// exists yet.
func (s *inventoryService) currentTotal(ctx context.Context, productID, variantID string) (int, error) {
	record, err := s.repo.GetRecord(ctx, domain.ItemKey{ProductID: productID, VariantID: variantID})
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return record.Quantity, nil
}

// recordMovement appends to the movement log. The log is an audit trail;
// append failure is logged loudly but never fails the originating operation.
func (s *inventoryService) recordMovement(ctx context.Context, movement *domain.StockMovement) {
	if err := s.movements.Append(ctx, movement); err != nil {
		s.logger.Error("Failed to append stock movement",
			"productID", movement.ProductID, "type", movement.Type, "error", err)
	}
}

// afterMutation runs the post-mutation pipeline: synchronous cache
// invalidation, then the best-effort fan-out (stock-update broadcast,
// movement event, alert evaluation). Fan-out failures are logged, never
// returned, so a dead broker cannot fail a stock operation.
func (s *inventoryService) afterMutation(ctx context.Context, productID, variantID string, movement *domain.StockMovement, prevStock int) {
	if err := s.cache.Invalidate(ctx, productID, variantID); err != nil {
		s.logger.Warn("Failed to invalidate availability cache",
			"productID", productID, "error", err)
	}

	available := 0
	if availability, err := s.computeAvailability(ctx, productID, variantID); err == nil {
		available = availability.Available
	} else if !apperrors.IsNotFound(err) {
		s.logger.Warn("Failed to recompute availability after mutation",
			"productID", productID, "error", err)
	}

	if err := s.broadcaster.PublishStockUpdate(ctx, domain.StockUpdateEvent{
		ProductID:      productID,
		VariantID:      variantID,
		AvailableStock: available,
		Timestamp:      time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("Failed to broadcast stock update", "productID", productID, "error", err)
	}

	if err := s.publisher.PublishMovement(ctx, domain.MovementEvent{
		EventID:      uuid.New().String(),
		Source:       s.instanceID,
		ProductID:    productID,
		VariantID:    variantID,
		Type:         movement.Type,
		Quantity:     movement.Quantity,
		CurrentStock: available,
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("Failed to publish movement event", "productID", productID, "error", err)
	}

	if s.alerts != nil {
		trigger := EvaluationTrigger{
			Kind:          EvaluationMovement,
			MovementType:  movement.Type,
			PreviousStock: prevStock,
		}
		if err := s.alerts.EvaluateProduct(ctx, productID, variantID, trigger); err != nil {
			s.logger.Warn("Alert evaluation failed", "productID", productID, "error", err)
		}
	}
}

// mapReservationError translates repository sentinels into typed errors.
func (s *inventoryService) mapReservationError(err error, productID string, quantity int) error {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: fmt.Sprintf("product %s not found", productID), Err: err}
	case errors.Is(err, domain.ErrReservationNotFound):
		return &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: "no active reservations match", Err: err}
	case errors.Is(err, domain.ErrInsufficientStock):
		return &apperrors.AppError{Type: apperrors.ErrorTypeInsufficientStock, Message: fmt.Sprintf("insufficient stock for product %s (requested %d)", productID, quantity), Err: err}
	default:
		return apperrors.Wrap(err, "reservation operation failed")
	}
}
