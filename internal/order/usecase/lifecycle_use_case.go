package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"orderflow/internal/domain"
	"orderflow/internal/dto"
	apperrors "orderflow/internal/errors"
	"orderflow/internal/order/service"
)

const (
	OpPlaceOrder         = "place_order"
	OpUpdateStatus       = "update_status"
	OpAssignAgent        = "assign_agent"
	OpAddAdjustment      = "add_adjustment"
	OpRemoveAdjustment   = "remove_adjustment"
	OpLockAdjustment     = "lock_adjustment"
	OpRecordDelivery     = "record_delivery"
	OpRecordBatchPayment = "record_batch_payment"
	OpRevertBatch        = "revert_delivery_batch"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

const defaultReceivedAmountNote = "received amount"

type OrderRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Order, error)
	FindOrderIDByDeliveryRecordID(ctx context.Context, recordID string) (uint, error)
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	// Mutate loads the order under a row lock, applies fn and persists the
	// result in one transaction. If fn fails nothing is written.
	Mutate(ctx context.Context, id uint, fn func(order *domain.Order) error) (*domain.Order, error)
}

type ProductCatalog interface {
	FindByIDs(ctx context.Context, ids []int) ([]domain.Product, error)
}

type ChangeNotifier interface {
	OrderChanged(ctx context.Context, orderID uint, event string) error
}

type OperationRecorder interface {
	RecordOperation(operation, outcome string)
}

type LifecycleUseCase struct {
	orderRepo        OrderRepository
	catalog          ProductCatalog
	stateMachine     *service.OrderStateMachine
	ledger           *service.AdjustmentLedger
	tracker          *service.DeliveryTracker
	notifier         ChangeNotifier
	metrics          OperationRecorder
	logger           *zap.Logger
	maxRetryAttempts int
	now              func() time.Time
}

func NewLifecycleUseCase(
	orderRepo OrderRepository,
	catalog ProductCatalog,
	stateMachine *service.OrderStateMachine,
	ledger *service.AdjustmentLedger,
	tracker *service.DeliveryTracker,
	notifier ChangeNotifier,
	metrics OperationRecorder,
	logger *zap.Logger,
	maxRetryAttempts int,
) *LifecycleUseCase {
	if maxRetryAttempts < 1 {
		maxRetryAttempts = 1
	}
	return &LifecycleUseCase{
		orderRepo:        orderRepo,
		catalog:          catalog,
		stateMachine:     stateMachine,
		ledger:           ledger,
		tracker:          tracker,
		notifier:         notifier,
		metrics:          metrics,
		logger:           logger,
		maxRetryAttempts: maxRetryAttempts,
		now:              time.Now,
	}
}

func (uc *LifecycleUseCase) PlaceOrder(ctx context.Context, userID string, lines []dto.PlaceOrderLine) (*domain.Order, error) {
	uc.logger.Info("place order started", zap.String("userId", userID), zap.Int("itemCount", len(lines)))

	if err := validatePlaceOrder(userID, lines); err != nil {
		uc.record(OpPlaceOrder, err)
		return nil, err
	}

	ids := make([]int, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	products, err := uc.catalog.FindByIDs(ctx, ids)
	if err != nil {
		uc.record(OpPlaceOrder, err)
		return nil, err
	}
	byID := make(map[int]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := uc.now().UTC()
	order := &domain.Order{
		UserID:    strings.TrimSpace(userID),
		Status:    domain.OrderStatusOrdered,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			err := apperrors.NewNotFoundError(fmt.Sprintf("product %d not found", line.ProductID))
			uc.record(OpPlaceOrder, err)
			return nil, err
		}
		if !product.IsOrderable() {
			err := apperrors.NewValidationError("product is not available", apperrors.ValidationDetail{
				Field:   "items.productId",
				Message: fmt.Sprintf("product %d is inactive", product.ID),
			})
			uc.record(OpPlaceOrder, err)
			return nil, err
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:       product.ID,
			Name:            product.Name,
			Unit:            product.Unit,
			Description:     product.Description,
			QuantityOrdered: line.Quantity,
			Price:           product.Price,
		})
	}

	created, err := uc.orderRepo.Create(ctx, order)
	if err != nil {
		uc.logger.Error("failed to create order", zap.String("userId", userID), zap.Error(err))
		uc.record(OpPlaceOrder, err)
		return nil, err
	}

	uc.record(OpPlaceOrder, nil)
	uc.notify(ctx, created.ID, OpPlaceOrder)
	uc.logger.Info("order placed", zap.Uint("orderId", created.ID), zap.String("customOrderId", created.CustomOrderID))
	return created, nil
}

func (uc *LifecycleUseCase) GetOrder(ctx context.Context, orderID uint) (*domain.Order, error) {
	return uc.orderRepo.FindByID(ctx, orderID)
}

func (uc *LifecycleUseCase) GetBalance(ctx context.Context, orderID uint) (domain.BalanceSummary, error) {
	order, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return domain.BalanceSummary{}, err
	}
	return order.Summarize(), nil
}

func (uc *LifecycleUseCase) UpdateStatus(ctx context.Context, orderID uint, change dto.StatusChange) (*domain.Order, error) {
	return uc.mutate(ctx, OpUpdateStatus, orderID, func(order *domain.Order) error {
		transition, err := uc.stateMachine.Decide(order, change.Target, service.TransitionPayload{
			Reason: change.Reason,
			Agent:  change.Agent,
		})
		if err != nil {
			return err
		}
		transition.ApplyTo(order)
		return nil
	}, zap.String("targetStatus", string(change.Target)))
}

// ApproveRate moves a rate request to RateApproved.
func (uc *LifecycleUseCase) ApproveRate(ctx context.Context, orderID uint) (*domain.Order, error) {
	return uc.UpdateStatus(ctx, orderID, dto.StatusChange{Target: domain.OrderStatusRateApproved})
}

func (uc *LifecycleUseCase) AssignAgent(ctx context.Context, orderID uint, agent domain.DeliveryAgent) (*domain.Order, error) {
	return uc.mutate(ctx, OpAssignAgent, orderID, func(order *domain.Order) error {
		_, err := uc.stateMachine.AssignAgent(order, agent)
		return err
	}, zap.String("agent", agent.Name))
}

func (uc *LifecycleUseCase) AddAdjustment(ctx context.Context, orderID uint, in dto.NewAdjustment) (*domain.Order, error) {
	return uc.mutate(ctx, OpAddAdjustment, orderID, func(order *domain.Order) error {
		return uc.addAdjustment(order, in)
	}, zap.String("type", string(in.Type)), zap.Float64("amount", in.Amount))
}

// RecordBatchPayment books the amount received for one delivery run as a
// discount tied to that batch.
func (uc *LifecycleUseCase) RecordBatchPayment(ctx context.Context, orderID uint, payment dto.BatchPayment) (*domain.Order, error) {
	note := strings.TrimSpace(payment.Note)
	if note == "" {
		note = defaultReceivedAmountNote
	}
	in := dto.NewAdjustment{
		Type:        domain.AdjustmentDiscount,
		Description: note,
		Amount:      payment.Amount,
		BatchID:     payment.BatchKey,
	}
	return uc.mutate(ctx, OpRecordBatchPayment, orderID, func(order *domain.Order) error {
		return uc.addAdjustment(order, in)
	}, zap.String("batchId", payment.BatchKey), zap.Float64("amount", payment.Amount))
}

func (uc *LifecycleUseCase) RemoveAdjustment(ctx context.Context, orderID uint, adjustmentID string) (*domain.Order, error) {
	return uc.mutate(ctx, OpRemoveAdjustment, orderID, func(order *domain.Order) error {
		return uc.ledger.Remove(order, adjustmentID)
	}, zap.String("adjustmentId", adjustmentID))
}

func (uc *LifecycleUseCase) LockAdjustment(ctx context.Context, orderID uint, adjustmentID string) (*domain.Order, error) {
	return uc.mutate(ctx, OpLockAdjustment, orderID, func(order *domain.Order) error {
		_, err := uc.ledger.Lock(order, adjustmentID)
		return err
	}, zap.String("adjustmentId", adjustmentID))
}

func (uc *LifecycleUseCase) RecordDelivery(ctx context.Context, orderID uint, lines []dto.DeliveryLine) (*domain.Order, error) {
	deliveries := make([]service.DeliveryLine, len(lines))
	for i, line := range lines {
		deliveries[i] = service.DeliveryLine{ProductID: line.ProductID, Quantity: line.Quantity}
	}
	return uc.mutate(ctx, OpRecordDelivery, orderID, func(order *domain.Order) error {
		_, err := uc.tracker.RecordDelivery(order, deliveries)
		return err
	}, zap.Int("lineCount", len(lines)))
}

// RevertDeliveryBatch undoes delivery records. The owning order is found from
// the first record; records from any other order are rejected as not found.
func (uc *LifecycleUseCase) RevertDeliveryBatch(ctx context.Context, req dto.RevertBatch) (*domain.Order, error) {
	if len(req.DeliveryRecordIDs) == 0 {
		err := apperrors.NewValidationError("deliveryRecordIds must not be empty", apperrors.ValidationDetail{
			Field:   "deliveryRecordIds",
			Message: "at least one delivery record id is required",
		})
		uc.record(OpRevertBatch, err)
		return nil, err
	}

	orderID, err := uc.orderRepo.FindOrderIDByDeliveryRecordID(ctx, req.DeliveryRecordIDs[0])
	if err != nil {
		uc.record(OpRevertBatch, err)
		return nil, err
	}

	return uc.mutate(ctx, OpRevertBatch, orderID, func(order *domain.Order) error {
		_, err := uc.tracker.RevertBatch(order, req.DeliveryRecordIDs, req.AdjustmentIDsToRemove)
		return err
	}, zap.Int("recordCount", len(req.DeliveryRecordIDs)))
}

// GetDeliveryHistory returns the order's delivery records, oldest first.
func (uc *LifecycleUseCase) GetDeliveryHistory(ctx context.Context, orderID uint) ([]domain.DeliveryRecord, error) {
	order, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	records := append([]domain.DeliveryRecord(nil), order.Deliveries...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DeliveryDate.Before(records[j].DeliveryDate)
	})
	return records, nil
}

func (uc *LifecycleUseCase) GetDeliveryBatches(ctx context.Context, orderID uint) ([]domain.DeliveryBatch, error) {
	order, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return uc.tracker.Batches(order), nil
}

func (uc *LifecycleUseCase) addAdjustment(order *domain.Order, in dto.NewAdjustment) error {
	batchID := strings.TrimSpace(in.BatchID)
	if batchID != "" {
		if _, ok := uc.tracker.FindBatch(order, batchID); !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("delivery batch %s not found on order %d", batchID, order.ID))
		}
	}

	adj, summary, err := uc.ledger.Add(order, service.AdjustmentInput{
		Type:          in.Type,
		Description:   in.Description,
		Amount:        in.Amount,
		LinkedBatchID: batchID,
	})
	if err != nil {
		return err
	}
	if summary.IsNegative() {
		uc.logger.Warn("order balance is negative",
			zap.Uint("orderId", order.ID),
			zap.String("adjustmentId", adj.ID),
			zap.Float64("balance", summary.Balance),
		)
	}
	return nil
}

func (uc *LifecycleUseCase) mutate(
	ctx context.Context,
	op string,
	orderID uint,
	fn func(order *domain.Order) error,
	fields ...zap.Field,
) (*domain.Order, error) {
	logger := uc.logger.With(append([]zap.Field{zap.String("operation", op), zap.Uint("orderId", orderID)}, fields...)...)
	logger.Info("order operation started")

	order, err := uc.mutateWithRetry(ctx, orderID, fn, logger)
	uc.record(op, err)
	if err != nil {
		if isRejection(err) {
			logger.Warn("order operation rejected", zap.Error(err))
			return nil, err
		}
		logger.Error("order operation failed", zap.Error(err))
		if _, ok := apperrors.IsDeadlockError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewInternalError(op+" failed", err)
	}

	uc.notify(ctx, order.ID, op)
	logger.Info("order operation committed", zap.String("status", string(order.Status)))
	return order, nil
}

func (uc *LifecycleUseCase) mutateWithRetry(
	ctx context.Context,
	orderID uint,
	fn func(order *domain.Order) error,
	logger *zap.Logger,
) (*domain.Order, error) {
	maxAttempts := uc.maxRetryAttempts
	// attempt 1 runs immediately, later attempts wait 100ms, 200ms, ...
	backoffs := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		order, err := uc.orderRepo.Mutate(ctx, orderID, fn)
		if err == nil {
			return order, nil
		}

		if !isDeadlockError(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		base := backoffs[len(backoffs)-1]
		if attempt < len(backoffs) {
			base = backoffs[attempt]
		}
		// ±20% jitter
		wait := base + time.Duration((rand.Float64()*0.4-0.2)*float64(base))
		logger.Warn("deadlock detected, retrying", zap.Int("attempt", attempt), zap.Int("maxAttempts", maxAttempts), zap.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, apperrors.NewDeadlockError("max retries exceeded")
}

func (uc *LifecycleUseCase) notify(ctx context.Context, orderID uint, event string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.OrderChanged(ctx, orderID, event); err != nil {
		uc.logger.Warn("failed to publish order change", zap.Uint("orderId", orderID), zap.String("event", event), zap.Error(err))
	}
}

func (uc *LifecycleUseCase) record(op string, err error) {
	if uc.metrics == nil {
		return
	}
	switch {
	case err == nil:
		uc.metrics.RecordOperation(op, OutcomeOK)
	case isRejection(err):
		uc.metrics.RecordOperation(op, OutcomeRejected)
	default:
		uc.metrics.RecordOperation(op, OutcomeError)
	}
}

func validatePlaceOrder(userID string, lines []dto.PlaceOrderLine) error {
	var details []apperrors.ValidationDetail
	if strings.TrimSpace(userID) == "" {
		details = append(details, apperrors.ValidationDetail{Field: "userId", Message: "userId is required"})
	}
	if len(lines) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "items", Message: "items must not be empty"})
	}
	seen := make(map[int]bool, len(lines))
	for idx, line := range lines {
		field := fmt.Sprintf("items[%d]", idx)
		if line.ProductID <= 0 {
			details = append(details, apperrors.ValidationDetail{Field: field + ".productId", Message: "productId must be a positive integer"})
		}
		if seen[line.ProductID] {
			details = append(details, apperrors.ValidationDetail{Field: field + ".productId", Message: "productId must not be duplicated"})
		}
		seen[line.ProductID] = true
		if !domain.IsPositiveAmount(line.Quantity) {
			details = append(details, apperrors.ValidationDetail{Field: field + ".quantity", Message: "quantity must be greater than zero"})
		}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func isRejection(err error) bool {
	if _, ok := apperrors.IsDomainError(err); ok {
		return true
	}
	if _, ok := apperrors.IsValidationError(err); ok {
		return true
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return true
	}
	if _, ok := apperrors.IsConflictError(err); ok {
		return true
	}
	return false
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
