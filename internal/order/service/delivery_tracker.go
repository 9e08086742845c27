package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"orderflow/internal/domain"
	apperrors "orderflow/internal/errors"
)

type DeliveryLine struct {
	ProductID int
	Quantity  float64
}

type RevertResult struct {
	Records     []domain.DeliveryRecord
	Adjustments []domain.Adjustment
}

type DeliveryTracker struct {
	ledger      *AdjustmentLedger
	window      time.Duration
	now         func() time.Time
	newRecordID func() string
	newBatchID  func() string
}

type DeliveryTrackerOption func(*DeliveryTracker)

func WithBatchWindow(window time.Duration) DeliveryTrackerOption {
	return func(t *DeliveryTracker) {
		if window > 0 {
			t.window = window
		}
	}
}

func WithClock(now func() time.Time) DeliveryTrackerOption {
	return func(t *DeliveryTracker) {
		if now != nil {
			t.now = now
		}
	}
}

func WithIDGenerators(recordID, batchID func() string) DeliveryTrackerOption {
	return func(t *DeliveryTracker) {
		if recordID != nil {
			t.newRecordID = recordID
		}
		if batchID != nil {
			t.newBatchID = batchID
		}
	}
}

func NewDeliveryTracker(ledger *AdjustmentLedger, opts ...DeliveryTrackerOption) *DeliveryTracker {
	t := &DeliveryTracker{
		ledger:      ledger,
		window:      domain.DefaultBatchWindow,
		now:         time.Now,
		newRecordID: func() string { return uuid.NewString() },
		newBatchID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DeliveryTracker) IsFullyDelivered(order *domain.Order) bool {
	return order.IsFullyDelivered()
}

func (t *DeliveryTracker) BatchKey(record domain.DeliveryRecord) string {
	return record.BatchKey(t.window)
}

// RecordDelivery applies one dispatch run. Either every line is accepted or
// the order is left as it was.
func (t *DeliveryTracker) RecordDelivery(order *domain.Order, lines []DeliveryLine) ([]domain.DeliveryRecord, error) {
	if !order.Status.IsInDelivery() {
		return nil, apperrors.NewDomainError(
			apperrors.KindInvalidTransition,
			fmt.Sprintf("cannot record deliveries while order is %s", order.Status),
		)
	}
	if order.DeliveryAgent == nil {
		return nil, apperrors.NewValidationError("delivery agent is required", apperrors.ValidationDetail{
			Field:   "agent",
			Message: "assign a delivery agent before recording deliveries",
		})
	}
	if len(lines) == 0 {
		return nil, apperrors.NewValidationError("deliveries must not be empty", apperrors.ValidationDetail{
			Field:   "deliveries",
			Message: "at least one delivery line is required",
		})
	}

	requested := make(map[int]float64, len(lines))
	for idx, line := range lines {
		if !domain.IsPositiveAmount(line.Quantity) {
			return nil, apperrors.NewValidationError("invalid delivery quantity", apperrors.ValidationDetail{
				Field:   "deliveries[" + strconv.Itoa(idx) + "].quantity",
				Message: "quantity must be greater than zero",
			})
		}
		if order.ItemIndex(line.ProductID) < 0 {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("product %d is not part of order %d", line.ProductID, order.ID))
		}
		requested[line.ProductID] += line.Quantity
	}

	for productID, qty := range requested {
		item := order.Items[order.ItemIndex(productID)]
		if qty > item.Remaining()+domain.QuantityTolerance {
			return nil, apperrors.NewDomainError(
				apperrors.KindOverDelivery,
				fmt.Sprintf("cannot deliver %g %s of %s: only %g remaining", qty, item.Unit, item.Name, item.Remaining()),
			)
		}
	}

	now := t.now().UTC()
	batchID := t.newBatchID()
	agent := *order.DeliveryAgent

	records := make([]domain.DeliveryRecord, 0, len(lines))
	for _, line := range lines {
		idx := order.ItemIndex(line.ProductID)
		item := &order.Items[idx]
		// The record carries what was applied, so a revert subtracts exactly that.
		applied := math.Min(line.Quantity, item.Remaining())
		if applied <= 0 {
			continue
		}
		item.QuantityDelivered += applied

		records = append(records, domain.DeliveryRecord{
			ID:                t.newRecordID(),
			OrderID:           order.ID,
			ProductID:         line.ProductID,
			BatchID:           batchID,
			QuantityDelivered: applied,
			DeliveryDate:      now,
			Agent:             agent,
		})
	}
	order.Deliveries = append(order.Deliveries, records...)
	order.Status = t.deliveryStatus(order)

	return records, nil
}

// Batches groups the order's records by batch key, oldest first.
func (t *DeliveryTracker) Batches(order *domain.Order) []domain.DeliveryBatch {
	index := make(map[string]int)
	var batches []domain.DeliveryBatch
	for _, record := range order.Deliveries {
		key := t.BatchKey(record)
		pos, ok := index[key]
		if !ok {
			pos = len(batches)
			index[key] = pos
			batches = append(batches, domain.DeliveryBatch{
				Key:         key,
				Agent:       record.Agent,
				DeliveredAt: record.DeliveryDate,
			})
		}
		b := &batches[pos]
		b.Records = append(b.Records, record)
		if record.DeliveryDate.Before(b.DeliveredAt) {
			b.DeliveredAt = record.DeliveryDate
		}
	}

	for i := range batches {
		batches[i].Adjustments = t.ledger.LinkedTo(order, batches[i].Key)
	}

	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].DeliveredAt.Before(batches[j].DeliveredAt)
	})
	return batches
}

// FindBatch returns the batch with the given key.
func (t *DeliveryTracker) FindBatch(order *domain.Order, key string) (domain.DeliveryBatch, bool) {
	for _, b := range t.Batches(order) {
		if b.Key == key {
			return b, true
		}
	}
	return domain.DeliveryBatch{}, false
}

// RevertBatch removes the named records and every adjustment tied to their
// batches, plus any extra adjustments the caller asks to drop. A single locked
// adjustment in that set blocks the whole revert.
func (t *DeliveryTracker) RevertBatch(order *domain.Order, recordIDs []string, extraAdjustmentIDs []string) (RevertResult, error) {
	if !order.Status.IsInDelivery() {
		return RevertResult{}, apperrors.NewDomainError(
			apperrors.KindInvalidTransition,
			fmt.Sprintf("cannot revert deliveries while order is %s", order.Status),
		)
	}
	if len(recordIDs) == 0 {
		return RevertResult{}, apperrors.NewValidationError("deliveryRecordIds must not be empty", apperrors.ValidationDetail{
			Field:   "deliveryRecordIds",
			Message: "at least one delivery record id is required",
		})
	}

	recordSet := make(map[string]struct{}, len(recordIDs))
	keySet := make(map[string]struct{})
	var keys []string
	for _, id := range recordIDs {
		idx := order.DeliveryIndex(id)
		if idx < 0 {
			return RevertResult{}, apperrors.NewNotFoundError(fmt.Sprintf("delivery record %s not found on order %d", id, order.ID))
		}
		recordSet[id] = struct{}{}
		key := t.BatchKey(order.Deliveries[idx])
		if _, seen := keySet[key]; !seen {
			keySet[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	toRemove := make(map[string]struct{})
	for _, adj := range t.ledger.LinkedTo(order, keys...) {
		toRemove[adj.ID] = struct{}{}
	}
	for _, id := range extraAdjustmentIDs {
		if order.AdjustmentIndex(id) < 0 {
			return RevertResult{}, adjustmentNotFound(id)
		}
		toRemove[id] = struct{}{}
	}

	for _, adj := range order.Adjustments {
		if _, ok := toRemove[adj.ID]; ok && adj.IsLocked {
			return RevertResult{}, apperrors.NewDomainError(
				apperrors.KindRevertBlockedByLock,
				fmt.Sprintf("adjustment %s is locked; the delivery batch cannot be reverted", adj.ID),
			)
		}
	}

	var result RevertResult
	kept := make([]domain.DeliveryRecord, 0, len(order.Deliveries))
	for _, record := range order.Deliveries {
		if _, ok := recordSet[record.ID]; !ok {
			kept = append(kept, record)
			continue
		}
		result.Records = append(result.Records, record)
		if idx := order.ItemIndex(record.ProductID); idx >= 0 {
			item := &order.Items[idx]
			item.QuantityDelivered -= record.QuantityDelivered
			if item.QuantityDelivered < 0 {
				item.QuantityDelivered = 0
			}
		}
	}
	order.Deliveries = kept
	result.Adjustments = t.ledger.removeAll(order, toRemove)
	order.Status = t.deliveryStatus(order)

	return result, nil
}

// deliveryStatus never promotes to Delivered; that stays an operator action.
// Below full delivery the status follows quantities alone, so a manual
// PartiallyDelivered with nothing delivered reads as Dispatch after a revert.
func (t *DeliveryTracker) deliveryStatus(order *domain.Order) domain.OrderStatus {
	if order.IsFullyDelivered() {
		return order.Status
	}
	for _, item := range order.Items {
		if item.QuantityDelivered > domain.QuantityTolerance {
			return domain.OrderStatusPartiallyDelivered
		}
	}
	return domain.OrderStatusDispatch
}
