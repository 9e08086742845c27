package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"orderflow/internal/domain"
	apperrors "orderflow/internal/errors"
)

type AdjustmentInput struct {
	Type          domain.AdjustmentType
	Description   string
	Amount        float64
	LinkedBatchID string
}

type AdjustmentLedger struct {
	newID func() string
	now   func() time.Time
}

func NewAdjustmentLedger(newID func() string, now func() time.Time) *AdjustmentLedger {
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	if now == nil {
		now = time.Now
	}
	return &AdjustmentLedger{newID: newID, now: now}
}

// Add appends an unlocked adjustment. The returned summary lets callers warn
// when the balance goes negative; that is allowed.
func (l *AdjustmentLedger) Add(order *domain.Order, in AdjustmentInput) (domain.Adjustment, domain.BalanceSummary, error) {
	if err := validateAdjustmentInput(in); err != nil {
		return domain.Adjustment{}, domain.BalanceSummary{}, err
	}

	description := strings.TrimSpace(in.Description)
	if in.LinkedBatchID != "" {
		prefix := domain.BatchDescriptionPrefix(in.LinkedBatchID)
		if !strings.HasPrefix(description, prefix) {
			description = prefix + " " + description
		}
	}

	adj := domain.Adjustment{
		ID:            l.newID(),
		OrderID:       order.ID,
		Type:          in.Type,
		Description:   description,
		Amount:        in.Amount,
		IsLocked:      false,
		LinkedBatchID: in.LinkedBatchID,
		CreatedAt:     l.now().UTC(),
	}
	order.Adjustments = append(order.Adjustments, adj)

	return adj, order.Summarize(), nil
}

func (l *AdjustmentLedger) Remove(order *domain.Order, adjustmentID string) error {
	idx := order.AdjustmentIndex(adjustmentID)
	if idx < 0 {
		return adjustmentNotFound(adjustmentID)
	}
	if order.Adjustments[idx].IsLocked {
		return apperrors.NewDomainError(
			apperrors.KindAdjustmentLocked,
			fmt.Sprintf("adjustment %s is locked and cannot be removed", adjustmentID),
		)
	}
	order.Adjustments = append(order.Adjustments[:idx], order.Adjustments[idx+1:]...)
	return nil
}

// Lock is one-way. Locking an already locked entry reports changed=false.
func (l *AdjustmentLedger) Lock(order *domain.Order, adjustmentID string) (bool, error) {
	idx := order.AdjustmentIndex(adjustmentID)
	if idx < 0 {
		return false, adjustmentNotFound(adjustmentID)
	}
	if order.Adjustments[idx].IsLocked {
		return false, nil
	}
	order.Adjustments[idx].IsLocked = true
	return true, nil
}

// LinkedTo returns the adjustments correlated with any of the batch keys.
func (l *AdjustmentLedger) LinkedTo(order *domain.Order, keys ...string) []domain.Adjustment {
	var linked []domain.Adjustment
	for _, adj := range order.Adjustments {
		for _, key := range keys {
			if adj.BelongsToBatch(key) {
				linked = append(linked, adj)
				break
			}
		}
	}
	return linked
}

// removeAll drops the given ids without lock checks; callers verify locks first.
func (l *AdjustmentLedger) removeAll(order *domain.Order, ids map[string]struct{}) []domain.Adjustment {
	var removed []domain.Adjustment
	kept := order.Adjustments[:0]
	for _, adj := range order.Adjustments {
		if _, ok := ids[adj.ID]; ok {
			removed = append(removed, adj)
			continue
		}
		kept = append(kept, adj)
	}
	order.Adjustments = kept
	return removed
}

func validateAdjustmentInput(in AdjustmentInput) error {
	var details []apperrors.ValidationDetail

	switch in.Type {
	case domain.AdjustmentCharge, domain.AdjustmentDiscount, domain.AdjustmentAdvance:
	default:
		details = append(details, apperrors.ValidationDetail{
			Field:   "type",
			Message: "type must be one of charge, discount, advance",
		})
	}

	if strings.TrimSpace(in.Description) == "" {
		details = append(details, apperrors.ValidationDetail{
			Field:   "description",
			Message: "description is required",
		})
	}

	if !domain.IsPositiveAmount(in.Amount) {
		details = append(details, apperrors.ValidationDetail{
			Field:   "amount",
			Message: "amount must be greater than zero",
		})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("invalid adjustment", details...)
	}
	return nil
}

func adjustmentNotFound(id string) error {
	return apperrors.NewDomainError(
		apperrors.KindAdjustmentNotFound,
		fmt.Sprintf("adjustment %s not found", id),
	)
}
