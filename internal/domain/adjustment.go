package domain

import (
	"strings"
	"time"
)

type AdjustmentType string

const (
	AdjustmentCharge   AdjustmentType = "charge"
	AdjustmentDiscount AdjustmentType = "discount"
	AdjustmentAdvance  AdjustmentType = "advance"
)

func ParseAdjustmentType(raw string) (AdjustmentType, bool) {
	switch AdjustmentType(strings.ToLower(strings.TrimSpace(raw))) {
	case AdjustmentCharge:
		return AdjustmentCharge, true
	case AdjustmentDiscount:
		return AdjustmentDiscount, true
	case AdjustmentAdvance:
		return AdjustmentAdvance, true
	}
	return "", false
}

type Adjustment struct {
	ID            string
	OrderID       uint
	Type          AdjustmentType
	Description   string
	Amount        float64
	IsLocked      bool
	LinkedBatchID string
	CreatedAt     time.Time
}

// SignedAmount is the amount as it contributes to the balance.
func (a Adjustment) SignedAmount() float64 {
	if a.Type == AdjustmentCharge {
		return a.Amount
	}
	return -a.Amount
}

// BelongsToBatch matches either the explicit batch link or the legacy
// "[key] ..." description prefix.
func (a Adjustment) BelongsToBatch(key string) bool {
	if key == "" {
		return false
	}
	if a.LinkedBatchID != "" {
		return a.LinkedBatchID == key
	}
	return strings.HasPrefix(a.Description, BatchDescriptionPrefix(key))
}

// BatchDescriptionPrefix is the correlation tag written in front of a
// batch-linked adjustment's description.
func BatchDescriptionPrefix(key string) string {
	return "[" + key + "]"
}
