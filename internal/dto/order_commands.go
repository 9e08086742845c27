package dto

import "orderflow/internal/domain"

type PlaceOrderLine struct {
	ProductID int
	Quantity  float64
}

type DeliveryLine struct {
	ProductID int
	Quantity  float64
}

type StatusChange struct {
	Target domain.OrderStatus
	Reason string
	Agent  *domain.DeliveryAgent
}

type NewAdjustment struct {
	Type        domain.AdjustmentType
	Description string
	Amount      float64
	BatchID     string
}

type BatchPayment struct {
	BatchKey string
	Amount   float64
	Note     string
}

type RevertBatch struct {
	DeliveryRecordIDs     []string
	AdjustmentIDsToRemove []string
}
