package dto

type PlaceOrderRequest struct {
	UserID string             `json:"userId" validate:"required,max=64"`
	Items  []PlaceOrderItemIn `json:"items" validate:"required,min=1,max=100,dive"`
}

type PlaceOrderItemIn struct {
	ProductID int     `json:"productId" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

type UpdateStatusRequest struct {
	Status string        `json:"status" validate:"required"`
	Reason string        `json:"reason" validate:"max=500"`
	Agent  *AgentRequest `json:"agent,omitempty"`
}

type AgentRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Mobile      string `json:"mobile" validate:"max=20"`
	Description string `json:"description" validate:"max=500"`
	Address     string `json:"address" validate:"max=255"`
}

type AddAdjustmentRequest struct {
	Type        string  `json:"type" validate:"required,oneof=charge discount advance"`
	Description string  `json:"description" validate:"required,max=255"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	BatchID     string  `json:"batchId" validate:"max=160"`
}

type RecordDeliveryRequest struct {
	Deliveries []DeliveryLineIn `json:"deliveries" validate:"required,min=1,max=100,dive"`
}

type DeliveryLineIn struct {
	ProductID int     `json:"productId" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

type BatchPaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Note   string  `json:"note" validate:"max=255"`
}

type RevertDeliveryBatchRequest struct {
	DeliveryRecordIDs     []string `json:"deliveryRecordIds" validate:"required,min=1,dive,required"`
	AdjustmentIDsToRemove []string `json:"adjustmentIdsToRemove" validate:"dive,required"`
}
