package dto

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"orderflow/internal/domain"
	apperrors "orderflow/internal/errors"
)

type OrderResponse struct {
	TraceID        string               `json:"traceId,omitempty"`
	ID             uint                 `json:"id"`
	CustomOrderID  string               `json:"customOrderId"`
	UserID         string               `json:"userId"`
	Status         string               `json:"status"`
	PauseReason    string               `json:"pauseReason,omitempty"`
	Items          []OrderItemResponse  `json:"items"`
	Adjustments    []AdjustmentResponse `json:"adjustments"`
	DeliveryAgent  *AgentResponse       `json:"deliveryAgent,omitempty"`
	FullyDelivered bool                 `json:"fullyDelivered"`
	Balance        BalanceResponse      `json:"balance"`
	CreatedAt      time.Time            `json:"createdAt"`
	DeliveredAt    *time.Time           `json:"deliveredAt,omitempty"`
}

type OrderItemResponse struct {
	ProductID         int     `json:"productId"`
	Name              string  `json:"name"`
	Unit              string  `json:"unit"`
	Description       string  `json:"description,omitempty"`
	QuantityOrdered   float64 `json:"quantityOrdered"`
	QuantityDelivered float64 `json:"quantityDelivered"`
	Remaining         float64 `json:"remaining"`
	Price             float64 `json:"price"`
}

type AdjustmentResponse struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	IsLocked      bool    `json:"isLocked"`
	LinkedBatchID string  `json:"linkedBatchId,omitempty"`
}

type AgentResponse struct {
	Name        string `json:"name"`
	Mobile      string `json:"mobile,omitempty"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
}

// BalanceResponse carries raw numbers for clients that compute and
// two-decimal strings for clients that only display.
type BalanceResponse struct {
	ItemTotal              float64 `json:"itemTotal"`
	AdjustmentTotal        float64 `json:"adjustmentTotal"`
	Balance                float64 `json:"balance"`
	ItemTotalDisplay       string  `json:"itemTotalDisplay"`
	AdjustmentTotalDisplay string  `json:"adjustmentTotalDisplay"`
	BalanceDisplay         string  `json:"balanceDisplay"`
	Negative               bool    `json:"negative"`
}

type DeliveryRecordResponse struct {
	ID                string        `json:"id"`
	OrderID           uint          `json:"orderId"`
	ProductID         int           `json:"productId"`
	BatchID           string        `json:"batchId,omitempty"`
	QuantityDelivered float64       `json:"quantityDelivered"`
	DeliveryDate      time.Time     `json:"deliveryDate"`
	DeliveryAgent     AgentResponse `json:"deliveryAgentSnapshot"`
}

type DeliveryBatchResponse struct {
	Key         string                   `json:"key"`
	Agent       AgentResponse            `json:"agent"`
	DeliveredAt time.Time                `json:"deliveredAt"`
	Quantities  []BatchQuantityResponse  `json:"quantities"`
	Records     []DeliveryRecordResponse `json:"records"`
	Adjustments []AdjustmentResponse     `json:"adjustments"`
	Revertible  bool                     `json:"revertible"`
}

type BatchQuantityResponse struct {
	ProductID int     `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

type ErrorResponse struct {
	TraceID   string                       `json:"traceId"`
	Status    int                          `json:"status"`
	Message   string                       `json:"message"`
	Code      string                       `json:"code"`
	OrderID   uint                         `json:"orderId,omitempty"`
	Details   []apperrors.ValidationDetail `json:"details,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

// FormatMoney renders an amount with two decimals, rounding half away from zero.
func FormatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func NewBalanceResponse(summary domain.BalanceSummary) BalanceResponse {
	return BalanceResponse{
		ItemTotal:              summary.ItemTotal,
		AdjustmentTotal:        summary.AdjustmentTotal,
		Balance:                summary.Balance,
		ItemTotalDisplay:       FormatMoney(summary.ItemTotal),
		AdjustmentTotalDisplay: FormatMoney(summary.AdjustmentTotal),
		BalanceDisplay:         FormatMoney(summary.Balance),
		Negative:               summary.IsNegative(),
	}
}

func NewOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemResponse{
			ProductID:         item.ProductID,
			Name:              item.Name,
			Unit:              item.Unit,
			Description:       item.Description,
			QuantityOrdered:   item.QuantityOrdered,
			QuantityDelivered: item.QuantityDelivered,
			Remaining:         item.Remaining(),
			Price:             item.Price,
		}
	}

	resp := OrderResponse{
		ID:             order.ID,
		CustomOrderID:  order.CustomOrderID,
		UserID:         order.UserID,
		Status:         string(order.Status),
		PauseReason:    order.PauseReason,
		Items:          items,
		Adjustments:    newAdjustmentResponses(order.Adjustments),
		FullyDelivered: order.IsFullyDelivered(),
		Balance:        NewBalanceResponse(order.Summarize()),
		CreatedAt:      order.CreatedAt,
		DeliveredAt:    order.DeliveredAt,
	}
	if order.DeliveryAgent != nil {
		agent := newAgentResponse(*order.DeliveryAgent)
		resp.DeliveryAgent = &agent
	}
	return resp
}

func NewDeliveryRecordResponses(records []domain.DeliveryRecord) []DeliveryRecordResponse {
	out := make([]DeliveryRecordResponse, len(records))
	for i, r := range records {
		out[i] = DeliveryRecordResponse{
			ID:                r.ID,
			OrderID:           r.OrderID,
			ProductID:         r.ProductID,
			BatchID:           r.BatchID,
			QuantityDelivered: r.QuantityDelivered,
			DeliveryDate:      r.DeliveryDate,
			DeliveryAgent:     newAgentResponse(r.Agent),
		}
	}
	return out
}

func NewDeliveryBatchResponses(batches []domain.DeliveryBatch) []DeliveryBatchResponse {
	out := make([]DeliveryBatchResponse, len(batches))
	for i, b := range batches {
		quantities := make([]BatchQuantityResponse, 0)
		for productID, qty := range b.Quantities() {
			quantities = append(quantities, BatchQuantityResponse{ProductID: productID, Quantity: qty})
		}
		sort.Slice(quantities, func(a, c int) bool { return quantities[a].ProductID < quantities[c].ProductID })

		out[i] = DeliveryBatchResponse{
			Key:         b.Key,
			Agent:       newAgentResponse(b.Agent),
			DeliveredAt: b.DeliveredAt,
			Quantities:  quantities,
			Records:     NewDeliveryRecordResponses(b.Records),
			Adjustments: newAdjustmentResponses(b.Adjustments),
			Revertible:  b.Revertible(),
		}
	}
	return out
}

func newAdjustmentResponses(adjustments []domain.Adjustment) []AdjustmentResponse {
	out := make([]AdjustmentResponse, len(adjustments))
	for i, a := range adjustments {
		out[i] = AdjustmentResponse{
			ID:            a.ID,
			Type:          string(a.Type),
			Description:   a.Description,
			Amount:        a.Amount,
			IsLocked:      a.IsLocked,
			LinkedBatchID: a.LinkedBatchID,
		}
	}
	return out
}

func newAgentResponse(agent domain.DeliveryAgent) AgentResponse {
	return AgentResponse{
		Name:        agent.Name,
		Mobile:      agent.Mobile,
		Description: agent.Description,
		Address:     agent.Address,
	}
}

type OrderBalanceResponse struct {
	TraceID string `json:"traceId"`
	OrderID uint   `json:"orderId"`
	BalanceResponse
}

type DeliveryHistoryResponse struct {
	TraceID    string                   `json:"traceId"`
	OrderID    uint                     `json:"orderId"`
	Deliveries []DeliveryRecordResponse `json:"deliveries"`
}

type DeliveryBatchesResponse struct {
	TraceID string                  `json:"traceId"`
	OrderID uint                    `json:"orderId"`
	Batches []DeliveryBatchResponse `json:"batches"`
}
