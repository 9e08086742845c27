package controller

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"orderflow/internal/commons"
	"orderflow/internal/domain"
	"orderflow/internal/dto"
	apperrors "orderflow/internal/errors"
)

type LifecycleUseCase interface {
	PlaceOrder(ctx context.Context, userID string, lines []dto.PlaceOrderLine) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID uint) (*domain.Order, error)
	GetBalance(ctx context.Context, orderID uint) (domain.BalanceSummary, error)
	UpdateStatus(ctx context.Context, orderID uint, change dto.StatusChange) (*domain.Order, error)
	ApproveRate(ctx context.Context, orderID uint) (*domain.Order, error)
	AssignAgent(ctx context.Context, orderID uint, agent domain.DeliveryAgent) (*domain.Order, error)
	AddAdjustment(ctx context.Context, orderID uint, in dto.NewAdjustment) (*domain.Order, error)
	RemoveAdjustment(ctx context.Context, orderID uint, adjustmentID string) (*domain.Order, error)
	LockAdjustment(ctx context.Context, orderID uint, adjustmentID string) (*domain.Order, error)
	RecordDelivery(ctx context.Context, orderID uint, lines []dto.DeliveryLine) (*domain.Order, error)
	RecordBatchPayment(ctx context.Context, orderID uint, payment dto.BatchPayment) (*domain.Order, error)
	GetDeliveryHistory(ctx context.Context, orderID uint) ([]domain.DeliveryRecord, error)
	GetDeliveryBatches(ctx context.Context, orderID uint) ([]domain.DeliveryBatch, error)
	RevertDeliveryBatch(ctx context.Context, req dto.RevertBatch) (*domain.Order, error)
}

type LifecycleController struct {
	useCase LifecycleUseCase
	logger  *zap.Logger
}

func NewLifecycleController(useCase LifecycleUseCase, logger *zap.Logger) *LifecycleController {
	return &LifecycleController{
		useCase: useCase,
		logger:  logger,
	}
}

// Routes mounts the order endpoints under /orders and the revert endpoint
// under /deliveries.
func (c *LifecycleController) Routes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", c.PlaceOrder)
		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", c.GetOrder)
			r.Get("/balance", c.GetBalance)
			r.Patch("/status", c.UpdateStatus)
			r.Post("/rate/approve", c.ApproveRate)
			r.Put("/agent", c.AssignAgent)
			r.Post("/adjustments", c.AddAdjustment)
			r.Delete("/adjustments/{adjustmentId}", c.RemoveAdjustment)
			r.Post("/adjustments/{adjustmentId}/lock", c.LockAdjustment)
			r.Post("/deliveries", c.RecordDelivery)
			r.Get("/deliveries", c.GetDeliveryHistory)
			r.Get("/deliveries/batches", c.GetDeliveryBatches)
			r.Post("/deliveries/batches/{batchKey}/payments", c.RecordBatchPayment)
		})
	})
	r.Post("/deliveries/revert", c.RevertDeliveryBatch)
}

func (c *LifecycleController) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	var req dto.PlaceOrderRequest
	if err := c.decode(w, r, &req); err != nil {
		c.fail(w, traceID, 0, err)
		return
	}

	lines := make([]dto.PlaceOrderLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = dto.PlaceOrderLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := c.useCase.PlaceOrder(r.Context(), commons.CleanText(req.UserID), lines)
	if err != nil {
		c.fail(w, traceID, 0, err)
		return
	}
	c.writeOrder(w, traceID, http.StatusCreated, order)
}

func (c *LifecycleController) GetOrder(w http.ResponseWriter, r *http.Request) {
	c.withOrder(w, r, func(orderID uint) (*domain.Order, error) {
		return c.useCase.GetOrder(r.Context(), orderID)
	})
}

func (c *LifecycleController) GetBalance(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	orderID, err := commons.PathID(r, "orderId")
	if err != nil {
		c.fail(w, traceID, 0, err)
		return
	}

	summary, err := c.useCase.GetBalance(r.Context(), orderID)
	if err != nil {
		c.fail(w, traceID, orderID, err)
		return
	}

	commons.WriteJSON(w, c.logger, http.StatusOK, dto.OrderBalanceResponse{
		TraceID:         traceID,
		OrderID:         orderID,
		BalanceResponse: dto.NewBalanceResponse(summary),
	})
}

func (c *LifecycleController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	c.withOrder(w, r, func(orderID uint) (*domain.Order, error) {
		var req dto.UpdateStatusRequest
		if err := c.decode(w, r, &req); err != nil {
			return nil, err
		}

		target, ok := domain.ParseOrderStatus(req.Status)
		if !ok {
			return nil, apperrors.NewValidationError("unknown status", apperrors.ValidationDetail{
				Field:   "status",
				Message: "status " + req.Status + " is not a known order status",
			})
		}

		change := dto.StatusChange{Target: target, Reason: commons.CleanText(req.Reason)}
		if req.Agent != nil {
			agent := cleanAgent(*req.Agent)
			change.Agent = &agent
		}
		return c.useCase.UpdateStatus(r.Context(), orderID, change)
	})
}

func (c *LifecycleController) ApproveRate(w http.ResponseWriter, r *http.Request) {
	c.withOrder(w, r, func(orderID uint) (*domain.Order, error) {
		return c.useCase.ApproveRate(r.Context(), orderID)
	})
}

func (c *LifecycleController) AssignAgent(w http.ResponseWriter, r *http.Request) {
	c.withOrder(w, r, func(orderID uint) (*domain.Order, error) {
		var req dto.AgentRequest
		if err := c.decode(w, r, &req); err != nil {
			return nil, err
		}
		return c.useCase.AssignAgent(r.Context(), orderID, cleanAgent(req))
	})
}

func (c *LifecycleController) AddAdjustment(w http.ResponseWriter, r *http.Request) {
	c.withOrder(w, r, func(orderID uint) (*domain.Order, error) {
		var req dto.AddAdjustmentRequest
		if err := c.decode(w, r, &req); err != nil {
			return nil, err
		}

		adjType, _ := domain.ParseAdjustmentType(req.Type)
		return c.useCase.AddAdjustment(r.Context(), orderID, dto.NewAdjustment{
			Type:        adjType,
			Description: commons.CleanText(req.Description),
			Amount:      req.Amount,
			BatchID:     req.BatchID,
		})
	})
}

func (c *LifecycleController) RemoveAdjustment(w http.ResponseWriter, r *http.Request) {
	c.withOrder(w, r, func(orderID uint) (*domain.Order, error) {
		return c.useCase.RemoveAdjustment(r.Context(), orderID, chi.URLParam(r, "adjustmentId"))
	})
}

func (c *LifecycleController) LockAdjustment(w http.ResponseWriter, r *http.Request) {
	c.withOrder(w, r, func(orderID uint) (*domain.Order, error) {
		return c.useCase.LockAdjustment(r.Context(), orderID, chi.URLParam(r, "adjustmentId"))
	})
}

func (c *LifecycleController) RecordDelivery(w http.ResponseWriter, r *http.Request) {
	c.withOrder(w, r, func(orderID uint) (*domain.Order, error) {
		var req dto.RecordDeliveryRequest
		if err := c.decode(w, r, &req); err != nil {
			return nil, err
		}

		lines := make([]dto.DeliveryLine, len(req.Deliveries))
		for i, d := range req.Deliveries {
			lines[i] = dto.DeliveryLine{ProductID: d.ProductID, Quantity: d.Quantity}
		}
		return c.useCase.RecordDelivery(r.Context(), orderID, lines)
	})
}

func (c *LifecycleController) RecordBatchPayment(w http.ResponseWriter, r *http.Request) {
	c.withOrder(w, r, func(orderID uint) (*domain.Order, error) {
		var req dto.BatchPaymentRequest
		if err := c.decode(w, r, &req); err != nil {
			return nil, err
		}
		return c.useCase.RecordBatchPayment(r.Context(), orderID, dto.BatchPayment{
			BatchKey: batchKeyParam(r),
			Amount:   req.Amount,
			Note:     commons.CleanText(req.Note),
		})
	})
}

func (c *LifecycleController) GetDeliveryHistory(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	orderID, err := commons.PathID(r, "orderId")
	if err != nil {
		c.fail(w, traceID, 0, err)
		return
	}

	records, err := c.useCase.GetDeliveryHistory(r.Context(), orderID)
	if err != nil {
		c.fail(w, traceID, orderID, err)
		return
	}

	commons.WriteJSON(w, c.logger, http.StatusOK, dto.DeliveryHistoryResponse{
		TraceID:    traceID,
		OrderID:    orderID,
		Deliveries: dto.NewDeliveryRecordResponses(records),
	})
}

func (c *LifecycleController) GetDeliveryBatches(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	orderID, err := commons.PathID(r, "orderId")
	if err != nil {
		c.fail(w, traceID, 0, err)
		return
	}

	batches, err := c.useCase.GetDeliveryBatches(r.Context(), orderID)
	if err != nil {
		c.fail(w, traceID, orderID, err)
		return
	}

	commons.WriteJSON(w, c.logger, http.StatusOK, dto.DeliveryBatchesResponse{
		TraceID: traceID,
		OrderID: orderID,
		Batches: dto.NewDeliveryBatchResponses(batches),
	})
}

func (c *LifecycleController) RevertDeliveryBatch(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	var req dto.RevertDeliveryBatchRequest
	if err := c.decode(w, r, &req); err != nil {
		c.fail(w, traceID, 0, err)
		return
	}

	order, err := c.useCase.RevertDeliveryBatch(r.Context(), dto.RevertBatch{
		DeliveryRecordIDs:     req.DeliveryRecordIDs,
		AdjustmentIDsToRemove: req.AdjustmentIDsToRemove,
	})
	if err != nil {
		c.fail(w, traceID, 0, err)
		return
	}
	c.writeOrder(w, traceID, http.StatusOK, order)
}

// withOrder handles the common shape of an order-scoped endpoint: parse the
// path id, run fn, render the resulting order.
func (c *LifecycleController) withOrder(w http.ResponseWriter, r *http.Request, fn func(orderID uint) (*domain.Order, error)) {
	traceID := commons.NewTraceID()

	orderID, err := commons.PathID(r, "orderId")
	if err != nil {
		c.fail(w, traceID, 0, err)
		return
	}

	order, err := fn(orderID)
	if err != nil {
		c.fail(w, traceID, orderID, err)
		return
	}
	c.writeOrder(w, traceID, http.StatusOK, order)
}

func (c *LifecycleController) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := commons.DecodeJSON(w, r, dst); err != nil {
		return err
	}
	return commons.ValidateStruct(dst)
}

func (c *LifecycleController) fail(w http.ResponseWriter, traceID string, orderID uint, err error) {
	if _, ok := apperrors.IsValidationError(err); ok {
		c.logger.Warn("request rejected", zap.String("traceId", traceID), zap.Uint("orderId", orderID), zap.Error(err))
	}
	commons.WriteError(w, c.logger, traceID, orderID, err)
}

func (c *LifecycleController) writeOrder(w http.ResponseWriter, traceID string, status int, order *domain.Order) {
	resp := dto.NewOrderResponse(order)
	resp.TraceID = traceID
	commons.WriteJSON(w, c.logger, status, resp)
}

// batchKeyParam unescapes the key since derived keys carry the agent name.
func batchKeyParam(r *http.Request) string {
	raw := chi.URLParam(r, "batchKey")
	if key, err := url.PathUnescape(raw); err == nil {
		return key
	}
	return raw
}

func cleanAgent(req dto.AgentRequest) domain.DeliveryAgent {
	return domain.DeliveryAgent{
		Name:        commons.CleanText(req.Name),
		Mobile:      commons.CleanText(req.Mobile),
		Description: commons.CleanText(req.Description),
		Address:     commons.CleanText(req.Address),
	}
}
