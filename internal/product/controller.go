package product

import (
	"net/http"

	"go.uber.org/zap"

	"orderflow/internal/commons"
)

type Controller struct {
	useCase SearchUseCase
	logger  *zap.Logger
}

func NewController(useCase SearchUseCase, logger *zap.Logger) *Controller {
	return &Controller{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *Controller) HandleSearchProducts(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	var req SearchProductsRequest
	if err := commons.DecodeJSON(w, r, &req); err != nil {
		commons.WriteError(w, c.logger, traceID, 0, err)
		return
	}

	if err := commons.ValidateStruct(req); err != nil {
		commons.WriteError(w, c.logger, traceID, 0, err)
		return
	}

	resp, err := c.useCase.SearchProducts(r.Context(), req)
	if err != nil {
		c.logger.Error("search products failed", zap.String("traceId", traceID), zap.Error(err))
		commons.WriteError(w, c.logger, traceID, 0, err)
		return
	}

	commons.WriteJSON(w, c.logger, http.StatusOK, resp)
}
