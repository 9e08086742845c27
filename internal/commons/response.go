package commons

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orderflow/internal/dto"
	apperrors "orderflow/internal/errors"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeDeadlock   = "DEADLOCK"
	CodeInternal   = "INTERNAL_ERROR"
)

// NewTraceID returns the id echoed to clients and attached to log lines.
func NewTraceID() string {
	return uuid.New().String()
}

func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// StatusFor maps an error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	if de, ok := apperrors.IsDomainError(err); ok {
		switch de.Kind {
		case apperrors.KindOverDelivery, apperrors.KindIncompleteDelivery:
			return http.StatusUnprocessableEntity, string(de.Kind)
		case apperrors.KindAdjustmentNotFound:
			return http.StatusNotFound, string(de.Kind)
		default:
			return http.StatusConflict, string(de.Kind)
		}
	}
	if _, ok := apperrors.IsValidationError(err); ok {
		return http.StatusBadRequest, CodeValidation
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return http.StatusNotFound, CodeNotFound
	}
	if _, ok := apperrors.IsDeadlockError(err); ok {
		return http.StatusConflict, CodeDeadlock
	}
	if _, ok := apperrors.IsConflictError(err); ok {
		return http.StatusConflict, CodeConflict
	}
	return http.StatusInternalServerError, CodeInternal
}

// WriteError renders err as an ErrorResponse. Internal errors are logged and
// their message is replaced so driver details never reach the client.
func WriteError(w http.ResponseWriter, logger *zap.Logger, traceID string, orderID uint, err error) {
	status, code := StatusFor(err)

	resp := dto.ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Code:      code,
		Message:   err.Error(),
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
	}
	if ve, ok := apperrors.IsValidationError(err); ok {
		resp.Details = ve.Details
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("traceId", traceID), zap.Uint("orderId", orderID), zap.Error(err))
		resp.Message = "an unexpected error occurred"
	}

	WriteJSON(w, logger, status, resp)
}
