package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// domainErrors is checked in order; wrapped sentinels must precede the ones
// they wrap.
var domainErrors = []struct {
	err    error
	appErr *AppError
}{
	{domain.ErrPersistence, ErrPersistence},
	{domain.ErrOrderNotFound, ErrOrderNotFound},
	{domain.ErrPaymentNotFound, ErrPaymentNotFound},
	{domain.ErrNotFound, ErrResourceNotFound},
	{domain.ErrInvalidAmount, ErrInvalidAmount},
	{domain.ErrInvalidRate, ErrInvalidRate},
	{domain.ErrInvalidCurrency, ErrInvalidCurrency},
	{domain.ErrInvalidOperator, ErrInvalidOperator},
	{domain.ErrInvalidAction, ErrInvalidAction},
	{domain.ErrInvalidDirection, ErrInvalidDirection},
	{domain.ErrInvalidDateRange, ErrInvalidDateRange},
	{domain.ErrReservedCustomer, ErrReservedCustomer},
	{domain.ErrSameCurrency, ErrSameCurrency},
	{domain.ErrInvalidRequest, ErrInvalidRequest},
	{domain.ErrAlreadyCanceled, ErrAlreadyCanceled},
	{domain.ErrNotPayment, ErrNotPayment},
	{domain.ErrNotTrade, ErrNotTrade},
	{domain.ErrIdempotencyConflict, ErrIdempotencyConflict},
	{domain.ErrVersionConflict, ErrVersionConflict},
	{domain.ErrArithmetic, ErrArithmetic},
}

func appErrorFor(err error) *AppError {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.appErr
		}
	}
	return nil
}

func RespondDomainError(w http.ResponseWriter, err error) {
	appErr := appErrorFor(err)
	if appErr == nil {
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}
	RespondAppError(w, appErr, nil)
}
