package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Operator role does not allow this action"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount    = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be a positive number with at most two decimals"}
	ErrInvalidRate      = &AppError{http.StatusBadRequest, "INVALID_RATE", "Rate must be greater than zero with at most 8 decimals"}
	ErrInvalidCurrency  = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Currency must be a 3 or 4 letter code"}
	ErrInvalidOperator  = &AppError{http.StatusBadRequest, "INVALID_OPERATOR", "Operator must be * or /"}
	ErrInvalidAction    = &AppError{http.StatusBadRequest, "INVALID_ACTION", "Action must be buy or sell"}
	ErrInvalidDirection = &AppError{http.StatusBadRequest, "INVALID_DIRECTION", "Direction must be inbound or outbound"}
	ErrInvalidDateRange = &AppError{http.StatusBadRequest, "INVALID_DATE_RANGE", "Date range must be DD/MM/YYYY or DD/MM/YYYY-DD/MM/YYYY"}
	ErrReservedCustomer = &AppError{http.StatusBadRequest, "RESERVED_CUSTOMER", "The company account cannot be used as a customer"}
	ErrSameCurrency     = &AppError{http.StatusBadRequest, "SAME_CURRENCY", "Base and quote currency must differ"}
	ErrOrderNotFound    = &AppError{http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found"}
	ErrPaymentNotFound  = &AppError{http.StatusNotFound, "PAYMENT_NOT_FOUND", "Payment not found"}
	ErrAlreadyCanceled  = &AppError{http.StatusConflict, "ALREADY_CANCELED", "Record is already canceled"}
	ErrNotPayment       = &AppError{http.StatusConflict, "NOT_A_PAYMENT", "Record is not a payment"}
	ErrNotTrade         = &AppError{http.StatusConflict, "NOT_A_TRADE", "Record is not a trade"}
	ErrArithmetic       = &AppError{http.StatusUnprocessableEntity, "ARITHMETIC_ERROR", "Calculation is undefined for the current data"}
	ErrPersistence      = &AppError{http.StatusServiceUnavailable, "PARTIALLY_APPLIED", "Settlement was interrupted; retry with the same Idempotency-Key to resume"}
	ErrVersionConflict  = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
)
