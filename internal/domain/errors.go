package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrOrderNotFound       = errors.Join(errors.New("order not found"), ErrNotFound)
	ErrPaymentNotFound     = errors.Join(errors.New("payment record not found"), ErrNotFound)
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidRate         = errors.New("rate must be greater than zero")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrInvalidOperator     = errors.New("operator must be * or /")
	ErrInvalidAction       = errors.New("action must be buy or sell")
	ErrInvalidDirection    = errors.New("direction must be inbound or outbound")
	ErrInvalidDateRange    = errors.New("date range must be DD/MM/YYYY or DD/MM/YYYY-DD/MM/YYYY")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrReservedCustomer    = errors.New("customer name is reserved")
	ErrSameCurrency        = errors.New("base and quote currency must differ")
	ErrAlreadyCanceled     = errors.New("record already canceled")
	ErrNotPayment          = errors.New("record is not a payment")
	ErrNotTrade            = errors.New("record is not a trade")
	ErrIdempotencyConflict = errors.New("idempotency key already used with different parameters")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
	ErrArithmetic          = errors.New("arithmetic error")
	ErrPersistence         = errors.New("persistence failure")
)
