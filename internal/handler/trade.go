package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/service"
)

type tradeService interface {
	CreateTrade(ctx context.Context, req service.CreateTradeRequest) (*service.TradeResult, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, orderID string) (*domain.Transaction, error)
	ListCustomerTransactions(ctx context.Context, customer string, limit int) ([]domain.Transaction, error)
}

type TradeHandler struct {
	trades tradeService
}

func NewTradeHandler(trades tradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

type createTradeRequest struct {
	Customer string        `json:"customer"`
	Action   string        `json:"action"`
	Amount   numericString `json:"amount"`
	Base     string        `json:"base_currency"`
	Operator string        `json:"operator"`
	Rate     numericString `json:"rate"`
	Quote    string        `json:"quote_currency"`
}

// parse validates every field and reports all failures at once.
func (r createTradeRequest) parse() (service.CreateTradeRequest, []FieldError) {
	var (
		out  service.CreateTradeRequest
		errs []FieldError
		err  error
	)

	out.Customer = strings.TrimSpace(r.Customer)
	if out.Customer == "" {
		errs = append(errs, FieldError{Field: "customer", Message: "required"})
	}

	if out.Action, err = domain.ParseAction(strings.ToLower(strings.TrimSpace(r.Action))); err != nil {
		errs = append(errs, FieldError{Field: "action", Message: "must be buy or sell"})
	}

	if out.Amount, err = domain.ParseAmount(string(r.Amount)); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive number"})
	}

	if out.Base, err = domain.ParseCurrency(r.Base); err != nil {
		errs = append(errs, FieldError{Field: "base_currency", Message: "must be a 3 or 4 letter code"})
	}
	if out.Quote, err = domain.ParseCurrency(r.Quote); err != nil {
		errs = append(errs, FieldError{Field: "quote_currency", Message: "must be a 3 or 4 letter code"})
	}

	out.Operator = domain.Operator(strings.TrimSpace(r.Operator))
	if !out.Operator.IsValid() {
		errs = append(errs, FieldError{Field: "operator", Message: "must be * or /"})
	}

	rate, err := decimal.NewFromString(strings.TrimSpace(string(r.Rate)))
	if err != nil || !domain.ValidRate(rate) {
		errs = append(errs, FieldError{Field: "rate", Message: "must be greater than 0 with at most 8 decimals"})
	}
	out.Rate = rate

	return out, errs
}

func (h *TradeHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var body createTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	req, fields := body.parse()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	res, err := h.trades.CreateTrade(r.Context(), req)
	if err != nil {
		log.Warn("trade creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/trades/%s", res.Transaction.OrderID))
	RespondSuccess(w, http.StatusCreated, toTradeResultDTO(res))
}

func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.trades.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTO(t))
}

func (h *TradeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	t, err := h.trades.CancelOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		logging.FromContext(r.Context()).Warn("order cancellation failed", "error", err, "order_id", r.PathValue("id"))
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTO(t))
}

func (h *TradeHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be a positive integer"}})
			return
		}
		limit = n
	}

	list, err := h.trades.ListCustomerTransactions(r.Context(), r.PathValue("customer"), limit)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]transactionDTO, len(list))
	for i := range list {
		out[i] = toTransactionDTO(&list[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}
