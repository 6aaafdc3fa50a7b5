package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
)

type ledgerService interface {
	GetBalance(ctx context.Context, customer string, currency domain.Currency) (*domain.Balance, error)
	ListBalances(ctx context.Context, customer string) ([]domain.Balance, error)
	ListDebts(ctx context.Context, customer string) ([]domain.Debt, error)
	Adjust(ctx context.Context, customer string, currency domain.Currency, amount decimal.Decimal, note string) (*domain.Adjustment, decimal.Decimal, error)
	ListAdjustments(ctx context.Context, customer string) ([]domain.Adjustment, error)
	AddExpense(ctx context.Context, amount decimal.Decimal, currency domain.Currency, purpose string) (*domain.Expense, error)
	ListExpenses(ctx context.Context, window domain.DateRange) ([]domain.Expense, error)
	PurgeCustomer(ctx context.Context, customer string) (domain.PurgeResult, error)
}

type LedgerHandler struct {
	ledger ledgerService
	now    func() time.Time
}

func NewLedgerHandler(ledger ledgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, now: time.Now}
}

func (h *LedgerHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.ListBalances(r.Context(), r.PathValue("customer"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	out := make([]balanceDTO, len(list))
	for i, b := range list {
		out[i] = toBalanceDTO(b)
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	currency, err := domain.ParseCurrency(r.PathValue("currency"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	b, err := h.ledger.GetBalance(r.Context(), r.PathValue("customer"), currency)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toBalanceDTO(*b))
}

func (h *LedgerHandler) ListDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := h.ledger.ListDebts(r.Context(), strings.TrimSpace(r.URL.Query().Get("customer")))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	out := make([]debtDTO, len(debts))
	for i, d := range debts {
		out[i] = debtDTO{Customer: d.Customer, Currency: string(d.Currency), Amount: d.Amount, Direction: string(d.Direction)}
	}
	RespondSuccess(w, http.StatusOK, out)
}

type adjustRequest struct {
	Customer string        `json:"customer"`
	Currency string        `json:"currency"`
	Amount   numericString `json:"amount"`
	Note     string        `json:"note"`
}

func (h *LedgerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var body adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var fields []FieldError
	if strings.TrimSpace(body.Customer) == "" {
		fields = append(fields, FieldError{Field: "customer", Message: "required"})
	}
	currency, err := domain.ParseCurrency(body.Currency)
	if err != nil {
		fields = append(fields, FieldError{Field: "currency", Message: "must be a 3 or 4 letter code"})
	}
	// adjustments may be negative
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(string(body.Amount)), ",", ""))
	if err != nil || domain.RoundMoney(amount).IsZero() {
		fields = append(fields, FieldError{Field: "amount", Message: "must be a non-zero number"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	adj, balance, err := h.ledger.Adjust(r.Context(), body.Customer, currency, amount, body.Note)
	if err != nil {
		logging.FromContext(r.Context()).Warn("adjustment failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, map[string]any{
		"adjustment": toAdjustmentDTO(adj),
		"balance":    balance,
	})
}

func (h *LedgerHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.ListAdjustments(r.Context(), r.PathValue("customer"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	out := make([]adjustmentDTO, len(list))
	for i := range list {
		out[i] = toAdjustmentDTO(&list[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

type expenseRequest struct {
	Amount   numericString `json:"amount"`
	Currency string        `json:"currency"`
	Purpose  string        `json:"purpose"`
}

func (h *LedgerHandler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var body expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var fields []FieldError
	amount, err := domain.ParseAmount(string(body.Amount))
	if err != nil {
		fields = append(fields, FieldError{Field: "amount", Message: "must be a positive number"})
	}
	currency, err := domain.ParseCurrency(body.Currency)
	if err != nil {
		fields = append(fields, FieldError{Field: "currency", Message: "must be a 3 or 4 letter code"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	e, err := h.ledger.AddExpense(r.Context(), amount, currency, body.Purpose)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toExpenseDTO(e))
}

func (h *LedgerHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	window, err := domain.ParseDateRange(r.URL.Query().Get("range"), h.now())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	list, err := h.ledger.ListExpenses(r.Context(), window)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	out := make([]expenseDTO, len(list))
	for i := range list {
		out[i] = toExpenseDTO(&list[i])
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"window":   windowDTO{Start: window.Start, End: window.End},
		"expenses": out,
	})
}

func (h *LedgerHandler) PurgeCustomer(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.PurgeCustomer(r.Context(), r.PathValue("customer"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]int64{
		"balances":        res.Balances,
		"transactions":    res.Transactions,
		"adjustments":     res.Adjustments,
		"settlement_runs": res.SettlementRuns,
	})
}
