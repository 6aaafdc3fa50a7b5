package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/josh-kwaku/fx-settlement/internal/auth"
	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/settlement"
)

type settlementService interface {
	Settle(ctx context.Context, cmd settlement.Command) (*domain.SettlementRun, error)
	CancelPayment(ctx context.Context, paymentID string) (*domain.Transaction, error)
	GetRun(ctx context.Context, id uuid.UUID) (*domain.SettlementRun, error)
	GetRunByPayment(ctx context.Context, paymentID string) (*domain.SettlementRun, error)
}

type SettlementHandler struct {
	settlements settlementService
}

func NewSettlementHandler(settlements settlementService) *SettlementHandler {
	return &SettlementHandler{settlements: settlements}
}

type settleRequest struct {
	Customer string        `json:"customer"`
	Amount   numericString `json:"amount"`
	Currency string        `json:"currency"`
}

func (r settleRequest) command(dir domain.Direction, key string) (settlement.Command, []FieldError) {
	var errs []FieldError
	cmd := settlement.Command{
		Customer:       strings.TrimSpace(r.Customer),
		Direction:      dir,
		IdempotencyKey: key,
	}

	if cmd.Customer == "" {
		errs = append(errs, FieldError{Field: "customer", Message: "required"})
	}

	amount, err := domain.ParseAmount(string(r.Amount))
	if err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive number"})
	}
	cmd.Amount = amount

	currency, err := domain.ParseCurrency(r.Currency)
	if err != nil {
		errs = append(errs, FieldError{Field: "currency", Message: "must be a 3 or 4 letter code"})
	}
	cmd.Currency = currency

	return cmd, errs
}

// Received settles a payment from the customer to the company.
func (h *SettlementHandler) Received(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, domain.Inbound)
}

// Paid settles a payment from the company to the customer.
func (h *SettlementHandler) Paid(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, domain.Outbound)
}

func (h *SettlementHandler) settle(w http.ResponseWriter, r *http.Request, dir domain.Direction) {
	log := logging.FromContext(r.Context())

	var body settleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	cmd, fields := body.command(dir, r.Header.Get("Idempotency-Key"))
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	if claims, ok := auth.OperatorFromContext(r.Context()); ok {
		cmd.Operator = claims.Operator
	}

	run, err := h.settlements.Settle(r.Context(), cmd)
	if err != nil {
		log.Warn("settlement failed", "error", err, "direction", dir)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/settlements/%s", run.ID))
	RespondSuccess(w, http.StatusCreated, toRunDTO(run))
}

func (h *SettlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	run, err := h.settlements.GetRun(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toRunDTO(run))
}

func (h *SettlementHandler) GetByPayment(w http.ResponseWriter, r *http.Request) {
	run, err := h.settlements.GetRunByPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toRunDTO(run))
}

func (h *SettlementHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.settlements.CancelPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment cancellation failed", "error", err, "payment_id", r.PathValue("id"))
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTO(p))
}
