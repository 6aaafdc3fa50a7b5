package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is who pays in a settlement command: inbound when the customer
// pays the company, outbound when the company pays the customer.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Inbound, Outbound:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("ParseDirection %q: %w", s, ErrInvalidDirection)
	}
}

// Sign is +1 for inbound and -1 for outbound.
func (d Direction) Sign() decimal.Decimal {
	if d == Outbound {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// MatchingKind is the trade kind whose quote leg the payer owes: buys when the
// customer pays, sells when the company pays.
func (d Direction) MatchingKind() TradeKind {
	if d == Outbound {
		return KindSell
	}
	return KindBuy
}

func (d Direction) PaymentKind() PaymentKind {
	if d == Outbound {
		return PaymentKindCompany
	}
	return PaymentKindCustomer
}

func (d Direction) PaymentIDPrefix() string {
	if d == Outbound {
		return "PAY-P"
	}
	return "PAY-R"
}

type Phase string

const (
	PhaseHedge     Phase = "hedge"
	PhaseQuoteFIFO Phase = "quote_fifo"
	PhaseBaseFIFO  Phase = "base_fifo"
	PhaseResidual  Phase = "residual"
)

// Step is one planned mutation of a settlement run. Order steps move one leg
// of one order; the residual step only touches balances.
type Step struct {
	Seq           int
	Phase         Phase
	OrderID       string
	Side          Side
	Currency      Currency
	AmountApplied decimal.Decimal
	BalanceDelta  decimal.Decimal
	SettledBefore decimal.Decimal
	SettledAfter  decimal.Decimal
	NewStatus     Status
	Applied       bool
	AppliedAt     *time.Time
}

// TraceEntry is the audit view of an applied step. For the residual step
// CumulativeAfter is the customer's balance once the residual has landed.
type TraceEntry struct {
	OrderID         string          `json:"order_id"`
	Phase           Phase           `json:"phase"`
	Side            Side            `json:"side"`
	Currency        Currency        `json:"currency"`
	AmountApplied   decimal.Decimal `json:"amount_applied"`
	CumulativeAfter decimal.Decimal `json:"cumulative_after"`
	NewStatus       Status          `json:"new_status,omitempty"`
}

func (s Step) Trace() TraceEntry {
	return TraceEntry{
		OrderID:         s.OrderID,
		Phase:           s.Phase,
		Side:            s.Side,
		Currency:        s.Currency,
		AmountApplied:   s.AmountApplied,
		CumulativeAfter: s.SettledAfter,
		NewStatus:       s.NewStatus,
	}
}

type RunStatus string

const (
	RunPlanned   RunStatus = "planned"
	RunCompleted RunStatus = "completed"
)

type SettlementRun struct {
	ID             uuid.UUID
	IdempotencyKey *string
	Operator       string
	Customer       string
	Currency       Currency
	Direction      Direction
	Amount         decimal.Decimal
	OffsetTotal    decimal.Decimal
	Residual       decimal.Decimal
	Status         RunStatus
	PaymentID      *string
	CreatedAt      time.Time
	CompletedAt    *time.Time
	Steps          []Step
}

func (r *SettlementRun) Trace() []TraceEntry {
	out := make([]TraceEntry, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Applied {
			out = append(out, s.Trace())
		}
	}
	return out
}

// SameCommand reports whether a stored run was created for the given command.
func (r *SettlementRun) SameCommand(customer string, currency Currency, amount decimal.Decimal, dir Direction) bool {
	return r.Customer == customer && r.Currency == currency && r.Amount.Equal(amount) && r.Direction == dir
}
