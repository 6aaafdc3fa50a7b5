package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TradeKind string

const (
	KindBuy     TradeKind = "buy"
	KindSell    TradeKind = "sell"
	KindPayment TradeKind = "payment"
)

func ParseAction(s string) (TradeKind, error) {
	switch TradeKind(s) {
	case KindBuy, KindSell:
		return TradeKind(s), nil
	default:
		return "", fmt.Errorf("ParseAction %q: %w", s, ErrInvalidAction)
	}
}

// Opposite returns the complementary trade kind. Payments have none.
func (k TradeKind) Opposite() TradeKind {
	switch k {
	case KindBuy:
		return KindSell
	case KindSell:
		return KindBuy
	default:
		return k
	}
}

type PaymentKind string

const (
	PaymentKindNone     PaymentKind = ""
	PaymentKindCustomer PaymentKind = "customer_payment"
	PaymentKindCompany  PaymentKind = "company_payment"
)

type Operator string

const (
	OperatorMultiply Operator = "*"
	OperatorDivide   Operator = "/"
)

func (o Operator) IsValid() bool {
	return o == OperatorMultiply || o == OperatorDivide
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusPartial  Status = "partial"
	StatusSettled  Status = "settled"
	StatusCanceled Status = "canceled"
)

func (s Status) Outstanding() bool {
	return s == StatusPending || s == StatusPartial
}

// Side names one leg of a trade. SideBalance marks residual credits that touch
// no order.
type Side string

const (
	SideIn      Side = "settled_in"
	SideOut     Side = "settled_out"
	SideBalance Side = "balance"
)

// QuoteAmount derives the quote-side amount of a trade, rounded half-up to cents.
func QuoteAmount(amount, rate decimal.Decimal, op Operator) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("QuoteAmount: rate %s: %w", rate, ErrArithmetic)
	}
	switch op {
	case OperatorDivide:
		return amount.DivRound(rate, 2), nil
	case OperatorMultiply:
		return RoundMoney(amount.Mul(rate)), nil
	default:
		return decimal.Zero, fmt.Errorf("QuoteAmount: %w", ErrInvalidOperator)
	}
}

type Transaction struct {
	OrderID       string
	Customer      string
	Kind          TradeKind
	PaymentKind   PaymentKind
	BaseCurrency  Currency
	QuoteCurrency Currency
	Amount        decimal.Decimal
	Rate          decimal.Decimal
	Operator      Operator
	Status        Status
	SettledIn     decimal.Decimal
	SettledOut    decimal.Decimal
	CreatedAt     time.Time
	CanceledAt    *time.Time
}

func (t *Transaction) IsTrade() bool {
	return t.Kind == KindBuy || t.Kind == KindSell
}

func (t *Transaction) ExpectedQuote() (decimal.Decimal, error) {
	return QuoteAmount(t.Amount, t.Rate, t.Operator)
}

// QuoteSide is the leg denominated in the quote currency: the customer pays it
// on a buy and the company pays it on a sell.
func (t *Transaction) QuoteSide() Side {
	if t.Kind == KindSell {
		return SideOut
	}
	return SideIn
}

func (t *Transaction) BaseSide() Side {
	if t.Kind == KindSell {
		return SideIn
	}
	return SideOut
}

// Expected returns the full obligation of one leg.
func (t *Transaction) Expected(side Side) (decimal.Decimal, error) {
	if side == t.QuoteSide() {
		return t.ExpectedQuote()
	}
	return RoundMoney(t.Amount), nil
}

func (t *Transaction) Settled(side Side) decimal.Decimal {
	if side == SideOut {
		return t.SettledOut
	}
	return t.SettledIn
}

func (t *Transaction) SetSettled(side Side, v decimal.Decimal) {
	if side == SideOut {
		t.SettledOut = v
		return
	}
	t.SettledIn = v
}

// IsFullySettled reports whether both legs reached their expected amounts
// within one cent.
func (t *Transaction) IsFullySettled() (bool, error) {
	for _, side := range []Side{SideIn, SideOut} {
		expected, err := t.Expected(side)
		if err != nil {
			return false, fmt.Errorf("IsFullySettled: %w", err)
		}
		if t.Settled(side).LessThan(expected.Sub(settleTolerance)) {
			return false, nil
		}
	}
	return true, nil
}

// ComputeStatus is the pure status rule applied after every settlement
// mutation. Canceled records and payments keep their stored status.
func (t *Transaction) ComputeStatus() (Status, error) {
	if t.Status == StatusCanceled || !t.IsTrade() {
		return t.Status, nil
	}
	full, err := t.IsFullySettled()
	if err != nil {
		return "", fmt.Errorf("ComputeStatus: %w", err)
	}
	switch {
	case full:
		return StatusSettled, nil
	case !t.SettledIn.IsZero() || !t.SettledOut.IsZero():
		return StatusPartial, nil
	default:
		return StatusPending, nil
	}
}

// CreationEffect is the ledger delta a trade applies to its customer when it is
// recorded: buy credits the base and debits the quote, sell the reverse.
type CreationEffect struct {
	Base  decimal.Decimal
	Quote decimal.Decimal
}

func (t *Transaction) CreationEffect() (CreationEffect, error) {
	quote, err := t.ExpectedQuote()
	if err != nil {
		return CreationEffect{}, fmt.Errorf("CreationEffect: %w", err)
	}
	amount := RoundMoney(t.Amount)
	if t.Kind == KindSell {
		return CreationEffect{Base: amount.Neg(), Quote: quote}, nil
	}
	return CreationEffect{Base: amount, Quote: quote.Neg()}, nil
}

// PaymentCurrency is the currency a payment record moved.
func (t *Transaction) PaymentCurrency() Currency {
	if t.PaymentKind == PaymentKindCompany {
		return t.BaseCurrency
	}
	return t.QuoteCurrency
}
