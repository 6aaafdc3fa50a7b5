// Package settlement allocates lump customer payments across outstanding
// trades and keeps the company ledger mirrored.
package settlement

import (
	"fmt"
	"slices"
	"strings"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

type Command struct {
	Customer       string
	Currency       domain.Currency
	Amount         decimal.Decimal
	Direction      domain.Direction
	IdempotencyKey string
	// Operator scopes IdempotencyKey. Two operators may reuse the same key.
	Operator       string
}

// Normalize validates the command and rounds the amount to cents. It touches
// no state.
func (c Command) Normalize(company string) (Command, error) {
	c.Customer = strings.TrimSpace(c.Customer)
	if c.Customer == "" {
		return Command{}, fmt.Errorf("Normalize: customer: %w", domain.ErrInvalidRequest)
	}
	if strings.EqualFold(c.Customer, company) {
		return Command{}, fmt.Errorf("Normalize: %w", domain.ErrReservedCustomer)
	}
	if !c.Currency.IsValid() {
		return Command{}, fmt.Errorf("Normalize: %w", domain.ErrInvalidCurrency)
	}
	if _, err := domain.ParseDirection(string(c.Direction)); err != nil {
		return Command{}, fmt.Errorf("Normalize: %w", err)
	}
	c.Amount = domain.RoundMoney(c.Amount)
	if !c.Amount.IsPositive() {
		return Command{}, fmt.Errorf("Normalize: %w", domain.ErrInvalidAmount)
	}
	return c, nil
}

// Plan is the full, ordered list of mutations a command will make, computed
// before anything is written.
type Plan struct {
	Steps            []domain.Step
	OffsetTotal      decimal.Decimal
	EffectivePayment decimal.Decimal
	Residual         decimal.Decimal
	// Orders holds the projected state of every order a step touches.
	Orders map[string]domain.Transaction
}

// BuildPlan runs the hedge, quote-currency FIFO, base-currency FIFO and
// residual phases over copies of the outstanding orders. The input slice is
// not modified.
func BuildPlan(cmd Command, outstanding []domain.Transaction) (*Plan, error) {
	orders := slices.Clone(outstanding)
	slices.SortStableFunc(orders, func(a, b domain.Transaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.OrderID, b.OrderID)
	})

	p := &planner{
		cmd:    cmd,
		sign:   cmd.Direction.Sign(),
		orders: orders,
		plan:   &Plan{Orders: make(map[string]domain.Transaction)},
	}

	if err := p.hedge(); err != nil {
		return nil, fmt.Errorf("BuildPlan: %w", err)
	}
	p.plan.EffectivePayment = cmd.Amount.Add(p.plan.OffsetTotal)
	remaining := p.plan.EffectivePayment

	matching := cmd.Direction.MatchingKind()
	remaining, err := p.fifo(domain.PhaseQuoteFIFO, remaining, func(o *domain.Transaction) (bool, domain.Side) {
		return o.Kind == matching && o.QuoteCurrency == cmd.Currency, o.QuoteSide()
	})
	if err != nil {
		return nil, fmt.Errorf("BuildPlan: %w", err)
	}

	remaining, err = p.fifo(domain.PhaseBaseFIFO, remaining, func(o *domain.Transaction) (bool, domain.Side) {
		return o.Kind == matching.Opposite() && o.BaseCurrency == cmd.Currency, o.BaseSide()
	})
	if err != nil {
		return nil, fmt.Errorf("BuildPlan: %w", err)
	}

	if remaining.IsPositive() {
		p.add(domain.Step{
			Phase:         domain.PhaseResidual,
			Side:          domain.SideBalance,
			AmountApplied: remaining,
			BalanceDelta:  p.sign.Mul(remaining),
		})
	}
	p.plan.Residual = remaining
	return p.plan, nil
}

type planner struct {
	cmd    Command
	sign   decimal.Decimal
	orders []domain.Transaction
	plan   *Plan
}

func (p *planner) add(s domain.Step) {
	s.Seq = len(p.plan.Steps) + 1
	s.Currency = p.cmd.Currency
	p.plan.Steps = append(p.plan.Steps, s)
}

// hedge closes the payer's own outstanding leg on opposite-kind orders quoted
// in the payment currency, accumulating the amount covered as the offset.
func (p *planner) hedge() error {
	opposite := p.cmd.Direction.MatchingKind().Opposite()
	for i := range p.orders {
		o := &p.orders[i]
		if o.Kind != opposite || o.QuoteCurrency != p.cmd.Currency || !o.Status.Outstanding() {
			continue
		}
		side := o.QuoteSide()
		expected, err := o.Expected(side)
		if err != nil {
			return fmt.Errorf("hedge %s: %w", o.OrderID, err)
		}
		before := o.Settled(side)
		remain := expected.Sub(before)
		if !remain.IsPositive() {
			continue
		}
		if err := p.move(o, side, expected); err != nil {
			return fmt.Errorf("hedge %s: %w", o.OrderID, err)
		}
		p.plan.OffsetTotal = p.plan.OffsetTotal.Add(remain)
		p.add(domain.Step{
			Phase:         domain.PhaseHedge,
			OrderID:       o.OrderID,
			Side:          side,
			AmountApplied: remain,
			BalanceDelta:  p.sign.Neg().Mul(remain),
			SettledBefore: before,
			SettledAfter:  expected,
			NewStatus:     o.Status,
		})
	}
	return nil
}

// fifo applies payment oldest-first to the selected leg of each eligible
// order until the payment is exhausted and returns what is left.
func (p *planner) fifo(phase domain.Phase, payment decimal.Decimal, eligible func(*domain.Transaction) (bool, domain.Side)) (decimal.Decimal, error) {
	for i := range p.orders {
		if !payment.IsPositive() {
			break
		}
		o := &p.orders[i]
		ok, side := eligible(o)
		if !ok || !o.Status.Outstanding() {
			continue
		}
		expected, err := o.Expected(side)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s %s: %w", phase, o.OrderID, err)
		}
		before := o.Settled(side)
		deficit := domain.RoundMoney(expected.Sub(before))
		if !deficit.IsPositive() {
			continue
		}
		applied := decimal.Min(payment, deficit)
		after := domain.RoundMoney(before.Add(applied))
		if err := p.move(o, side, after); err != nil {
			return decimal.Zero, fmt.Errorf("%s %s: %w", phase, o.OrderID, err)
		}
		p.add(domain.Step{
			Phase:         phase,
			OrderID:       o.OrderID,
			Side:          side,
			AmountApplied: applied,
			BalanceDelta:  p.sign.Mul(applied),
			SettledBefore: before,
			SettledAfter:  after,
			NewStatus:     o.Status,
		})
		payment = domain.RoundMoney(payment.Sub(applied))
	}
	return payment, nil
}

func (p *planner) move(o *domain.Transaction, side domain.Side, to decimal.Decimal) error {
	o.SetSettled(side, to)
	status, err := o.ComputeStatus()
	if err != nil {
		return err
	}
	o.Status = status
	p.plan.Orders[o.OrderID] = *o
	return nil
}
