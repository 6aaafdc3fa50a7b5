package pnl

import (
	"fmt"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

// AverageCostConverter converts through the weighted-average accumulators.
// A cost in Y becomes a cost in X by dividing by the average price of X paid
// in Y, i.e. the accumulator acquiring X and spending Y.
type AverageCostConverter map[string]domain.CostBasis

func NewAverageCostConverter(snapshot []domain.CostBasis) AverageCostConverter {
	c := make(AverageCostConverter, len(snapshot))
	for _, cb := range snapshot {
		c[cb.Direction] = cb
	}
	return c
}

func (c AverageCostConverter) Convert(amount decimal.Decimal, from, to domain.Currency) (decimal.Decimal, bool, error) {
	if from == to {
		return amount, true, nil
	}
	cb, ok := c[domain.DirectionKey(to, from)]
	if !ok {
		return decimal.Zero, false, nil
	}
	if !cb.AverageCost.IsPositive() {
		return decimal.Zero, false, fmt.Errorf("Convert: no average cost for %s: %w", cb.Direction, domain.ErrArithmetic)
	}
	return amount.DivRound(cb.AverageCost, 10), true, nil
}
