package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CostBasis is the cumulative weighted-average cost of acquiring one tracked
// currency by spending the other.
type CostBasis struct {
	Direction        string
	AcquiredCurrency Currency
	SpentCurrency    Currency
	TotalAcquired    decimal.Decimal
	TotalSpent       decimal.Decimal
	AverageCost      decimal.Decimal
	UpdatedAt        time.Time
}

// DirectionKey names the accumulator that acquires one currency by spending
// another, e.g. "acquire-USDT-spend-MYR".
func DirectionKey(acquired, spent Currency) string {
	return fmt.Sprintf("acquire-%s-spend-%s", acquired, spent)
}

const averageCostPlaces = 10

// Add folds one qualifying trade into the accumulator. The average is zero
// whenever nothing has been acquired.
func (c CostBasis) Add(acquired, spent decimal.Decimal) CostBasis {
	c.TotalAcquired = c.TotalAcquired.Add(acquired)
	c.TotalSpent = c.TotalSpent.Add(spent)
	if c.TotalAcquired.IsPositive() {
		c.AverageCost = c.TotalSpent.DivRound(c.TotalAcquired, averageCostPlaces)
		if c.AverageCost.IsNegative() {
			c.AverageCost = decimal.Zero
		}
	} else {
		c.AverageCost = decimal.Zero
	}
	return c
}
