package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCostBasisAdd_WeightedAverage(t *testing.T) {
	cb := CostBasis{Direction: DirectionKey("USDT", "MYR"), AcquiredCurrency: "USDT", SpentCurrency: "MYR"}

	cb = cb.Add(dec("1000"), dec("4420"))
	assert.True(t, dec("4.42").Equal(cb.AverageCost))

	cb = cb.Add(dec("500"), dec("2265"))
	assert.True(t, dec("1500").Equal(cb.TotalAcquired))
	assert.True(t, dec("6685").Equal(cb.TotalSpent))
	assert.InDelta(t, 4.4567, cb.AverageCost.InexactFloat64(), 0.0001)
}

func TestCostBasisAdd_ZeroAcquiredGuard(t *testing.T) {
	cb := CostBasis{}.Add(decimal.Zero, dec("10"))
	assert.True(t, cb.AverageCost.IsZero())
	assert.False(t, cb.AverageCost.IsNegative())
}

func TestDebtFromBalance(t *testing.T) {
	_, ok := DebtFromBalance(Balance{Customer: "A", Currency: "MYR", Amount: dec("0.01")})
	assert.False(t, ok)

	d, ok := DebtFromBalance(Balance{Customer: "A", Currency: "MYR", Amount: dec("-50")})
	assert.True(t, ok)
	assert.Equal(t, CustomerOwesCompany, d.Direction)

	d, ok = DebtFromBalance(Balance{Customer: "A", Currency: "MYR", Amount: dec("12.5")})
	assert.True(t, ok)
	assert.Equal(t, CompanyOwesCustomer, d.Direction)
}
