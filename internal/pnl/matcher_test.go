package pnl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
)

const (
	usdt domain.Currency = "USDT"
	myr  domain.Currency = "MYR"
)

var tracked = []domain.Currency{usdt, myr}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s got %s", want, got)
}

var t0 = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

func lot(id string, quote domain.Currency, amount, cost string, minute int) Lot {
	return Lot{OrderID: id, Quote: quote, Amount: dec(amount), Cost: dec(cost), CreatedAt: t0.Add(time.Duration(minute) * time.Minute)}
}

func demand(id string, quote domain.Currency, amount, revenue string) Demand {
	return Demand{OrderID: id, Customer: "A", Base: "X", Quote: quote, Amount: dec(amount), Revenue: dec(revenue), CreatedAt: t0}
}

func TestMatch_TwoSellsFundOneBuy(t *testing.T) {
	lots := []Lot{
		lot("S1", usdt, "600", "2650", 1),
		lot("S2", usdt, "400", "1770", 2),
	}
	rows, err := Match([]Demand{demand("B1", usdt, "1000", "4420")}, lots, AverageCostConverter{}, tracked)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assertDec(t, "4420", r.Cost(usdt))
	assertDec(t, "0", r.ProfitIn(usdt))
	assertDec(t, "0", r.ProfitIn(myr))
	assertDec(t, "0", r.Unmatched)
	assert.Equal(t, []string{"S1", "S2"}, r.MatchedSell)
}

func TestMatch_ProportionalCostAndSharedPool(t *testing.T) {
	lots := []Lot{lot("S1", usdt, "1000", "300", 1)}
	demands := []Demand{
		demand("B1", usdt, "250", "100"),
		demand("B2", usdt, "1000", "400"),
	}
	rows, err := Match(demands, lots, AverageCostConverter{}, tracked)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assertDec(t, "75", rows[0].Cost(usdt))
	assertDec(t, "25", rows[0].ProfitIn(usdt))

	assertDec(t, "225", rows[1].Cost(usdt))
	assertDec(t, "175", rows[1].ProfitIn(usdt))
	assertDec(t, "250", rows[1].Unmatched)
	assert.Equal(t, []string{"S1"}, rows[1].MatchedSell)
}

func TestMatch_ExhaustedPoolLeavesFullRevenue(t *testing.T) {
	lots := []Lot{lot("S1", usdt, "100", "50", 1)}
	demands := []Demand{
		demand("B1", usdt, "100", "60"),
		demand("B2", usdt, "100", "70"),
	}
	rows, err := Match(demands, lots, AverageCostConverter{}, tracked)
	require.NoError(t, err)

	assertDec(t, "10", rows[0].ProfitIn(usdt))
	assert.Empty(t, rows[1].MatchedSell)
	assertDec(t, "70", rows[1].ProfitIn(usdt))
	assertDec(t, "100", rows[1].Unmatched)
}

func TestMatch_CrossCurrencyAttributesToBuyQuoteOnly(t *testing.T) {
	conv := NewAverageCostConverter([]domain.CostBasis{
		{Direction: domain.DirectionKey(usdt, myr), AverageCost: dec("4.4")},
		{Direction: domain.DirectionKey(myr, usdt), AverageCost: dec("0.25")},
	})
	lots := []Lot{
		lot("S1", myr, "100", "440", 1),
		lot("S2", usdt, "100", "90", 2),
	}
	rows, err := Match([]Demand{demand("B1", usdt, "200", "250")}, lots, conv, tracked)
	require.NoError(t, err)

	r := rows[0]
	// 440 MYR / 4.4 = 100 USDT, plus 90 USDT
	assertDec(t, "190", r.Cost(usdt))
	assertDec(t, "0", r.Cost(myr))
	assertDec(t, "60", r.ProfitIn(usdt))
	assertDec(t, "0", r.ProfitIn(myr))
	assert.Empty(t, r.Unconverted)
}

func TestMatch_ZeroAverageIsArithmeticError(t *testing.T) {
	conv := NewAverageCostConverter([]domain.CostBasis{
		{Direction: domain.DirectionKey(usdt, myr), AverageCost: decimal.Zero},
	})
	lots := []Lot{lot("S1", myr, "100", "440", 1)}

	_, err := Match([]Demand{demand("B1", usdt, "100", "100")}, lots, conv, tracked)
	assert.ErrorIs(t, err, domain.ErrArithmetic)
}

func TestMatch_UntrackedPairIsReported(t *testing.T) {
	lots := []Lot{lot("S1", "EUR", "100", "90", 1)}

	rows, err := Match([]Demand{demand("B1", usdt, "100", "100")}, lots, AverageCostConverter{}, tracked)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, rows[0].Unconverted)
	assertDec(t, "0", rows[0].Cost(usdt))
	assertDec(t, "100", rows[0].ProfitIn(usdt))
}

func TestMatch_DoesNotMutateInputs(t *testing.T) {
	lots := []Lot{lot("S1", usdt, "100", "50", 1)}
	demands := []Demand{demand("B1", usdt, "100", "60")}

	_, err := Match(demands, lots, AverageCostConverter{}, tracked)
	require.NoError(t, err)

	assertDec(t, "100", lots[0].Amount)
	assertDec(t, "100", demands[0].Amount)

	rows, err := Match(demands, lots, AverageCostConverter{}, tracked)
	require.NoError(t, err)
	assertDec(t, "10", rows[0].ProfitIn(usdt))
}

func TestMatch_SkipsLotsBelowTolerance(t *testing.T) {
	lots := []Lot{
		lot("S1", usdt, "100", "50", 1),
		lot("S2", usdt, "100", "80", 2),
	}
	demands := []Demand{
		demand("B1", usdt, "99.9999999", "50"),
		demand("B2", usdt, "100", "100"),
	}
	rows, err := Match(demands, lots, AverageCostConverter{}, tracked)
	require.NoError(t, err)

	assert.Equal(t, []string{"S1"}, rows[0].MatchedSell)
	assert.Equal(t, []string{"S2"}, rows[1].MatchedSell)
	assertDec(t, "80", rows[1].Cost(usdt))
}

func TestAverageCostConverter(t *testing.T) {
	conv := NewAverageCostConverter([]domain.CostBasis{
		{Direction: domain.DirectionKey(usdt, myr), AverageCost: dec("4")},
	})

	got, ok, err := conv.Convert(dec("8"), myr, usdt)
	require.NoError(t, err)
	assert.True(t, ok)
	assertDec(t, "2", got)

	_, ok, err = conv.Convert(dec("8"), usdt, myr)
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err = conv.Convert(dec("8"), usdt, usdt)
	require.NoError(t, err)
	assert.True(t, ok)
	assertDec(t, "8", got)
}

func TestSummarize(t *testing.T) {
	trades := []domain.Transaction{
		{
			OrderID: "YS1", Kind: domain.KindBuy, BaseCurrency: myr, QuoteCurrency: usdt,
			Amount: dec("10000"), Rate: dec("4.42"), Operator: domain.OperatorDivide,
			SettledIn: dec("2300"), SettledOut: dec("4000"), Status: domain.StatusPartial,
		},
		{
			OrderID: "YS2", Kind: domain.KindSell, BaseCurrency: usdt, QuoteCurrency: myr,
			Amount: dec("100"), Rate: dec("4.5"), Operator: domain.OperatorMultiply,
			SettledIn: dec("100"), SettledOut: dec("450"), Status: domain.StatusSettled,
		},
		{
			OrderID: "YS3", Kind: domain.KindBuy, BaseCurrency: myr, QuoteCurrency: usdt,
			Amount: dec("999"), Rate: dec("1"), Operator: domain.OperatorDivide, Status: domain.StatusCanceled,
		},
	}
	expenses := []domain.Expense{{Amount: dec("50"), Currency: myr}}

	out, err := Summarize(trades, expenses)
	require.NoError(t, err)
	require.Len(t, out, 2)

	m, u := out[0], out[1]
	assert.Equal(t, myr, m.Currency)
	assert.Equal(t, usdt, u.Currency)

	assertDec(t, "2362.44", u.TotalIncome)
	assertDec(t, "2400", u.ActualIncome)
	assertDec(t, "-37.56", u.PendingIncome)
	assertDec(t, "37.56", u.CreditBalance)

	assertDec(t, "10450", m.TotalExpense)
	assertDec(t, "4500", m.ActualExpense)
	assertDec(t, "6000", m.PendingExpense)
	assertDec(t, "50", m.Expenses)
	assertDec(t, "-4500", m.Net())
	assertDec(t, "0", m.CreditBalance)
}
