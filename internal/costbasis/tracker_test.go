package costbasis

import (
	"testing"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pair = Pair{Primary: "USDT", Secondary: "MYR"}

func trade(kind domain.TradeKind, amount string, base, quote domain.Currency, op domain.Operator, rate string) *domain.Transaction {
	return &domain.Transaction{
		Kind:          kind,
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Amount:        decimal.RequireFromString(amount),
		Rate:          decimal.RequireFromString(rate),
		Operator:      op,
	}
}

func TestUpdateFor(t *testing.T) {
	tests := []struct {
		name         string
		tx           *domain.Transaction
		wantOK       bool
		wantAcquired domain.Currency
		wantSpent    domain.Currency
		acquired     string
		spent        string
	}{
		{
			name:         "buy MYR base acquires USDT quote",
			tx:           trade(domain.KindBuy, "10000", "MYR", "USDT", domain.OperatorDivide, "4.42"),
			wantOK:       true,
			wantAcquired: "USDT", wantSpent: "MYR",
			acquired: "2262.44", spent: "10000",
		},
		{
			name:         "sell USDT base acquires USDT",
			tx:           trade(domain.KindSell, "1000", "USDT", "MYR", domain.OperatorMultiply, "4.42"),
			wantOK:       true,
			wantAcquired: "USDT", wantSpent: "MYR",
			acquired: "1000", spent: "4420",
		},
		{
			name:         "buy USDT base acquires MYR quote",
			tx:           trade(domain.KindBuy, "1000", "USDT", "MYR", domain.OperatorMultiply, "4.40"),
			wantOK:       true,
			wantAcquired: "MYR", wantSpent: "USDT",
			acquired: "4400", spent: "1000",
		},
		{
			name:   "untracked pair",
			tx:     trade(domain.KindBuy, "100", "USD", "MYR", domain.OperatorMultiply, "4.7"),
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u, ok, err := UpdateFor(pair, tc.tx)
			require.NoError(t, err)
			require.Equal(t, tc.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.wantAcquired, u.AcquiredCurrency)
			assert.Equal(t, tc.wantSpent, u.SpentCurrency)
			assert.True(t, decimal.RequireFromString(tc.acquired).Equal(u.Acquired), "acquired %s", u.Acquired)
			assert.True(t, decimal.RequireFromString(tc.spent).Equal(u.Spent), "spent %s", u.Spent)
		})
	}
}

func TestUpdateFor_AccumulatesWeightedAverage(t *testing.T) {
	cb := domain.CostBasis{Direction: domain.DirectionKey("USDT", "MYR")}

	for _, tx := range []*domain.Transaction{
		trade(domain.KindSell, "1000", "USDT", "MYR", domain.OperatorMultiply, "4.42"),
		trade(domain.KindSell, "500", "USDT", "MYR", domain.OperatorMultiply, "4.53"),
	} {
		u, ok, err := UpdateFor(pair, tx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, cb.Direction, u.Direction())
		cb = cb.Add(u.Acquired, u.Spent)
	}

	assert.InDelta(t, 4.4567, cb.AverageCost.InexactFloat64(), 0.0001)
}

func TestUpdateFor_OrderIndependent(t *testing.T) {
	a := trade(domain.KindSell, "1000", "USDT", "MYR", domain.OperatorMultiply, "4.42")
	b := trade(domain.KindSell, "500", "USDT", "MYR", domain.OperatorMultiply, "4.53")

	fold := func(txs ...*domain.Transaction) domain.CostBasis {
		var cb domain.CostBasis
		for _, tx := range txs {
			u, _, err := UpdateFor(pair, tx)
			require.NoError(t, err)
			cb = cb.Add(u.Acquired, u.Spent)
		}
		return cb
	}

	assert.True(t, fold(a, b).AverageCost.Equal(fold(b, a).AverageCost))
}

func TestPair(t *testing.T) {
	assert.True(t, pair.Matches("MYR", "USDT"))
	assert.False(t, pair.Matches("MYR", "MYR"))
	assert.Equal(t, domain.Currency("MYR"), pair.Other("USDT"))
	assert.Equal(t, domain.Currency("USDT"), pair.Other("MYR"))
}
