package pnl_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/fx-settlement/internal/costbasis"
	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/pnl"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
	"github.com/josh-kwaku/fx-settlement/internal/testutil"
)

var january = domain.DateRange{
	Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC),
}

func setupReports(t *testing.T, db *sql.DB) *pnl.Service {
	t.Helper()
	costs := costbasis.NewService(repository.NewCostBasisRepository(db), costbasis.Pair{
		Primary:   testutil.PrimaryCurrency,
		Secondary: testutil.SecondaryCurrency,
	})
	return pnl.NewService(
		repository.NewDB(db),
		repository.NewTransactionRepository(db),
		repository.NewExpenseRepository(db),
		costs,
		testutil.PrimaryCurrency, testutil.SecondaryCurrency,
	)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s got %s", want, got)
}

func TestReport_FullyFundedBuy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupReports(t, db)

	s1 := testutil.SeedTrade(t, db, "S", domain.KindSell, "600", "MYR", "USDT", domain.OperatorDivide, "0.2264")
	testutil.SetSettled(t, db, s1.OrderID, "600", "2650", domain.StatusSettled)
	s2 := testutil.SeedTrade(t, db, "S", domain.KindSell, "400", "MYR", "USDT", domain.OperatorDivide, "0.226")
	testutil.SetSettled(t, db, s2.OrderID, "400", "1770", domain.StatusSettled)
	canceled := testutil.SeedTrade(t, db, "S", domain.KindSell, "5000", "MYR", "USDT", domain.OperatorDivide, "0.2")
	testutil.SetSettled(t, db, canceled.OrderID, "0", "0", domain.StatusCanceled)

	buy := testutil.SeedTrade(t, db, "A", domain.KindBuy, "1000", "MYR", "USDT", domain.OperatorMultiply, "4.42")
	testutil.SetSettled(t, db, buy.OrderID, "4420", "1000", domain.StatusSettled)

	report, err := svc.Report(context.Background(), january)
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, buy.OrderID, row.OrderID)
	assertDec(t, "4420", row.Cost("USDT"))
	assertDec(t, "0", row.ProfitIn("USDT"))
	assertDec(t, "0", row.ProfitIn("MYR"))
	assert.Equal(t, []string{s1.OrderID, s2.OrderID}, row.MatchedSell)

	totals := report.Totals["USDT"]
	assertDec(t, "4420", totals.Revenue)
	assertDec(t, "0", totals.Profit)
}

func TestReport_SellsOutsideWindowStillFundBuys(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupReports(t, db)

	sell := testutil.SeedTrade(t, db, "S", domain.KindSell, "100", "MYR", "USDT", domain.OperatorDivide, "0.25")
	testutil.SetSettled(t, db, sell.OrderID, "100", "400", domain.StatusSettled)
	_, err := db.Exec(`UPDATE transactions SET created_at = '2024-06-01' WHERE order_id = $1`, sell.OrderID)
	require.NoError(t, err)

	outside := testutil.SeedTrade(t, db, "A", domain.KindBuy, "100", "MYR", "USDT", domain.OperatorMultiply, "4.5")
	_, err = db.Exec(`UPDATE transactions SET created_at = '2025-03-01' WHERE order_id = $1`, outside.OrderID)
	require.NoError(t, err)

	buy := testutil.SeedTrade(t, db, "A", domain.KindBuy, "100", "MYR", "USDT", domain.OperatorMultiply, "4.5")
	testutil.SetSettled(t, db, buy.OrderID, "450", "0", domain.StatusPartial)

	report, err := svc.Report(context.Background(), january)
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, []string{sell.OrderID}, report.Rows[0].MatchedSell)
	assertDec(t, "50", report.Rows[0].ProfitIn("USDT"))
}

func TestReport_CrossCurrencyConversion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupReports(t, db)

	testutil.SeedCostBasis(t, db, "USDT", "MYR", "1500", "6685")

	sell := testutil.SeedTrade(t, db, "S", domain.KindSell, "100", "EUR", "MYR", domain.OperatorMultiply, "4.4567")
	testutil.SetSettled(t, db, sell.OrderID, "100", "445.67", domain.StatusSettled)

	buy := testutil.SeedTrade(t, db, "A", domain.KindBuy, "100", "EUR", "USDT", domain.OperatorMultiply, "1.1")
	testutil.SetSettled(t, db, buy.OrderID, "110", "0", domain.StatusPartial)

	report, err := svc.Report(context.Background(), january)
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	// 445.67 MYR / (6685/1500) USDT
	assertDec(t, "100", row.Cost("USDT"))
	assertDec(t, "10", row.ProfitIn("USDT"))
	assertDec(t, "0", row.ProfitIn("MYR"))
	require.Len(t, report.CostBasis, 1)
}

func TestSummary_IncludesExpenses(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupReports(t, db)

	buy := testutil.SeedTrade(t, db, "A", domain.KindBuy, "10000", "MYR", "USDT", domain.OperatorDivide, "4.42")
	testutil.SetSettled(t, db, buy.OrderID, "2262.44", "10000", domain.StatusSettled)

	_, err := db.Exec(`INSERT INTO expenses (id, amount, currency, purpose, created_at)
		VALUES (gen_random_uuid(), 25, 'MYR', 'bank fee', '2025-01-15')`)
	require.NoError(t, err)

	out, err := svc.Summary(context.Background(), january)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, domain.Currency("MYR"), out[0].Currency)
	assertDec(t, "10025", out[0].ActualExpense)
	assertDec(t, "25", out[0].Expenses)

	assert.Equal(t, domain.Currency("USDT"), out[1].Currency)
	assertDec(t, "2262.44", out[1].ActualIncome)
	assertDec(t, "0", out[1].PendingIncome)
}
