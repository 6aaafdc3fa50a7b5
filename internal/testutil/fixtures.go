package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

const Company = domain.DefaultCompanyAccount

var (
	PrimaryCurrency   = domain.Currency("USDT")
	SecondaryCurrency = domain.Currency("MYR")
)

var orderSeq int

// SeedTrade inserts a pending trade directly, bypassing the creation-time
// ledger effect. Each call is one minute after the previous so FIFO order
// follows call order.
func SeedTrade(t *testing.T, db *sql.DB, customer string, kind domain.TradeKind, amount string, base, quote domain.Currency, op domain.Operator, rate string) *domain.Transaction {
	t.Helper()

	orderSeq++
	tx := &domain.Transaction{
		OrderID:       fmt.Sprintf("TS%09d", orderSeq),
		Customer:      customer,
		Kind:          kind,
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Amount:        decimal.RequireFromString(amount),
		Rate:          decimal.RequireFromString(rate),
		Operator:      op,
		Status:        domain.StatusPending,
		CreatedAt:     time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(orderSeq) * time.Minute),
	}

	_, err := db.Exec(
		`INSERT INTO transactions (order_id, customer, kind, base_currency, quote_currency, amount, rate, operator, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.OrderID, tx.Customer, tx.Kind, tx.BaseCurrency, tx.QuoteCurrency, tx.Amount, tx.Rate, tx.Operator, tx.Status, tx.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed trade %s: %v", tx.OrderID, err)
	}
	return tx
}

func SeedBalance(t *testing.T, db *sql.DB, customer string, currency domain.Currency, amount string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO balances (customer, currency, amount) VALUES ($1, $2, $3)
		 ON CONFLICT (customer, currency) DO UPDATE SET amount = EXCLUDED.amount`,
		customer, currency, decimal.RequireFromString(amount),
	)
	if err != nil {
		t.Fatalf("seed balance %s/%s: %v", customer, currency, err)
	}
}

// GetBalance returns zero for a pair that was never touched.
func GetBalance(t *testing.T, db *sql.DB, customer string, currency domain.Currency) decimal.Decimal {
	t.Helper()

	var amount decimal.Decimal
	err := db.QueryRow(`SELECT amount FROM balances WHERE customer = $1 AND currency = $2`, customer, currency).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero
	}
	if err != nil {
		t.Fatalf("get balance %s/%s: %v", customer, currency, err)
	}
	return amount
}

func GetOrder(t *testing.T, db *sql.DB, orderID string) (settledIn, settledOut decimal.Decimal, status domain.Status) {
	t.Helper()

	err := db.QueryRow(`SELECT settled_in, settled_out, status FROM transactions WHERE order_id = $1`, orderID).
		Scan(&settledIn, &settledOut, &status)
	if err != nil {
		t.Fatalf("get order %s: %v", orderID, err)
	}
	return settledIn, settledOut, status
}

func CountRows(t *testing.T, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE `+where, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// SetSettled overwrites an order's settlement progress and status.
func SetSettled(t *testing.T, db *sql.DB, orderID, settledIn, settledOut string, status domain.Status) {
	t.Helper()

	_, err := db.Exec(
		`UPDATE transactions SET settled_in = $2, settled_out = $3, status = $4 WHERE order_id = $1`,
		orderID, decimal.RequireFromString(settledIn), decimal.RequireFromString(settledOut), status,
	)
	if err != nil {
		t.Fatalf("set settled %s: %v", orderID, err)
	}
}

// SeedCostBasis writes one accumulator with the average derived from the
// totals.
func SeedCostBasis(t *testing.T, db *sql.DB, acquired, spent domain.Currency, totalAcquired, totalSpent string) {
	t.Helper()

	cb := domain.CostBasis{
		Direction:        domain.DirectionKey(acquired, spent),
		AcquiredCurrency: acquired,
		SpentCurrency:    spent,
	}.Add(decimal.RequireFromString(totalAcquired), decimal.RequireFromString(totalSpent))

	_, err := db.Exec(
		`INSERT INTO cost_basis (direction, acquired_currency, spent_currency, total_acquired, total_spent, average_cost)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (direction) DO UPDATE SET total_acquired = EXCLUDED.total_acquired,
			total_spent = EXCLUDED.total_spent, average_cost = EXCLUDED.average_cost`,
		cb.Direction, cb.AcquiredCurrency, cb.SpentCurrency, cb.TotalAcquired, cb.TotalSpent, cb.AverageCost,
	)
	if err != nil {
		t.Fatalf("seed cost basis %s: %v", cb.Direction, err)
	}
}
