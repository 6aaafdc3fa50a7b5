package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

const transactionColumns = `order_id, customer, kind, payment_kind, base_currency, quote_currency,
	amount, rate, operator, status, settled_in, settled_out, created_at, canceled_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// NextOrderID draws the next trade id from the order sequence.
func (r *TransactionRepository) NextOrderID(ctx context.Context, tx *sql.Tx) (string, error) {
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('trade_order_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("NextOrderID: %w", err)
	}
	return fmt.Sprintf("YS%09d", n), nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		transactionArgs(t)...,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts t unless its order id is taken and reports whether
// the row was written.
func (r *TransactionRepository) CreateIfAbsent(ctx context.Context, tx *sql.Tx, t *domain.Transaction) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (order_id) DO NOTHING`,
		transactionArgs(t)...,
	)
	if err != nil {
		return false, fmt.Errorf("CreateIfAbsent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CreateIfAbsent: rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE order_id = $1`, orderID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE order_id = $1 FOR UPDATE`, orderID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return t, nil
}

// ListOutstanding returns a customer's pending or partial trades involving
// currency, oldest first.
func (r *TransactionRepository) ListOutstanding(ctx context.Context, customer string, currency domain.Currency) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE customer = $1
			AND kind IN ('buy', 'sell')
			AND status IN ('pending', 'partial')
			AND (quote_currency = $2 OR base_currency = $2)
		ORDER BY created_at, order_id`,
		customer, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("ListOutstanding: %w", err)
	}
	return collectTransactions(rows, "ListOutstanding")
}

// ListTrades returns non-canceled trades of one kind, oldest first. A nil
// window returns the full history.
func (r *TransactionRepository) ListTrades(ctx context.Context, q Querier, kind domain.TradeKind, window *domain.DateRange) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE kind = $1 AND status <> 'canceled'`
	args := []any{kind}
	if window != nil {
		query += ` AND created_at BETWEEN $2 AND $3`
		args = append(args, window.Start, window.End)
	}
	query += ` ORDER BY created_at, order_id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTrades: %w", err)
	}
	return collectTransactions(rows, "ListTrades")
}

func (r *TransactionRepository) ListByCustomer(ctx context.Context, customer string, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE customer = $1 ORDER BY created_at DESC, order_id DESC LIMIT $2`,
		customer, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByCustomer: %w", err)
	}
	return collectTransactions(rows, "ListByCustomer")
}

func (r *TransactionRepository) UpdateSettlement(ctx context.Context, tx *sql.Tx, orderID string, settledIn, settledOut decimal.Decimal, status domain.Status) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET settled_in = $1, settled_out = $2, status = $3
		WHERE order_id = $4 AND status <> 'canceled'`,
		settledIn, settledOut, status, orderID,
	)
	if err != nil {
		return fmt.Errorf("UpdateSettlement: %w", err)
	}
	return requireOneRow(res, "UpdateSettlement", domain.ErrVersionConflict)
}

// MarkCanceled tombstones a record. A second call fails with ErrAlreadyCanceled.
func (r *TransactionRepository) MarkCanceled(ctx context.Context, tx *sql.Tx, orderID string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = 'canceled', canceled_at = $1
		WHERE order_id = $2 AND status <> 'canceled'`,
		at, orderID,
	)
	if err != nil {
		return fmt.Errorf("MarkCanceled: %w", err)
	}
	return requireOneRow(res, "MarkCanceled", domain.ErrAlreadyCanceled)
}

func requireOneRow(res sql.Result, op string, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return nil
}

func transactionArgs(t *domain.Transaction) []any {
	return []any{
		t.OrderID, t.Customer, t.Kind, t.PaymentKind, t.BaseCurrency, t.QuoteCurrency,
		t.Amount, t.Rate, t.Operator, t.Status, t.SettledIn, t.SettledOut, t.CreatedAt, t.CanceledAt,
	}
}

func collectTransactions(rows *sql.Rows, op string) ([]domain.Transaction, error) {
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return out, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.OrderID, &t.Customer, &t.Kind, &t.PaymentKind, &t.BaseCurrency, &t.QuoteCurrency,
		&t.Amount, &t.Rate, &t.Operator, &t.Status, &t.SettledIn, &t.SettledOut,
		&t.CreatedAt, &t.CanceledAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
