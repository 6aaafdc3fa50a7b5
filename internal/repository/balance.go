package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

type BalanceRepository struct {
	db *sql.DB
}

func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Add applies delta to the (customer, currency) balance, creating the row on
// first touch, and returns the new amount. The row stays locked until tx ends.
func (r *BalanceRepository) Add(ctx context.Context, tx *sql.Tx, customer string, currency domain.Currency, delta decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`INSERT INTO balances (customer, currency, amount, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (customer, currency)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
		RETURNING amount`,
		customer, currency, domain.RoundMoney(delta),
	).Scan(&amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Add: %w", err)
	}
	return amount, nil
}

func (r *BalanceRepository) Get(ctx context.Context, customer string, currency domain.Currency) (*domain.Balance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT customer, currency, amount, updated_at FROM balances
		WHERE customer = $1 AND currency = $2`,
		customer, currency,
	)
	b, err := scanBalance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return b, nil
}

func (r *BalanceRepository) ListByCustomer(ctx context.Context, customer string) ([]domain.Balance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT customer, currency, amount, updated_at FROM balances
		WHERE customer = $1 ORDER BY currency`,
		customer,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByCustomer: %w", err)
	}
	return collectBalances(rows, "ListByCustomer")
}

// ListExcept returns every balance not owned by exclude, optionally narrowed
// to one customer.
func (r *BalanceRepository) ListExcept(ctx context.Context, exclude, customer string) ([]domain.Balance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT customer, currency, amount, updated_at FROM balances
		WHERE customer <> $1 AND ($2 = '' OR customer = $2)
		ORDER BY customer, currency`,
		exclude, customer,
	)
	if err != nil {
		return nil, fmt.Errorf("ListExcept: %w", err)
	}
	return collectBalances(rows, "ListExcept")
}

func collectBalances(rows *sql.Rows, op string) ([]domain.Balance, error) {
	defer rows.Close()

	var out []domain.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return out, nil
}

func scanBalance(s scanner) (*domain.Balance, error) {
	var b domain.Balance
	if err := s.Scan(&b.Customer, &b.Currency, &b.Amount, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
