package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
)

type AdjustmentRepository struct {
	db *sql.DB
}

func NewAdjustmentRepository(db *sql.DB) *AdjustmentRepository {
	return &AdjustmentRepository{db: db}
}

func (r *AdjustmentRepository) Create(ctx context.Context, tx *sql.Tx, a *domain.Adjustment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO adjustments (id, customer, currency, amount, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Customer, a.Currency, a.Amount, a.Note, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AdjustmentRepository) ListByCustomer(ctx context.Context, customer string) ([]domain.Adjustment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer, currency, amount, note, created_at FROM adjustments
		WHERE customer = $1 ORDER BY created_at`,
		customer,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByCustomer: %w", err)
	}
	defer rows.Close()

	var out []domain.Adjustment
	for rows.Next() {
		var a domain.Adjustment
		if err := rows.Scan(&a.ID, &a.Customer, &a.Currency, &a.Amount, &a.Note, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListByCustomer: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByCustomer: rows: %w", err)
	}
	return out, nil
}

type ExpenseRepository struct {
	db *sql.DB
}

func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, e *domain.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, amount, currency, purpose, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Amount, e.Currency, e.Purpose, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *ExpenseRepository) List(ctx context.Context, q Querier, window domain.DateRange) ([]domain.Expense, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, amount, currency, purpose, created_at FROM expenses
		WHERE created_at BETWEEN $1 AND $2 ORDER BY created_at`,
		window.Start, window.End,
	)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var out []domain.Expense
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Amount, &e.Currency, &e.Purpose, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return out, nil
}

// PurgeCustomer removes every row owned by customer. Settlement steps go with
// their runs via ON DELETE CASCADE.
func PurgeCustomer(ctx context.Context, tx *sql.Tx, customer string) (domain.PurgeResult, error) {
	var res domain.PurgeResult
	targets := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM settlement_runs WHERE customer = $1`, &res.SettlementRuns},
		{`DELETE FROM transactions WHERE customer = $1`, &res.Transactions},
		{`DELETE FROM balances WHERE customer = $1`, &res.Balances},
		{`DELETE FROM adjustments WHERE customer = $1`, &res.Adjustments},
	}
	for _, t := range targets {
		r, err := tx.ExecContext(ctx, t.query, customer)
		if err != nil {
			return domain.PurgeResult{}, fmt.Errorf("PurgeCustomer: %w", err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return domain.PurgeResult{}, fmt.Errorf("PurgeCustomer: rows affected: %w", err)
		}
		*t.count = n
	}
	return res, nil
}
