package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
)

const costBasisColumns = `direction, acquired_currency, spent_currency, total_acquired, total_spent, average_cost, updated_at`

type CostBasisRepository struct {
	db *sql.DB
}

func NewCostBasisRepository(db *sql.DB) *CostBasisRepository {
	return &CostBasisRepository{db: db}
}

// Ensure creates a zero-valued accumulator unless one already exists.
func (r *CostBasisRepository) Ensure(ctx context.Context, acquired, spent domain.Currency) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cost_basis (direction, acquired_currency, spent_currency)
		VALUES ($1, $2, $3)
		ON CONFLICT (direction) DO NOTHING`,
		domain.DirectionKey(acquired, spent), acquired, spent,
	)
	if err != nil {
		return fmt.Errorf("Ensure: %w", err)
	}
	return nil
}

func (r *CostBasisRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, direction string) (*domain.CostBasis, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+costBasisColumns+` FROM cost_basis WHERE direction = $1 FOR UPDATE`, direction,
	)
	cb, err := scanCostBasis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return cb, nil
}

func (r *CostBasisRepository) Save(ctx context.Context, tx *sql.Tx, cb *domain.CostBasis) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE cost_basis SET total_acquired = $1, total_spent = $2, average_cost = $3, updated_at = $4
		WHERE direction = $5`,
		cb.TotalAcquired, cb.TotalSpent, cb.AverageCost, cb.UpdatedAt, cb.Direction,
	)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return requireOneRow(res, "Save", domain.ErrNotFound)
}

func (r *CostBasisRepository) List(ctx context.Context, q Querier) ([]domain.CostBasis, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+costBasisColumns+` FROM cost_basis ORDER BY direction`)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var out []domain.CostBasis
	for rows.Next() {
		cb, err := scanCostBasis(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		out = append(out, *cb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return out, nil
}

func scanCostBasis(s scanner) (*domain.CostBasis, error) {
	var cb domain.CostBasis
	err := s.Scan(&cb.Direction, &cb.AcquiredCurrency, &cb.SpentCurrency,
		&cb.TotalAcquired, &cb.TotalSpent, &cb.AverageCost, &cb.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cb, nil
}
