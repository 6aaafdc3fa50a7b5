package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

const runColumns = `id, idempotency_key, operator, customer, currency, direction, amount, offset_total, residual,
	status, payment_id, created_at, completed_at`

const stepColumns = `seq, phase, order_id, side, currency, amount_applied, balance_delta,
	settled_before, settled_after, new_status, applied, applied_at`

type SettlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// CreateRun persists a planned run and all of its steps. A reused idempotency
// key fails with ErrIdempotencyConflict.
func (r *SettlementRepository) CreateRun(ctx context.Context, tx *sql.Tx, run *domain.SettlementRun) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO settlement_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, run.IdempotencyKey, run.Operator, run.Customer, run.Currency, run.Direction,
		run.Amount, run.OffsetTotal, run.Residual, run.Status, run.PaymentID,
		run.CreatedAt, run.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("CreateRun: %w", domain.ErrIdempotencyConflict)
		}
		return fmt.Errorf("CreateRun: %w", err)
	}

	for _, s := range run.Steps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settlement_steps (run_id, `+stepColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			run.ID, s.Seq, s.Phase, s.OrderID, s.Side, s.Currency, s.AmountApplied, s.BalanceDelta,
			s.SettledBefore, s.SettledAfter, s.NewStatus, s.Applied, s.AppliedAt,
		)
		if err != nil {
			return fmt.Errorf("CreateRun: step %d: %w", s.Seq, err)
		}
	}
	return nil
}

func (r *SettlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SettlementRun, error) {
	return r.getRun(ctx, "GetByID", `id = $1`, id)
}

// GetByKey returns the run operator submitted under key, or nil, nil when
// there is none. Keys are scoped per operator like the HTTP replay cache.
func (r *SettlementRepository) GetByKey(ctx context.Context, key, operator string) (*domain.SettlementRun, error) {
	run, err := r.getRun(ctx, "GetByKey", `idempotency_key = $1 AND operator = $2`, key, operator)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return run, err
}

func (r *SettlementRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.SettlementRun, error) {
	return r.getRun(ctx, "GetByPaymentID", `payment_id = $1`, paymentID)
}

func (r *SettlementRepository) getRun(ctx context.Context, op, where string, args ...any) (*domain.SettlementRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM settlement_runs WHERE `+where, args...)

	var run domain.SettlementRun
	err := row.Scan(
		&run.ID, &run.IdempotencyKey, &run.Operator, &run.Customer, &run.Currency, &run.Direction,
		&run.Amount, &run.OffsetTotal, &run.Residual, &run.Status, &run.PaymentID,
		&run.CreatedAt, &run.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	steps, err := r.listSteps(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	run.Steps = steps
	return &run, nil
}

func (r *SettlementRepository) listSteps(ctx context.Context, runID uuid.UUID) ([]domain.Step, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM settlement_steps WHERE run_id = $1 ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listSteps: %w", err)
	}
	defer rows.Close()

	var out []domain.Step
	for rows.Next() {
		var s domain.Step
		err := rows.Scan(&s.Seq, &s.Phase, &s.OrderID, &s.Side, &s.Currency, &s.AmountApplied, &s.BalanceDelta,
			&s.SettledBefore, &s.SettledAfter, &s.NewStatus, &s.Applied, &s.AppliedAt)
		if err != nil {
			return nil, fmt.Errorf("listSteps: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listSteps: rows: %w", err)
	}
	return out, nil
}

// MarkStepApplied flags one step as committed. Only an unapplied step can be
// flagged, so a step is never applied twice.
func (r *SettlementRepository) MarkStepApplied(ctx context.Context, tx *sql.Tx, runID uuid.UUID, seq int, status domain.Status, settledAfter decimal.Decimal, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE settlement_steps SET applied = true, applied_at = $1, new_status = $2, settled_after = $3
		WHERE run_id = $4 AND seq = $5 AND NOT applied`,
		at, status, settledAfter, runID, seq,
	)
	if err != nil {
		return fmt.Errorf("MarkStepApplied: %w", err)
	}
	return requireOneRow(res, "MarkStepApplied", domain.ErrVersionConflict)
}

func (r *SettlementRepository) Complete(ctx context.Context, tx *sql.Tx, runID uuid.UUID, paymentID string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE settlement_runs SET status = 'completed', payment_id = $1, completed_at = $2
		WHERE id = $3 AND status = 'planned'`,
		paymentID, at, runID,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	return requireOneRow(res, "Complete", domain.ErrVersionConflict)
}
