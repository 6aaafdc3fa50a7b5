package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/metrics"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
	"github.com/shopspring/decimal"
)

type transactionRepo interface {
	ListOutstanding(ctx context.Context, customer string, currency domain.Currency) ([]domain.Transaction, error)
	GetByID(ctx context.Context, orderID string) (*domain.Transaction, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*domain.Transaction, error)
	UpdateSettlement(ctx context.Context, tx *sql.Tx, orderID string, settledIn, settledOut decimal.Decimal, status domain.Status) error
	CreateIfAbsent(ctx context.Context, tx *sql.Tx, t *domain.Transaction) (bool, error)
	MarkCanceled(ctx context.Context, tx *sql.Tx, orderID string, at time.Time) error
}

type balanceRepo interface {
	Add(ctx context.Context, tx *sql.Tx, customer string, currency domain.Currency, delta decimal.Decimal) (decimal.Decimal, error)
}

type runRepo interface {
	CreateRun(ctx context.Context, tx *sql.Tx, run *domain.SettlementRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SettlementRun, error)
	GetByKey(ctx context.Context, key, operator string) (*domain.SettlementRun, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.SettlementRun, error)
	MarkStepApplied(ctx context.Context, tx *sql.Tx, runID uuid.UUID, seq int, status domain.Status, settledAfter decimal.Decimal, at time.Time) error
	Complete(ctx context.Context, tx *sql.Tx, runID uuid.UUID, paymentID string, at time.Time) error
}

type locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

const paymentIDAttempts = 5

type Allocator struct {
	db       *repository.DB
	txs      transactionRepo
	balances balanceRepo
	runs     runRepo
	locks    locker
	company  string
	now      func() time.Time
}

func NewAllocator(db *repository.DB, txs transactionRepo, balances balanceRepo, runs runRepo, locks locker, company string) *Allocator {
	return &Allocator{
		db:       db,
		txs:      txs,
		balances: balances,
		runs:     runs,
		locks:    locks,
		company:  company,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Settle plans a payment command, persists the plan, then applies each step in
// its own transaction. A command carrying an idempotency key that was already
// seen resumes the stored run instead of planning again.
func (a *Allocator) Settle(ctx context.Context, cmd Command) (*domain.SettlementRun, error) {
	start := time.Now()
	cmd, err := cmd.Normalize(a.company)
	if err != nil {
		return nil, fmt.Errorf("Settle: %w", err)
	}

	log := logging.FromContext(ctx).With(
		"customer", cmd.Customer,
		"currency", cmd.Currency,
		"direction", cmd.Direction,
		"amount", cmd.Amount,
	)

	release, err := a.locks.Lock(ctx, repository.LockKey(cmd.Customer, cmd.Currency))
	if err != nil {
		return nil, fmt.Errorf("Settle: %w: %w", domain.ErrPersistence, err)
	}
	defer release()

	run, err := a.loadOrPlan(ctx, cmd)
	if err != nil {
		metrics.SettlementRunsTotal.WithLabelValues(string(cmd.Direction), "rejected").Inc()
		return nil, fmt.Errorf("Settle: %w", err)
	}
	if run.Status == domain.RunCompleted {
		log.Info("settlement replayed", "run_id", run.ID)
		metrics.SettlementRunsTotal.WithLabelValues(string(cmd.Direction), "replayed").Inc()
		return run, nil
	}

	log = log.With("run_id", run.ID)
	for i := range run.Steps {
		step := &run.Steps[i]
		if step.Applied {
			continue
		}
		if err := a.applyStep(ctx, run, step); err != nil {
			log.Error("settlement step failed", "error", err, "seq", step.Seq, "order_id", step.OrderID)
			metrics.SettlementRunsTotal.WithLabelValues(string(cmd.Direction), "failed").Inc()
			if errors.Is(err, domain.ErrVersionConflict) {
				return nil, fmt.Errorf("Settle: %w", err)
			}
			return nil, fmt.Errorf("Settle: %w: %w", domain.ErrPersistence, err)
		}
		metrics.AllocationStepsTotal.WithLabelValues(string(step.Phase)).Inc()
	}

	if err := a.complete(ctx, run); err != nil {
		log.Error("settlement completion failed", "error", err)
		metrics.SettlementRunsTotal.WithLabelValues(string(cmd.Direction), "failed").Inc()
		return nil, fmt.Errorf("Settle: %w: %w", domain.ErrPersistence, err)
	}

	metrics.SettlementRunsTotal.WithLabelValues(string(cmd.Direction), "completed").Inc()
	metrics.SettlementRunDuration.WithLabelValues(string(cmd.Direction)).Observe(time.Since(start).Seconds())
	log.Info("settlement completed",
		"payment_id", *run.PaymentID,
		"steps", len(run.Steps),
		"offset_total", run.OffsetTotal,
		"residual", run.Residual,
	)
	return run, nil
}

func (a *Allocator) loadOrPlan(ctx context.Context, cmd Command) (*domain.SettlementRun, error) {
	if cmd.IdempotencyKey != "" {
		existing, err := a.runs.GetByKey(ctx, cmd.IdempotencyKey, cmd.Operator)
		if err != nil {
			return nil, fmt.Errorf("loadOrPlan: %w", err)
		}
		if existing != nil {
			if !existing.SameCommand(cmd.Customer, cmd.Currency, cmd.Amount, cmd.Direction) {
				return nil, fmt.Errorf("loadOrPlan: %w", domain.ErrIdempotencyConflict)
			}
			return existing, nil
		}
	}

	outstanding, err := a.txs.ListOutstanding(ctx, cmd.Customer, cmd.Currency)
	if err != nil {
		return nil, fmt.Errorf("loadOrPlan: %w", err)
	}
	plan, err := BuildPlan(cmd, outstanding)
	if err != nil {
		return nil, fmt.Errorf("loadOrPlan: %w", err)
	}

	run := &domain.SettlementRun{
		ID:          uuid.New(),
		Operator:    cmd.Operator,
		Customer:    cmd.Customer,
		Currency:    cmd.Currency,
		Direction:   cmd.Direction,
		Amount:      cmd.Amount,
		OffsetTotal: plan.OffsetTotal,
		Residual:    plan.Residual,
		Status:      domain.RunPlanned,
		CreatedAt:   a.now(),
		Steps:       plan.Steps,
	}
	if cmd.IdempotencyKey != "" {
		key := cmd.IdempotencyKey
		run.IdempotencyKey = &key
	}

	if err := a.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		return a.runs.CreateRun(ctx, tx, run)
	}); err != nil {
		return nil, fmt.Errorf("loadOrPlan: %w", err)
	}
	return run, nil
}

// applyStep commits one order mutation together with its mirrored balance
// deltas and the applied flag. The order must still hold the value the plan
// saw, otherwise the step fails with ErrVersionConflict. A residual step
// records the customer's resulting balance as its settled-after value.
func (a *Allocator) applyStep(ctx context.Context, run *domain.SettlementRun, step *domain.Step) error {
	now := a.now()
	err := a.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		var status domain.Status
		if step.OrderID != "" {
			o, err := a.txs.GetForUpdate(ctx, tx, step.OrderID)
			if err != nil {
				return err
			}
			if o.Status == domain.StatusCanceled || !o.Settled(step.Side).Equal(step.SettledBefore) {
				return fmt.Errorf("order %s moved since planning: %w", o.OrderID, domain.ErrVersionConflict)
			}
			o.SetSettled(step.Side, step.SettledAfter)
			if status, err = o.ComputeStatus(); err != nil {
				return err
			}
			if err := a.txs.UpdateSettlement(ctx, tx, o.OrderID, o.SettledIn, o.SettledOut, status); err != nil {
				return err
			}
		}

		balance, err := a.balances.Add(ctx, tx, run.Customer, step.Currency, step.BalanceDelta)
		if err != nil {
			return err
		}
		if _, err := a.balances.Add(ctx, tx, a.company, step.Currency, step.BalanceDelta); err != nil {
			return err
		}
		settledAfter := step.SettledAfter
		if step.OrderID == "" {
			settledAfter = balance
		}
		if err := a.runs.MarkStepApplied(ctx, tx, run.ID, step.Seq, status, settledAfter, now); err != nil {
			return err
		}
		step.NewStatus = status
		step.SettledAfter = settledAfter
		return nil
	})
	if err != nil {
		return fmt.Errorf("applyStep %d: %w", step.Seq, err)
	}
	step.Applied = true
	step.AppliedAt = &now
	return nil
}

// complete writes the payment record carrying the original amount and closes
// the run.
func (a *Allocator) complete(ctx context.Context, run *domain.SettlementRun) error {
	now := a.now()
	payment := &domain.Transaction{
		Customer:    run.Customer,
		Kind:        domain.KindPayment,
		PaymentKind: run.Direction.PaymentKind(),
		Amount:      run.Amount,
		Rate:        decimal.Zero,
		Status:      domain.StatusSettled,
		CreatedAt:   now,
	}
	if run.Direction == domain.Outbound {
		payment.BaseCurrency = run.Currency
		payment.SettledOut = run.Amount
	} else {
		payment.QuoteCurrency = run.Currency
		payment.SettledIn = run.Amount
	}

	err := a.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		created := false
		for range paymentIDAttempts {
			payment.OrderID = paymentID(run.Direction, now)
			ok, err := a.txs.CreateIfAbsent(ctx, tx, payment)
			if err != nil {
				return err
			}
			if ok {
				created = true
				break
			}
		}
		if !created {
			return fmt.Errorf("no free payment id after %d attempts", paymentIDAttempts)
		}
		return a.runs.Complete(ctx, tx, run.ID, payment.OrderID, now)
	})
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}

	run.Status = domain.RunCompleted
	run.PaymentID = &payment.OrderID
	run.CompletedAt = &now
	return nil
}

func paymentID(dir domain.Direction, now time.Time) string {
	return fmt.Sprintf("%s-%d-%d", dir.PaymentIDPrefix(), now.Unix(), 1000+rand.IntN(9000))
}

// CancelPayment reverses a payment's lump balance effect on both the customer
// and the company. Order allocations made by the original run stay as they are.
func (a *Allocator) CancelPayment(ctx context.Context, paymentID string) (*domain.Transaction, error) {
	log := logging.FromContext(ctx).With("payment_id", paymentID)

	p, err := a.txs.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("CancelPayment: %w", domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("CancelPayment: %w", err)
	}
	if p.Kind != domain.KindPayment {
		return nil, fmt.Errorf("CancelPayment: %w", domain.ErrNotPayment)
	}

	currency := p.PaymentCurrency()
	release, err := a.locks.Lock(ctx, repository.LockKey(p.Customer, currency))
	if err != nil {
		return nil, fmt.Errorf("CancelPayment: %w: %w", domain.ErrPersistence, err)
	}
	defer release()

	now := a.now()
	err = a.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		locked, err := a.txs.GetForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if locked.Status == domain.StatusCanceled {
			return domain.ErrAlreadyCanceled
		}

		delta := locked.SettledIn.Neg()
		if locked.PaymentKind == domain.PaymentKindCompany {
			delta = locked.SettledOut
		}
		if _, err := a.balances.Add(ctx, tx, locked.Customer, currency, delta); err != nil {
			return err
		}
		if _, err := a.balances.Add(ctx, tx, a.company, currency, delta); err != nil {
			return err
		}
		if err := a.txs.MarkCanceled(ctx, tx, paymentID, now); err != nil {
			return err
		}
		p = locked
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyCanceled) {
			log.Error("payment cancellation failed", "error", err)
		}
		return nil, fmt.Errorf("CancelPayment: %w", err)
	}

	p.Status = domain.StatusCanceled
	p.CanceledAt = &now
	metrics.CancellationsTotal.WithLabelValues(string(domain.KindPayment)).Inc()
	log.Info("payment canceled", "customer", p.Customer, "currency", currency, "payment_kind", p.PaymentKind)
	return p, nil
}

func (a *Allocator) GetRun(ctx context.Context, id uuid.UUID) (*domain.SettlementRun, error) {
	run, err := a.runs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetRun: %w", err)
	}
	return run, nil
}

func (a *Allocator) GetRunByPayment(ctx context.Context, paymentID string) (*domain.SettlementRun, error) {
	run, err := a.runs.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("GetRunByPayment: %w", err)
	}
	return run, nil
}
