package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
	"github.com/shopspring/decimal"
)

type transactionRepository interface {
	NextOrderID(ctx context.Context, tx *sql.Tx) (string, error)
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, orderID string) (*domain.Transaction, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*domain.Transaction, error)
	ListByCustomer(ctx context.Context, customer string, limit int) ([]domain.Transaction, error)
	MarkCanceled(ctx context.Context, tx *sql.Tx, orderID string, at time.Time) error
}

type balanceRepository interface {
	Add(ctx context.Context, tx *sql.Tx, customer string, currency domain.Currency, delta decimal.Decimal) (decimal.Decimal, error)
	Get(ctx context.Context, customer string, currency domain.Currency) (*domain.Balance, error)
	ListByCustomer(ctx context.Context, customer string) ([]domain.Balance, error)
	ListExcept(ctx context.Context, exclude, customer string) ([]domain.Balance, error)
}

type adjustmentRepository interface {
	Create(ctx context.Context, tx *sql.Tx, a *domain.Adjustment) error
	ListByCustomer(ctx context.Context, customer string) ([]domain.Adjustment, error)
}

type expenseRepository interface {
	Create(ctx context.Context, e *domain.Expense) error
	List(ctx context.Context, q repository.Querier, window domain.DateRange) ([]domain.Expense, error)
}

type costBasisApplier interface {
	ApplyTrade(ctx context.Context, tx *sql.Tx, t *domain.Transaction) (*domain.CostBasis, error)
}

type locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}
