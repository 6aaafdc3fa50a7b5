package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
	"github.com/shopspring/decimal"
)

type LedgerService struct {
	db          *repository.DB
	balances    balanceRepository
	adjustments adjustmentRepository
	expenses    expenseRepository
	locks       locker
	company     string
}

func NewLedgerService(db *repository.DB, balances balanceRepository, adjustments adjustmentRepository, expenses expenseRepository, locks locker, company string) *LedgerService {
	return &LedgerService{
		db:          db,
		balances:    balances,
		adjustments: adjustments,
		expenses:    expenses,
		locks:       locks,
		company:     company,
	}
}

func (s *LedgerService) Company() string {
	return s.company
}

// GetBalance returns a zero balance for a pair that was never touched.
func (s *LedgerService) GetBalance(ctx context.Context, customer string, currency domain.Currency) (*domain.Balance, error) {
	if !currency.IsValid() {
		return nil, fmt.Errorf("GetBalance: %w", domain.ErrInvalidCurrency)
	}
	b, err := s.balances.Get(ctx, customer, currency)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Balance{Customer: customer, Currency: currency, Amount: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}
	return b, nil
}

func (s *LedgerService) ListBalances(ctx context.Context, customer string) ([]domain.Balance, error) {
	list, err := s.balances.ListByCustomer(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("ListBalances: %w", err)
	}
	return list, nil
}

// ListDebts returns every non-company balance further than one cent from zero.
// An empty customer lists all customers.
func (s *LedgerService) ListDebts(ctx context.Context, customer string) ([]domain.Debt, error) {
	list, err := s.balances.ListExcept(ctx, s.company, customer)
	if err != nil {
		return nil, fmt.Errorf("ListDebts: %w", err)
	}
	var debts []domain.Debt
	for _, b := range list {
		if d, ok := domain.DebtFromBalance(b); ok {
			debts = append(debts, d)
		}
	}
	return debts, nil
}

// Adjust records a manual correction together with the equal balance delta.
func (s *LedgerService) Adjust(ctx context.Context, customer string, currency domain.Currency, amount decimal.Decimal, note string) (*domain.Adjustment, decimal.Decimal, error) {
	log := logging.FromContext(ctx)

	customer = strings.TrimSpace(customer)
	if customer == "" {
		return nil, decimal.Zero, fmt.Errorf("Adjust: customer: %w", domain.ErrInvalidRequest)
	}
	if !currency.IsValid() {
		return nil, decimal.Zero, fmt.Errorf("Adjust: %w", domain.ErrInvalidCurrency)
	}
	amount = domain.RoundMoney(amount)
	if amount.IsZero() {
		return nil, decimal.Zero, fmt.Errorf("Adjust: %w", domain.ErrInvalidAmount)
	}

	release, err := s.locks.Lock(ctx, repository.LockKey(customer, currency))
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("Adjust: %w", err)
	}
	defer release()

	adj := &domain.Adjustment{
		ID:        uuid.New(),
		Customer:  customer,
		Currency:  currency,
		Amount:    amount,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	var newBalance decimal.Decimal
	err = s.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.adjustments.Create(ctx, tx, adj); err != nil {
			return err
		}
		var err error
		newBalance, err = s.balances.Add(ctx, tx, customer, currency, amount)
		return err
	})
	if err != nil {
		log.Error("failed to record adjustment", "error", err, "customer", customer, "currency", currency)
		return nil, decimal.Zero, fmt.Errorf("Adjust: %w", err)
	}

	log.Info("balance adjusted", "customer", customer, "currency", currency, "amount", amount, "balance", newBalance)
	return adj, newBalance, nil
}

func (s *LedgerService) ListAdjustments(ctx context.Context, customer string) ([]domain.Adjustment, error) {
	list, err := s.adjustments.ListByCustomer(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("ListAdjustments: %w", err)
	}
	return list, nil
}

// AddExpense records an operating expense. Expenses never touch balances.
func (s *LedgerService) AddExpense(ctx context.Context, amount decimal.Decimal, currency domain.Currency, purpose string) (*domain.Expense, error) {
	amount = domain.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("AddExpense: %w", domain.ErrInvalidAmount)
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("AddExpense: %w", domain.ErrInvalidCurrency)
	}

	e := &domain.Expense{
		ID:        uuid.New(),
		Amount:    amount,
		Currency:  currency,
		Purpose:   strings.TrimSpace(purpose),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.expenses.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("AddExpense: %w", err)
	}
	logging.FromContext(ctx).Info("expense recorded", "expense_id", e.ID, "amount", amount, "currency", currency)
	return e, nil
}

func (s *LedgerService) ListExpenses(ctx context.Context, window domain.DateRange) ([]domain.Expense, error) {
	list, err := s.expenses.List(ctx, s.db.Conn(), window)
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: %w", err)
	}
	return list, nil
}

// PurgeCustomer deletes every record owned by a customer in one transaction.
// The company account cannot be purged.
func (s *LedgerService) PurgeCustomer(ctx context.Context, customer string) (domain.PurgeResult, error) {
	customer = strings.TrimSpace(customer)
	if customer == "" {
		return domain.PurgeResult{}, fmt.Errorf("PurgeCustomer: %w", domain.ErrInvalidRequest)
	}
	if strings.EqualFold(customer, s.company) {
		return domain.PurgeResult{}, fmt.Errorf("PurgeCustomer: %w", domain.ErrReservedCustomer)
	}

	var res domain.PurgeResult
	err := s.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		res, err = repository.PurgeCustomer(ctx, tx, customer)
		return err
	})
	if err != nil {
		return domain.PurgeResult{}, fmt.Errorf("PurgeCustomer: %w", err)
	}
	logging.FromContext(ctx).Warn("customer purged",
		"customer", customer,
		"balances", res.Balances,
		"transactions", res.Transactions,
		"adjustments", res.Adjustments,
		"settlement_runs", res.SettlementRuns,
	)
	return res, nil
}
