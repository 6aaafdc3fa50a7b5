package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/metrics"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
	"github.com/shopspring/decimal"
)

type CreateTradeRequest struct {
	Customer string
	Action   domain.TradeKind
	Amount   decimal.Decimal
	Base     domain.Currency
	Operator domain.Operator
	Rate     decimal.Decimal
	Quote    domain.Currency
}

type Money struct {
	Amount   decimal.Decimal
	Currency domain.Currency
}

// TradeResult summarises a recorded trade from the customer's side.
type TradeResult struct {
	Transaction      *domain.Transaction
	CustomerPays     Money
	CustomerReceives Money
	CostBasis        *domain.CostBasis
}

type TradeService struct {
	db        *repository.DB
	txs       transactionRepository
	balances  balanceRepository
	costBasis costBasisApplier
	locks     locker
	company   string
}

func NewTradeService(db *repository.DB, txs transactionRepository, balances balanceRepository, costBasis costBasisApplier, locks locker, company string) *TradeService {
	return &TradeService{
		db:        db,
		txs:       txs,
		balances:  balances,
		costBasis: costBasis,
		locks:     locks,
		company:   company,
	}
}

func (s *TradeService) validateTrade(req CreateTradeRequest) (CreateTradeRequest, error) {
	req.Customer = strings.TrimSpace(req.Customer)
	if req.Customer == "" {
		return req, fmt.Errorf("validateTrade: customer: %w", domain.ErrInvalidRequest)
	}
	if strings.EqualFold(req.Customer, s.company) {
		return req, fmt.Errorf("validateTrade: %w", domain.ErrReservedCustomer)
	}
	if req.Action != domain.KindBuy && req.Action != domain.KindSell {
		return req, fmt.Errorf("validateTrade: %w", domain.ErrInvalidAction)
	}
	req.Amount = domain.RoundMoney(req.Amount)
	if !req.Amount.IsPositive() {
		return req, fmt.Errorf("validateTrade: %w", domain.ErrInvalidAmount)
	}
	if !domain.ValidRate(req.Rate) {
		return req, fmt.Errorf("validateTrade: %w", domain.ErrInvalidRate)
	}
	if !req.Operator.IsValid() {
		return req, fmt.Errorf("validateTrade: %w", domain.ErrInvalidOperator)
	}
	if !req.Base.IsValid() || !req.Quote.IsValid() {
		return req, fmt.Errorf("validateTrade: %w", domain.ErrInvalidCurrency)
	}
	if req.Base == req.Quote {
		return req, fmt.Errorf("validateTrade: %w", domain.ErrSameCurrency)
	}
	return req, nil
}

// CreateTrade records a pending trade, applies its creation-time effect to the
// customer's balances and folds it into the cost basis, all in one
// transaction.
func (s *TradeService) CreateTrade(ctx context.Context, req CreateTradeRequest) (*TradeResult, error) {
	log := logging.FromContext(ctx)

	req, err := s.validateTrade(req)
	if err != nil {
		return nil, fmt.Errorf("CreateTrade: %w", err)
	}

	release, err := s.locks.Lock(ctx,
		repository.LockKey(req.Customer, req.Base),
		repository.LockKey(req.Customer, req.Quote),
	)
	if err != nil {
		return nil, fmt.Errorf("CreateTrade: %w", err)
	}
	defer release()

	t := &domain.Transaction{
		Customer:      req.Customer,
		Kind:          req.Action,
		BaseCurrency:  req.Base,
		QuoteCurrency: req.Quote,
		Amount:        req.Amount,
		Rate:          req.Rate,
		Operator:      req.Operator,
		Status:        domain.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	effect, err := t.CreationEffect()
	if err != nil {
		return nil, fmt.Errorf("CreateTrade: %w", err)
	}

	var cb *domain.CostBasis
	err = s.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		id, err := s.txs.NextOrderID(ctx, tx)
		if err != nil {
			return err
		}
		t.OrderID = id
		if err := s.txs.Create(ctx, tx, t); err != nil {
			return err
		}
		if _, err := s.balances.Add(ctx, tx, t.Customer, t.BaseCurrency, effect.Base); err != nil {
			return err
		}
		if _, err := s.balances.Add(ctx, tx, t.Customer, t.QuoteCurrency, effect.Quote); err != nil {
			return err
		}
		cb, err = s.costBasis.ApplyTrade(ctx, tx, t)
		return err
	})
	if err != nil {
		log.Error("failed to record trade", "error", err, "customer", req.Customer)
		return nil, fmt.Errorf("CreateTrade: %w", err)
	}

	metrics.TradesTotal.WithLabelValues(string(t.Kind)).Inc()
	log.Info("trade recorded",
		"order_id", t.OrderID,
		"customer", t.Customer,
		"kind", t.Kind,
		"amount", t.Amount,
		"base", t.BaseCurrency,
		"quote", t.QuoteCurrency,
		"rate", t.Rate,
		"operator", t.Operator,
	)

	res := &TradeResult{Transaction: t, CostBasis: cb}
	base := Money{Amount: t.Amount, Currency: t.BaseCurrency}
	quote := Money{Amount: effect.Quote.Abs(), Currency: t.QuoteCurrency}
	if t.Kind == domain.KindBuy {
		res.CustomerPays, res.CustomerReceives = quote, base
	} else {
		res.CustomerPays, res.CustomerReceives = base, quote
	}
	return res, nil
}

// CancelOrder reverses exactly the creation-time ledger effect of a trade and
// tombstones it. Settlement progress and cost basis are left untouched.
func (s *TradeService) CancelOrder(ctx context.Context, orderID string) (*domain.Transaction, error) {
	log := logging.FromContext(ctx).With("order_id", orderID)

	t, err := s.txs.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("CancelOrder: %w", domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("CancelOrder: %w", err)
	}
	if !t.IsTrade() {
		return nil, fmt.Errorf("CancelOrder: %w", domain.ErrNotTrade)
	}

	release, err := s.locks.Lock(ctx,
		repository.LockKey(t.Customer, t.BaseCurrency),
		repository.LockKey(t.Customer, t.QuoteCurrency),
	)
	if err != nil {
		return nil, fmt.Errorf("CancelOrder: %w", err)
	}
	defer release()

	now := time.Now().UTC()
	err = s.db.WithTx(ctx, nil, func(tx *sql.Tx) error {
		locked, err := s.txs.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if locked.Status == domain.StatusCanceled {
			return domain.ErrAlreadyCanceled
		}
		effect, err := locked.CreationEffect()
		if err != nil {
			return err
		}
		if _, err := s.balances.Add(ctx, tx, locked.Customer, locked.BaseCurrency, effect.Base.Neg()); err != nil {
			return err
		}
		if _, err := s.balances.Add(ctx, tx, locked.Customer, locked.QuoteCurrency, effect.Quote.Neg()); err != nil {
			return err
		}
		if err := s.txs.MarkCanceled(ctx, tx, orderID, now); err != nil {
			return err
		}
		t = locked
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyCanceled) {
			log.Error("failed to cancel order", "error", err)
		}
		return nil, fmt.Errorf("CancelOrder: %w", err)
	}

	t.Status = domain.StatusCanceled
	t.CanceledAt = &now
	metrics.CancellationsTotal.WithLabelValues(string(t.Kind)).Inc()
	log.Info("order canceled", "customer", t.Customer, "kind", t.Kind)
	return t, nil
}

func (s *TradeService) GetTransaction(ctx context.Context, orderID string) (*domain.Transaction, error) {
	t, err := s.txs.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetTransaction: %w", domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

const defaultHistoryLimit = 50

func (s *TradeService) ListCustomerTransactions(ctx context.Context, customer string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}
	list, err := s.txs.ListByCustomer(ctx, customer, limit)
	if err != nil {
		return nil, fmt.Errorf("ListCustomerTransactions: %w", err)
	}
	return list, nil
}
