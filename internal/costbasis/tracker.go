// Package costbasis keeps the two weighted-average accumulators for the
// tracked currency pair.
package costbasis

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
	"github.com/shopspring/decimal"
)

// Pair is the tracked currency pair. Both directions are accumulated.
type Pair struct {
	Primary   domain.Currency
	Secondary domain.Currency
}

func (p Pair) Matches(a, b domain.Currency) bool {
	return (a == p.Primary && b == p.Secondary) || (a == p.Secondary && b == p.Primary)
}

func (p Pair) Contains(c domain.Currency) bool {
	return c == p.Primary || c == p.Secondary
}

// Other returns the tracked currency that is not c.
func (p Pair) Other(c domain.Currency) domain.Currency {
	if c == p.Primary {
		return p.Secondary
	}
	return p.Primary
}

// Update is one qualifying trade's contribution to an accumulator.
type Update struct {
	AcquiredCurrency domain.Currency
	SpentCurrency    domain.Currency
	Acquired         decimal.Decimal
	Spent            decimal.Decimal
}

func (u Update) Direction() string {
	return domain.DirectionKey(u.AcquiredCurrency, u.SpentCurrency)
}

// UpdateFor derives the accumulator update for a trade. On a buy the company
// receives the quote currency and pays out the base; on a sell it is the
// reverse. Trades outside the tracked pair report false.
func UpdateFor(p Pair, t *domain.Transaction) (Update, bool, error) {
	if !t.IsTrade() || !p.Matches(t.BaseCurrency, t.QuoteCurrency) {
		return Update{}, false, nil
	}
	quote, err := t.ExpectedQuote()
	if err != nil {
		return Update{}, false, fmt.Errorf("UpdateFor: %w", err)
	}
	if t.Kind == domain.KindBuy {
		return Update{
			AcquiredCurrency: t.QuoteCurrency,
			SpentCurrency:    t.BaseCurrency,
			Acquired:         quote,
			Spent:            t.Amount,
		}, true, nil
	}
	return Update{
		AcquiredCurrency: t.BaseCurrency,
		SpentCurrency:    t.QuoteCurrency,
		Acquired:         t.Amount,
		Spent:            quote,
	}, true, nil
}

type costBasisRepo interface {
	Ensure(ctx context.Context, acquired, spent domain.Currency) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, direction string) (*domain.CostBasis, error)
	Save(ctx context.Context, tx *sql.Tx, cb *domain.CostBasis) error
	List(ctx context.Context, q repository.Querier) ([]domain.CostBasis, error)
}

type Service struct {
	repo costBasisRepo
	pair Pair
}

func NewService(repo costBasisRepo, pair Pair) *Service {
	return &Service{repo: repo, pair: pair}
}

func (s *Service) Pair() Pair {
	return s.pair
}

// EnsureSeeded creates both zero-valued accumulators. Existing ones are never
// reset.
func (s *Service) EnsureSeeded(ctx context.Context) error {
	if err := s.repo.Ensure(ctx, s.pair.Primary, s.pair.Secondary); err != nil {
		return fmt.Errorf("EnsureSeeded: %w", err)
	}
	if err := s.repo.Ensure(ctx, s.pair.Secondary, s.pair.Primary); err != nil {
		return fmt.Errorf("EnsureSeeded: %w", err)
	}
	return nil
}

// ApplyTrade folds a trade into its accumulator inside the caller's
// transaction. It returns nil when the trade does not qualify.
func (s *Service) ApplyTrade(ctx context.Context, tx *sql.Tx, t *domain.Transaction) (*domain.CostBasis, error) {
	u, ok, err := UpdateFor(s.pair, t)
	if err != nil {
		return nil, fmt.Errorf("ApplyTrade: %w", err)
	}
	if !ok {
		return nil, nil
	}

	cb, err := s.repo.GetForUpdate(ctx, tx, u.Direction())
	if err != nil {
		return nil, fmt.Errorf("ApplyTrade: %w", err)
	}
	next := cb.Add(u.Acquired, u.Spent)
	next.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, tx, &next); err != nil {
		return nil, fmt.Errorf("ApplyTrade: %w", err)
	}

	logging.FromContext(ctx).Debug("cost basis updated",
		"direction", next.Direction,
		"order_id", t.OrderID,
		"total_acquired", next.TotalAcquired,
		"total_spent", next.TotalSpent,
		"average_cost", next.AverageCost,
	)
	return &next, nil
}

func (s *Service) Snapshot(ctx context.Context, q repository.Querier) ([]domain.CostBasis, error) {
	list, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: %w", err)
	}
	return list, nil
}
