package pnl

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
	"github.com/shopspring/decimal"
)

type tradeLister interface {
	ListTrades(ctx context.Context, q repository.Querier, kind domain.TradeKind, window *domain.DateRange) ([]domain.Transaction, error)
}

type expenseLister interface {
	List(ctx context.Context, q repository.Querier, window domain.DateRange) ([]domain.Expense, error)
}

type costBasisSnapshotter interface {
	Snapshot(ctx context.Context, q repository.Querier) ([]domain.CostBasis, error)
}

// Report is the realized profit for every buy order in a window.
type Report struct {
	Window    domain.DateRange
	Rows      []Row
	CostBasis []domain.CostBasis
	Totals    map[domain.Currency]Totals
}

type Totals struct {
	Revenue decimal.Decimal
	Cost    decimal.Decimal
	Profit  decimal.Decimal
}

type Service struct {
	db       *repository.DB
	trades   tradeLister
	expenses expenseLister
	costs    costBasisSnapshotter
	tracked  []domain.Currency
}

func NewService(db *repository.DB, trades tradeLister, expenses expenseLister, costs costBasisSnapshotter, tracked ...domain.Currency) *Service {
	return &Service{db: db, trades: trades, expenses: expenses, costs: costs, tracked: tracked}
}

var snapshotTx = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// Report matches window buys against the full sell history. Every read runs
// in one repeatable-read snapshot so a concurrent settlement is either fully
// visible or not at all.
func (s *Service) Report(ctx context.Context, window domain.DateRange) (*Report, error) {
	log := logging.FromContext(ctx)

	var (
		buys, sells []domain.Transaction
		snapshot    []domain.CostBasis
	)
	err := s.db.WithTx(ctx, snapshotTx, func(tx *sql.Tx) error {
		var err error
		if buys, err = s.trades.ListTrades(ctx, tx, domain.KindBuy, &window); err != nil {
			return err
		}
		if sells, err = s.trades.ListTrades(ctx, tx, domain.KindSell, nil); err != nil {
			return err
		}
		snapshot, err = s.costs.Snapshot(ctx, tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Report: %w", err)
	}

	demands := make([]Demand, len(buys))
	for i, b := range buys {
		demands[i] = DemandFromBuy(b)
	}
	lots := make([]Lot, len(sells))
	for i, sl := range sells {
		lots[i] = LotFromSell(sl)
	}

	rows, err := Match(demands, lots, NewAverageCostConverter(snapshot), s.tracked)
	if err != nil {
		log.Error("lot matching failed", "error", err)
		return nil, fmt.Errorf("Report: %w", err)
	}

	totals := map[domain.Currency]Totals{}
	for _, r := range rows {
		t := totals[r.Quote]
		t.Revenue = t.Revenue.Add(r.Revenue)
		t.Cost = t.Cost.Add(r.Cost(r.Quote))
		t.Profit = t.Profit.Add(r.ProfitIn(r.Quote))
		totals[r.Quote] = t
	}

	log.Info("pnl report generated", "buys", len(buys), "sells", len(sells), "start", window.Start, "end", window.End)
	return &Report{Window: window, Rows: rows, CostBasis: snapshot, Totals: totals}, nil
}

// Summary totals settlement progress per currency for trades and expenses
// recorded in the window.
func (s *Service) Summary(ctx context.Context, window domain.DateRange) ([]CurrencySummary, error) {
	var (
		trades   []domain.Transaction
		expenses []domain.Expense
	)
	err := s.db.WithTx(ctx, snapshotTx, func(tx *sql.Tx) error {
		buys, err := s.trades.ListTrades(ctx, tx, domain.KindBuy, &window)
		if err != nil {
			return err
		}
		sells, err := s.trades.ListTrades(ctx, tx, domain.KindSell, &window)
		if err != nil {
			return err
		}
		trades = append(buys, sells...)
		expenses, err = s.expenses.List(ctx, tx, window)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	out, err := Summarize(trades, expenses)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	return out, nil
}
