package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/josh-kwaku/fx-settlement/internal/auth"
	"github.com/josh-kwaku/fx-settlement/internal/config"
	"github.com/josh-kwaku/fx-settlement/internal/costbasis"
	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/pnl"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
	"github.com/josh-kwaku/fx-settlement/internal/service"
	"github.com/josh-kwaku/fx-settlement/internal/settlement"
)

// engine is the read side of the service wired against the configured database.
type engine struct {
	cfg       *config.Config
	db        *sql.DB
	ledger    *service.LedgerService
	costs     *costbasis.Service
	reports   *pnl.Service
	allocator *settlement.Allocator
}

func openEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, "fxctl", cfg.LogLevel, "development"))

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     4,
		MaxIdleConns:     2,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		return nil, err
	}

	primary, err := domain.ParseCurrency(cfg.TrackedPairPrimary)
	if err != nil {
		db.Close()
		return nil, err
	}
	secondary, err := domain.ParseCurrency(cfg.TrackedPairSecondary)
	if err != nil {
		db.Close()
		return nil, err
	}

	conn := repository.NewDB(db)
	txs := repository.NewTransactionRepository(db)
	balances := repository.NewBalanceRepository(db)
	expenses := repository.NewExpenseRepository(db)
	locks := repository.NewLocker(db)
	costs := costbasis.NewService(repository.NewCostBasisRepository(db), costbasis.Pair{Primary: primary, Secondary: secondary})

	return &engine{
		cfg:       cfg,
		db:        db,
		ledger:    service.NewLedgerService(conn, balances, repository.NewAdjustmentRepository(db), expenses, locks, cfg.CompanyAccount),
		costs:     costs,
		reports:   pnl.NewService(conn, txs, expenses, costs, primary, secondary),
		allocator: settlement.NewAllocator(conn, txs, balances, repository.NewSettlementRepository(db), locks, cfg.CompanyAccount),
	}, nil
}

func (e *engine) Close() {
	e.db.Close()
}

// withEngine runs fn against a freshly opened engine and maps errors to exit
// codes.
func withEngine(ctx context.Context, fn func(e *engine) error) subcommands.ExitStatus {
	e, err := openEngine(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	if err := fn(e); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

type tokenCmd struct {
	role   string
	expiry time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "mint an operator bearer token" }
func (*tokenCmd) Usage() string {
	return `fxctl token [-role clerk] [-expiry 12h] <operator>

  Prints a signed token for the named operator using JWT_SECRET.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.role, "role", string(auth.RoleClerk), "Operator role (admin, clerk, viewer)")
	f.DurationVar(&c.expiry, "expiry", 0, "Token lifetime (defaults to JWT_EXPIRY)")
}

func (c *tokenCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	expiry := c.expiry
	if expiry == 0 {
		expiry = cfg.JWTExpiry
	}
	token, err := auth.GenerateToken(f.Arg(0), auth.Role(c.role), cfg.JWTSecret, expiry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	fmt.Println(token)
	return subcommands.ExitSuccess
}

type balanceCmd struct{}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "show a customer's balances" }
func (*balanceCmd) Usage() string {
	return `fxctl balance <customer> [currency]
`
}
func (*balanceCmd) SetFlags(*flag.FlagSet) {}

func (c *balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 || f.NArg() > 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	customer := f.Arg(0)

	return withEngine(ctx, func(e *engine) error {
		var list []domain.Balance
		if f.NArg() == 2 {
			currency, err := domain.ParseCurrency(f.Arg(1))
			if err != nil {
				return err
			}
			b, err := e.ledger.GetBalance(ctx, customer, currency)
			if err != nil {
				return err
			}
			list = []domain.Balance{*b}
		} else {
			var err error
			if list, err = e.ledger.ListBalances(ctx, customer); err != nil {
				return err
			}
		}

		tw := table(os.Stdout)
		fmt.Fprintln(tw, "CURRENCY\tAMOUNT\t")
		for _, b := range list {
			fmt.Fprintf(tw, "%s\t%s\t\n", b.Currency, b.Amount.StringFixed(2))
		}
		return tw.Flush()
	})
}

type debtsCmd struct {
	customer string
}

func (*debtsCmd) Name() string     { return "debts" }
func (*debtsCmd) Synopsis() string { return "list outstanding customer balances" }
func (*debtsCmd) Usage() string {
	return `fxctl debts [-customer <name>]
`
}

func (c *debtsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.customer, "customer", "", "Restrict to one customer")
}

func (c *debtsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withEngine(ctx, func(e *engine) error {
		debts, err := e.ledger.ListDebts(ctx, c.customer)
		if err != nil {
			return err
		}
		tw := table(os.Stdout)
		fmt.Fprintln(tw, "CUSTOMER\tCURRENCY\tAMOUNT\tDIRECTION\t")
		for _, d := range debts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", d.Customer, d.Currency, d.Amount.StringFixed(2), d.Direction)
		}
		return tw.Flush()
	})
}

type costBasisCmd struct{}

func (*costBasisCmd) Name() string     { return "costbasis" }
func (*costBasisCmd) Synopsis() string { return "show the weighted-average cost accumulators" }
func (*costBasisCmd) Usage() string {
	return `fxctl costbasis
`
}
func (*costBasisCmd) SetFlags(*flag.FlagSet) {}

func (c *costBasisCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withEngine(ctx, func(e *engine) error {
		list, err := e.costs.Snapshot(ctx, e.db)
		if err != nil {
			return err
		}
		tw := table(os.Stdout)
		fmt.Fprintln(tw, "DIRECTION\tACQUIRED\tSPENT\tAVERAGE\t")
		for _, cb := range list {
			fmt.Fprintf(tw, "%s\t%s %s\t%s %s\t%s\t\n", cb.Direction,
				cb.TotalAcquired.StringFixed(2), cb.AcquiredCurrency,
				cb.TotalSpent.StringFixed(2), cb.SpentCurrency,
				cb.AverageCost.String())
		}
		return tw.Flush()
	})
}

type windowFlag struct {
	raw string
}

func (w *windowFlag) register(f *flag.FlagSet) {
	f.StringVar(&w.raw, "range", "", "DD/MM/YYYY-DD/MM/YYYY or a single day (defaults to the current month)")
}

func (w *windowFlag) parse() (domain.DateRange, error) {
	return domain.ParseDateRange(w.raw, time.Now())
}

type pnlCmd struct {
	window windowFlag
}

func (*pnlCmd) Name() string     { return "pnl" }
func (*pnlCmd) Synopsis() string { return "realised profit per buy order" }
func (*pnlCmd) Usage() string {
	return `fxctl pnl [-range <range>]
`
}

func (c *pnlCmd) SetFlags(f *flag.FlagSet) { c.window.register(f) }

func (c *pnlCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	window, err := c.window.parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withEngine(ctx, func(e *engine) error {
		rep, err := e.reports.Report(ctx, window)
		if err != nil {
			return err
		}
		tw := table(os.Stdout)
		fmt.Fprintln(tw, "ORDER\tCUSTOMER\tPAIR\tREVENUE\tCOST\tPROFIT\tUNMATCHED\t")
		for _, r := range rep.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%s\t%s\t%s\t%s\t\n",
				r.OrderID, r.Customer, r.Base, r.Quote,
				r.Revenue.StringFixed(2), r.Cost(r.Quote).StringFixed(2),
				r.ProfitIn(r.Quote).StringFixed(2), r.Unmatched.StringFixed(2))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for currency, t := range rep.Totals {
			fmt.Printf("%s: revenue %s cost %s profit %s\n", currency,
				t.Revenue.StringFixed(2), t.Cost.StringFixed(2), t.Profit.StringFixed(2))
		}
		return nil
	})
}

type summaryCmd struct {
	window windowFlag
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "per-currency settlement summary" }
func (*summaryCmd) Usage() string {
	return `fxctl summary [-range <range>]
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) { c.window.register(f) }

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	window, err := c.window.parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withEngine(ctx, func(e *engine) error {
		list, err := e.reports.Summary(ctx, window)
		if err != nil {
			return err
		}
		tw := table(os.Stdout)
		fmt.Fprintln(tw, "CURRENCY\tINCOME\tRECEIVED\tEXPENSE\tPAID\tEXPENSES\tCREDIT\tNET\t")
		for _, s := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", s.Currency,
				s.TotalIncome.StringFixed(2), s.ActualIncome.StringFixed(2),
				s.TotalExpense.StringFixed(2), s.ActualExpense.StringFixed(2),
				s.Expenses.StringFixed(2), s.CreditBalance.StringFixed(2), s.Net().StringFixed(2))
		}
		return tw.Flush()
	})
}

type traceCmd struct{}

func (*traceCmd) Name() string     { return "trace" }
func (*traceCmd) Synopsis() string { return "print the allocation trace of a settlement" }
func (*traceCmd) Usage() string {
	return `fxctl trace <run-id | payment-id>

  Accepts either a settlement run UUID or a payment order id (PAY-R..., PAY-P...).
`
}
func (*traceCmd) SetFlags(*flag.FlagSet) {}

func (c *traceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	ref := strings.TrimSpace(f.Arg(0))

	return withEngine(ctx, func(e *engine) error {
		var (
			run *domain.SettlementRun
			err error
		)
		if id, perr := uuid.Parse(ref); perr == nil {
			run, err = e.allocator.GetRun(ctx, id)
		} else {
			run, err = e.allocator.GetRunByPayment(ctx, ref)
		}
		if err != nil {
			return err
		}

		fmt.Printf("run %s  %s %s %s %s  status=%s\n", run.ID, run.Customer, run.Direction,
			run.Amount.StringFixed(2), run.Currency, run.Status)
		tw := table(os.Stdout)
		fmt.Fprintln(tw, "PHASE\tORDER\tSIDE\tAPPLIED\tSTATUS\t")
		for _, t := range run.Trace() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", t.Phase, t.OrderID, t.Side, t.AmountApplied.StringFixed(2), t.NewStatus)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Printf("offset %s  residual %s\n", run.OffsetTotal.StringFixed(2), run.Residual.StringFixed(2))
		return nil
	})
}
