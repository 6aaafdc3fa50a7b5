package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josh-kwaku/fx-settlement/internal/auth"
	"github.com/josh-kwaku/fx-settlement/internal/config"
	"github.com/josh-kwaku/fx-settlement/internal/costbasis"
	"github.com/josh-kwaku/fx-settlement/internal/domain"
	"github.com/josh-kwaku/fx-settlement/internal/handler"
	"github.com/josh-kwaku/fx-settlement/internal/logging"
	"github.com/josh-kwaku/fx-settlement/internal/metrics"
	"github.com/josh-kwaku/fx-settlement/internal/middleware"
	"github.com/josh-kwaku/fx-settlement/internal/pnl"
	"github.com/josh-kwaku/fx-settlement/internal/repository"
	"github.com/josh-kwaku/fx-settlement/internal/service"
	"github.com/josh-kwaku/fx-settlement/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("fx-settlement", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	app, err := newApp(ctx, cfg, db)
	if err != nil {
		slog.Error("failed to initialise engine", "error", err)
		os.Exit(1)
	}

	go sweepIdempotency(ctx, app.idempotency, cfg.IdempotencySweepInterval)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.routes(cfg),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr, "company", cfg.CompanyAccount,
			"tracked_pair", cfg.TrackedPairPrimary+"/"+cfg.TrackedPairSecondary)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

type app struct {
	db          *sql.DB
	idempotency *repository.IdempotencyRepository
	trades      *handler.TradeHandler
	settlements *handler.SettlementHandler
	ledger      *handler.LedgerHandler
	reports     *handler.ReportHandler
	health      *handler.HealthHandler
}

func newApp(ctx context.Context, cfg *config.Config, db *sql.DB) (*app, error) {
	pair, err := trackedPair(cfg)
	if err != nil {
		return nil, err
	}

	conn := repository.NewDB(db)
	txs := repository.NewTransactionRepository(db)
	balances := repository.NewBalanceRepository(db)
	expenses := repository.NewExpenseRepository(db)
	locks := repository.NewLocker(db)

	costs := costbasis.NewService(repository.NewCostBasisRepository(db), pair)
	if err := costs.EnsureSeeded(ctx); err != nil {
		return nil, fmt.Errorf("newApp: %w", err)
	}

	trades := service.NewTradeService(conn, txs, balances, costs, locks, cfg.CompanyAccount)
	ledger := service.NewLedgerService(conn, balances, repository.NewAdjustmentRepository(db), expenses, locks, cfg.CompanyAccount)
	allocator := settlement.NewAllocator(conn, txs, balances, repository.NewSettlementRepository(db), locks, cfg.CompanyAccount)
	reports := pnl.NewService(conn, txs, expenses, costs, pair.Primary, pair.Secondary)

	return &app{
		db:          db,
		idempotency: repository.NewIdempotencyRepository(db),
		trades:      handler.NewTradeHandler(trades),
		settlements: handler.NewSettlementHandler(allocator),
		ledger:      handler.NewLedgerHandler(ledger),
		reports:     handler.NewReportHandler(reports, costs, db),
		health:      handler.NewHealthHandler(db),
	}, nil
}

func trackedPair(cfg *config.Config) (costbasis.Pair, error) {
	primary, err := domain.ParseCurrency(cfg.TrackedPairPrimary)
	if err != nil {
		return costbasis.Pair{}, fmt.Errorf("trackedPair: %w", err)
	}
	secondary, err := domain.ParseCurrency(cfg.TrackedPairSecondary)
	if err != nil {
		return costbasis.Pair{}, fmt.Errorf("trackedPair: %w", err)
	}
	return costbasis.Pair{Primary: primary, Secondary: secondary}, nil
}

func (a *app) routes(cfg *config.Config) http.Handler {
	authn := middleware.Auth(cfg.JWTSecret)
	idem := middleware.Idempotency(a.idempotency, cfg.IdempotencyTTL)
	clerk := middleware.RequireRole(auth.RoleClerk)
	admin := middleware.RequireRole(auth.RoleAdmin)

	read := func(h http.HandlerFunc) http.Handler {
		return authn(h)
	}
	write := func(h http.HandlerFunc) http.Handler {
		return authn(clerk(idem(h)))
	}
	adminWrite := func(h http.HandlerFunc) http.Handler {
		return authn(admin(idem(h)))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.health.Liveness)
	mux.HandleFunc("GET /health/ready", a.health.Readiness)
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	mux.Handle("POST /api/v1/trades", write(a.trades.Create))
	mux.Handle("GET /api/v1/trades/{id}", read(a.trades.Get))
	mux.Handle("POST /api/v1/trades/{id}/cancel", write(a.trades.Cancel))
	mux.Handle("GET /api/v1/customers/{customer}/transactions", read(a.trades.ListByCustomer))

	mux.Handle("POST /api/v1/settlements/received", write(a.settlements.Received))
	mux.Handle("POST /api/v1/settlements/paid", write(a.settlements.Paid))
	mux.Handle("GET /api/v1/settlements/{id}", read(a.settlements.Get))
	mux.Handle("GET /api/v1/payments/{id}/settlement", read(a.settlements.GetByPayment))
	mux.Handle("POST /api/v1/payments/{id}/cancel", write(a.settlements.CancelPayment))

	mux.Handle("GET /api/v1/balances/{customer}", read(a.ledger.ListBalances))
	mux.Handle("GET /api/v1/balances/{customer}/{currency}", read(a.ledger.GetBalance))
	mux.Handle("GET /api/v1/debts", read(a.ledger.ListDebts))
	mux.Handle("POST /api/v1/adjustments", write(a.ledger.Adjust))
	mux.Handle("GET /api/v1/customers/{customer}/adjustments", read(a.ledger.ListAdjustments))
	mux.Handle("POST /api/v1/expenses", write(a.ledger.AddExpense))
	mux.Handle("GET /api/v1/expenses", read(a.ledger.ListExpenses))
	mux.Handle("DELETE /api/v1/customers/{customer}", adminWrite(a.ledger.PurgeCustomer))

	mux.Handle("GET /api/v1/cost-basis", read(a.reports.CostBasis))
	mux.Handle("GET /api/v1/reports/pnl", read(a.reports.PnL))
	mux.Handle("GET /api/v1/reports/summary", read(a.reports.Summary))

	// the mux sets r.Pattern on the request it receives, so metrics must wrap
	// it directly to see the route label
	var h http.Handler = mux
	if cfg.MetricsEnabled {
		h = metrics.Middleware(h)
	}
	h = middleware.Logging(h)
	h = middleware.Recovery(h)
	h = middleware.Tracing(h)
	return h
}

func sweepIdempotency(ctx context.Context, repo *repository.IdempotencyRepository, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				slog.Warn("idempotency sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("idempotency entries expired", "count", n)
			}
		}
	}
}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var err error
	for i := range 30 {
		var db *sql.DB
		if db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connectDB: %w", ctx.Err())
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
