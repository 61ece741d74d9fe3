package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/billing"
	"github.com/josh-kwaku/isp-billing/internal/config"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/josh-kwaku/isp-billing/internal/handler"
	"github.com/josh-kwaku/isp-billing/internal/logging"
	"github.com/josh-kwaku/isp-billing/internal/metrics"
	"github.com/josh-kwaku/isp-billing/internal/middleware"
	"github.com/josh-kwaku/isp-billing/internal/repository"
	"github.com/josh-kwaku/isp-billing/internal/service"
	"github.com/josh-kwaku/isp-billing/internal/service/recurring"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	runOnce  bool
	dryRun   bool
	date     string
	anchor   int
	customer string
}

func main() {
	var f flags
	flag.BoolVar(&f.runOnce, "run-once", false, "Run the anchors due on -date and exit instead of serving the schedule")
	flag.BoolVar(&f.dryRun, "dry-run", false, "With -run-once, print the results as CSV without writing anything")
	flag.StringVar(&f.date, "date", "", "Run date as YYYY-MM-DD in the billing timezone (default today)")
	flag.IntVar(&f.anchor, "anchor", 0, "With -run-once, bill this anchor (1, 5, 25, 30) instead of the anchors due on -date")
	flag.StringVar(&f.customer, "customer", "", "With -run-once, bill only this customer id")
	flag.Parse()

	if err := run(f); err != nil {
		slog.Error("billing worker failed", "error", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if f.runOnce {
		// stdout carries the dry-run CSV.
		slog.SetDefault(logging.New(os.Stderr, "billing-worker", cfg.LogLevel, cfg.AppEnv))
	} else {
		logging.Init("billing-worker", cfg.LogLevel, cfg.AppEnv)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	vat, err := cfg.VAT()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New(prometheus.NewRegistry())
	m.RegisterDBStats(db)

	engine := billing.NewEngine(loc)
	invoices := service.NewInvoiceService(repository.NewInvoiceRepository(db), m, service.InvoiceConfig{
		VATRate:  vat,
		DueDays:  cfg.InvoiceDueDays,
		Location: loc,
	})
	ledger := service.NewLedgerService(db,
		repository.NewBillingAccountRepository(db),
		repository.NewAdjustmentRepository(db),
		m,
	)
	runs := repository.NewBillingRunRepository(db)
	runner := recurring.NewRunner(engine,
		repository.NewCustomerServiceRepository(db),
		invoices, ledger, runs,
		repository.NewAdvisoryLocker(db),
		m,
	)
	scheduler, err := recurring.NewScheduler(runner, engine, cfg.BillingCron)
	if err != nil {
		return err
	}

	if f.runOnce {
		return runOnce(ctx, f, engine, runner, scheduler)
	}

	mux := http.NewServeMux()
	health := handler.NewHealthHandler(db)
	mux.HandleFunc("GET /health", health.Liveness)
	mux.HandleFunc("GET /ready", health.Readiness)
	mux.HandleFunc("GET /runs/latest", handler.NewRunsHandler(runs).Latest)
	mux.Handle("GET /metrics", m.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: otelhttp.NewHandler(
			middleware.Chain(mux, middleware.Recovery, middleware.RequestID, middleware.Logging),
			"billing-worker",
		),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("ops server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down ops server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return scheduler.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("billing worker stopped")
	return nil
}

func runOnce(ctx context.Context, f flags, engine *billing.Engine, runner *recurring.Runner, scheduler *recurring.Scheduler) error {
	opts := recurring.RunOptions{DryRun: f.dryRun}

	if f.date != "" {
		d, err := time.ParseInLocation(time.DateOnly, f.date, engine.Location())
		if err != nil {
			return fmt.Errorf("-date %q: %w", f.date, err)
		}
		opts.RunDate = d
	}
	if f.customer != "" {
		id, err := uuid.Parse(f.customer)
		if err != nil {
			return fmt.Errorf("-customer %q: %w", f.customer, err)
		}
		opts.CustomerID = &id
	}

	var (
		billed []*domain.BillingRun
		err    error
	)
	if f.anchor != 0 {
		if opts.Anchor, err = domain.ParseBillingAnchor(f.anchor); err != nil {
			return fmt.Errorf("-anchor: %w", err)
		}
		var r *domain.BillingRun
		if r, err = runner.Run(ctx, opts); r != nil {
			billed = append(billed, r)
		}
	} else {
		billed, err = scheduler.RunDueWith(ctx, opts)
	}

	if f.dryRun {
		for _, r := range billed {
			if werr := recurring.WriteCSV(os.Stdout, r); werr != nil {
				return errors.Join(err, werr)
			}
		}
	}
	return err
}

// connectDB retries while the database is still starting.
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
		slog.Info("waiting for database", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connectDB: %w", ctx.Err())
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
