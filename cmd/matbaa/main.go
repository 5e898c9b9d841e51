package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/matbaa-erp/matbaa-erp/cmd/matbaa/cli"
	"github.com/matbaa-erp/matbaa-erp/internal/app"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/balance"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/entries"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/periods"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/querycache"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/reconcile"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/reports"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/rest"
	"github.com/matbaa-erp/matbaa-erp/internal/platform/cache"
	"github.com/matbaa-erp/matbaa-erp/internal/platform/db"
	"github.com/matbaa-erp/matbaa-erp/internal/shared"
	"github.com/matbaa-erp/matbaa-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	if len(os.Args) > 1 && os.Args[1] == "reset" {
		resetCLI := cli.NewResetCLI(dbpool, redisClient, logger)
		if err := resetCLI.Run(ctx, os.Args[2:]); err != nil {
			logger.Error("system reset", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	auditLogger := shared.NewAuditLogger(dbpool)
	queryCache := querycache.New(querycache.NewRedisStore(redisClient))

	accountsService := accounts.NewService(accounts.NewRepository(dbpool))
	periodsService := periods.NewService(periods.NewRepository(dbpool), cfg.AutoCreatePeriods)
	entriesService := entries.NewService(entries.NewRepository(dbpool), auditLogger, queryCache, periodsService, logger)
	engine := balance.NewEngine(balance.NewRepository(dbpool), queryCache, logger)
	reconcileService := reconcile.NewService(reconcile.NewRepository(dbpool), logger, cfg.DormantDays)
	reportsService := reports.NewService(reports.NewRepository(dbpool), queryCache, logger, reports.Config{
		CashCodePrefix: cfg.CashCodePrefix,
		ReceivableCode: cfg.ReceivableCode,
		PayableCode:    cfg.PayableCode,
	})

	ledgerHandler := rest.NewHandler(logger, accountsService, periodsService, entriesService,
		engine, reconcileService, reportsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		Pool:   dbpool,
		Ledger: ledgerHandler,
		Jobs:   jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = jobsCLI.Close() }()

	if len(args) == 0 {
		return errors.New("usage: matbaa jobs [trigger <task>|stats]")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: matbaa jobs trigger <task>")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
}
