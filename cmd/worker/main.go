package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/matbaa-erp/matbaa-erp/internal/app"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/balance"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/querycache"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/reconcile"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/reports"
	"github.com/matbaa-erp/matbaa-erp/internal/platform/cache"
	"github.com/matbaa-erp/matbaa-erp/internal/platform/db"
	"github.com/matbaa-erp/matbaa-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	queryCache := querycache.New(querycache.NewRedisStore(redisClient))

	maintenance := &jobs.Maintenance{
		Accounts:  accounts.NewService(accounts.NewRepository(pool)),
		Engine:    balance.NewEngine(balance.NewRepository(pool), queryCache, logger),
		Reconcile: reconcile.NewService(reconcile.NewRepository(pool), logger, cfg.DormantDays),
		Reports: reports.NewService(reports.NewRepository(pool), queryCache, logger, reports.Config{
			CashCodePrefix: cfg.CashCodePrefix,
			ReceivableCode: cfg.ReceivableCode,
			PayableCode:    cfg.PayableCode,
		}),
		Logger: logger,
	}

	snapshotTask, err := jobs.NewSnapshotSweepTask(jobs.SnapshotSweepPayload{})
	if err != nil {
		logger.Error("build snapshot task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  maintenance.Handlers(),
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: jobs.NewReconcileSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: snapshotTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: jobs.NewReportWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
