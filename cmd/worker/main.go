package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
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

	pool, err := db.New(ctx, db.PoolConfig{DSN: cfg.PGDSN, ConnectTimeout: 5 * time.Second})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	components := app.NewComponents(cfg, logger, pool, nil, prometheus.DefaultRegisterer)
	metrics := jobmetrics.NewMetrics(nil)

	recalcJob := jobs.NewBalanceRecalcJob(components.Ledger.Balances(), logger, metrics)
	integrityJob := jobs.NewGLIntegrityJob(components.Ledger, logger, metrics)
	retryJob := jobs.NewPostingsRetryJob(components.Hooks, components.Documents, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), cfg.IdempotencyRetention, logger, metrics)

	retryTask, err := jobs.NewPostingsRetryTask(jobs.DefaultRetryBatch)
	if err != nil {
		logger.Error("build retry task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBalancesRecalculate, Handler: recalcJob.Handle},
			{Type: jobs.TaskIntegrityCheck, Handler: integrityJob.Handle},
			{Type: jobs.TaskPostingsRetry, Handler: retryJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.LedgerRecalcCron, Task: jobs.NewBalancesRecalculateTask()},
			{Spec: cfg.LedgerIntegrityCron, Task: jobs.NewIntegrityCheckTask()},
			{Spec: cfg.LedgerRetryCron, Task: retryTask},
			{Spec: cfg.IdempotencyCleanupCron, Task: jobs.NewIdempotencyCleanupTask()},
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
