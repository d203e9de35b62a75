package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/compensation/internal/app"
	"github.com/odyssey-erp/compensation/internal/bonus"
	"github.com/odyssey-erp/compensation/internal/bonus/export"
	jobmetrics "github.com/odyssey-erp/compensation/internal/jobs"
	"github.com/odyssey-erp/compensation/internal/platform/cache"
	"github.com/odyssey-erp/compensation/internal/platform/db"
	"github.com/odyssey-erp/compensation/internal/shared"
	"github.com/odyssey-erp/compensation/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	bonusService := bonus.NewService(bonus.NewRepository(pool), bonus.ServiceConfig{
		Workers:  cfg.BonusWorkers,
		MaxLimit: cfg.ReportMaxLimit,
		Audit:    shared.NewAuditLogger(pool),
		Metrics:  bonus.NewMetrics(nil),
		Logger:   logger,
	})
	snapshotJob := jobs.NewBonusSnapshotJob(bonusService, cfg.SnapshotDir, export.NewFormatter(cfg.ExportLocale), logger, jobmetrics.NewMetrics(nil))
	if redisClient, err := cache.New(ctx, cfg.RedisOptions()); err != nil {
		logger.Warn("redis unavailable, snapshot lock disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		snapshotJob.Locker = redisClient
	}

	snapshotTask, err := jobs.NewBonusSnapshotTask("")
	if err != nil {
		logger.Error("build snapshot task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.AsynqRedisOpt(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBonusSnapshot, Handler: snapshotJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SnapshotCron, Task: snapshotTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("snapshot_cron", cfg.SnapshotCron), slog.String("snapshot_dir", cfg.SnapshotDir))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
