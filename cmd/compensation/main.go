package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/compensation/internal/app"
	"github.com/odyssey-erp/compensation/internal/auth"
	"github.com/odyssey-erp/compensation/internal/bonus"
	"github.com/odyssey-erp/compensation/internal/bonus/export"
	bonushttp "github.com/odyssey-erp/compensation/internal/bonus/http"
	"github.com/odyssey-erp/compensation/internal/observability"
	"github.com/odyssey-erp/compensation/internal/platform/cache"
	"github.com/odyssey-erp/compensation/internal/platform/db"
	"github.com/odyssey-erp/compensation/internal/rbac"
	"github.com/odyssey-erp/compensation/internal/shared"
	"github.com/odyssey-erp/compensation/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisOptions()); err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	engineMetrics := bonus.NewMetrics(metrics.Registerer())

	reportCache := bonus.NewReportCache(redisClient, cfg.ReportCacheTTL, engineMetrics, logger)

	bonusService := bonus.NewService(bonus.NewRepository(dbpool), bonus.ServiceConfig{
		Workers:  cfg.BonusWorkers,
		MaxLimit: cfg.ReportMaxLimit,
		Cache:    reportCache,
		Audit:    shared.NewAuditLogger(dbpool),
		Metrics:  engineMetrics,
		Logger:   logger,
	})

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		logger.Error("init token service", slog.Any("error", err))
		os.Exit(1)
	}

	rbacService := rbac.NewService(rbac.DefaultPolicy())
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	inspector := asynq.NewInspector(cfg.AsynqRedisOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Auth:               auth.Middleware{Tokens: tokens, Logger: logger},
		RBACMiddleware:     rbacMiddleware,
		BonusHandler:       bonushttp.NewHandler(logger, bonusService, rbacMiddleware, export.NewFormatter(cfg.ExportLocale)),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
