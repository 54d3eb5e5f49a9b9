package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kis-labs/webbuilder/internal/actionlog"
	"github.com/kis-labs/webbuilder/internal/app"
	jobmetrics "github.com/kis-labs/webbuilder/internal/jobs"
	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/jobs"
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

	manager := db.NewManager(db.Connector(cfg.DSN(), cfg.PGMaxConns), logger, db.WithConnectTimeout(cfg.PGConnectTimeout))
	defer manager.Close()

	handlers := actionlog.NewHandlers(
		actionlog.NewManagedStore(manager),
		jobmetrics.NewMetrics(prometheus.DefaultRegisterer),
		logger,
	)

	var cron []jobs.CronRegistration
	if cfg.ActionLogRetention > 0 {
		purgeTask, err := actionlog.NewPurgeTask(cfg.ActionLogRetention)
		if err != nil {
			logger.Error("build purge task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.ActionLogPurgeCron,
			Task:    purgeTask,
			Options: []asynq.Option{asynq.Queue(jobs.QueueLow), asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis().AsynqOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: actionlog.TaskRecord, Handler: handlers.HandleRecord},
			{Type: actionlog.TaskPurge, Handler: handlers.HandlePurge},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadTimeout: cfg.AppReadTimeout}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
