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

	"github.com/kis-labs/webbuilder/internal/actionlog"
	"github.com/kis-labs/webbuilder/internal/app"
	"github.com/kis-labs/webbuilder/internal/auth"
	"github.com/kis-labs/webbuilder/internal/gate"
	"github.com/kis-labs/webbuilder/internal/observability"
	"github.com/kis-labs/webbuilder/internal/password"
	"github.com/kis-labs/webbuilder/internal/platform/cache"
	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/platform/ratelimit"
	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/internal/projects"
	"github.com/kis-labs/webbuilder/internal/token"
	"github.com/kis-labs/webbuilder/internal/users"
	"github.com/kis-labs/webbuilder/jobs"
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
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("wbapi", slog.Any("error", err))
		os.Exit(1)
	}
}

// run owns every resource it opens so deferred closes always execute.
func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Built before any resource is opened.
	codec, err := token.NewCodec(cfg.Token())
	if err != nil {
		return fmt.Errorf("init token codec: %w", err)
	}

	// The database is connected on first use; see db.Manager.
	manager := db.NewManager(db.Connector(cfg.DSN(), cfg.PGMaxConns), logger, db.WithConnectTimeout(cfg.PGConnectTimeout))
	defer manager.Close()

	jobClient := jobs.NewClient(cfg.Redis().AsynqOpt())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	var (
		authLimiter func(http.Handler) http.Handler
		recorder    actionlog.Recorder = actionlog.Nop{}
	)
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, auth rate limiting and action log disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		limiter, err := ratelimit.New(redisClient, cfg.AuthRateLimit, cfg.AuthRateWindow, logger)
		if err != nil {
			return fmt.Errorf("init auth limiter: %w", err)
		}
		authLimiter = limiter.Middleware
		recorder = actionlog.NewQueueRecorder(jobClient, logger)
	}

	inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	hasher := password.NewHasher(cfg.BcryptCost)
	metrics := observability.NewMetrics()
	authGate := gate.New(codec, manager, logger, gate.WithObserver(metrics))

	authService := auth.NewService(principal.NewStore(manager), hasher, codec, recorder, logger)
	usersService := users.NewService(nil, hasher, recorder)
	projectsService := projects.NewService(nil, recorder, logger, cfg.DuplicateMaxAttempts)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Database:        manager,
		AuthHandler:     auth.NewHandler(logger, authService),
		AuthLimiter:     authLimiter,
		UsersHandler:    users.NewHandler(logger, usersService, authGate),
		ProjectsHandler: projects.NewHandler(logger, projectsService, authGate),
		JobHandler:      jobs.NewHandler(inspector, logger),
		JobGuard:        authGate.Require(principal.RoleAdmin),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
