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
	"golang.org/x/sync/errgroup"

	"github.com/quoteboard/quoteboard/internal/app"
	"github.com/quoteboard/quoteboard/internal/auth"
	"github.com/quoteboard/quoteboard/internal/auth/password"
	"github.com/quoteboard/quoteboard/internal/content"
	"github.com/quoteboard/quoteboard/internal/observability"
	"github.com/quoteboard/quoteboard/internal/platform/cache"
	"github.com/quoteboard/quoteboard/internal/platform/db"
	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/roles"
	"github.com/quoteboard/quoteboard/internal/shared"
	"github.com/quoteboard/quoteboard/internal/users"
	"github.com/quoteboard/quoteboard/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("quoteboard exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// Roles are fixed after bootstrap; load them once.
	registry := rbac.NewRegistry(roles.NewRepository(pool))
	if err := registry.Load(ctx); err != nil {
		return err
	}
	for _, def := range roles.Seed() {
		if _, ok := registry.ByName(def.Name); !ok {
			return shared.Wrap(shared.ErrRoleNotFound, errors.New("role "+def.Name+" not seeded"))
		}
	}

	metrics := observability.NewMetrics()
	engine := rbac.NewEngine(registry, metrics, logger)
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(auth.NewRepository(pool), password.NewHasher(password.DefaultParams), registry, logger)
	rbacMiddleware := rbac.Middleware{Engine: engine, Resolver: authService, Logger: logger}

	manager := content.NewManager(content.NewRepository(pool, auditLogger), engine, logger, content.WithRecorder(metrics))
	usersService := users.NewService(users.NewRepository(pool, auditLogger), engine, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBACMiddleware: rbacMiddleware,
		AuthHandler:    auth.NewHandler(logger, authService, sessionManager, csrfManager),
		ContentHandler: content.NewHandler(logger, manager),
		UsersHandler:   users.NewHandler(logger, usersService, rbacMiddleware),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.Int("roles", registry.Len()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
