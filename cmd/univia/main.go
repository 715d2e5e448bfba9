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

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/univia-admin/univia/internal/app"
	"github.com/univia-admin/univia/internal/auth"
	"github.com/univia-admin/univia/internal/observability"
	"github.com/univia-admin/univia/internal/platform/cache"
	"github.com/univia-admin/univia/internal/platform/db"
	"github.com/univia-admin/univia/internal/rbac"
	"github.com/univia-admin/univia/internal/secrets"
	"github.com/univia-admin/univia/internal/security"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	hierarchy := rbac.NewHierarchy(cfg.HierarchyConfig())
	permissions := rbac.NewPermissionEvaluator(logger, rbac.PermissionEvaluatorConfig{
		AuditResources: cfg.AuditResources,
		AuditRoles:     cfg.AuditRoles,
	})
	rbacMiddleware := rbac.Middleware{
		Permissions: permissions,
		Tenancy:     rbac.TenantGuard{CentralTenant: cfg.CentralTenant},
		Logger:      logger,
		Observer:    metrics,
	}

	counterStore := security.NewMemoryStore()
	limiter := security.NewLimiter(counterStore, cfg.RateRules(), logger)
	detector := security.NewDetector(cfg.DetectorConfig())
	recorder := security.NewRecorder(pool)
	securityMiddleware := &security.Middleware{
		Limiter:  limiter,
		Detector: detector,
		Events:   recorder,
		Observer: metrics,
		Logger:   logger,
	}

	lockouts := auth.NewLockoutStore(redisClient, cfg.LockoutThreshold, cfg.LockoutTTL)
	aggregator := security.NewAggregator(limiter, detector, lockouts, logger)

	codec := auth.NewTokenCodec(cfg.TokenSecret)
	verifier := auth.NewDirectoryVerifier(pool)
	loginHandler := auth.NewHandler(logger, verifier, lockouts, codec, cfg.TokenTTL)

	encryption, err := secrets.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Error("init encryption", slog.Any("error", err))
		os.Exit(1)
	}

	roles := make([]string, 0, len(cfg.RoleLevels))
	for name := range cfg.RoleLevels {
		roles = append(roles, name)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Auth:         auth.Middleware{Codec: codec, Logger: logger},
		LoginHandler: loginHandler,
		RBAC:         rbacMiddleware,
		Security:     securityMiddleware,
		Stats:        aggregator,
		Encryption:   encryption,
		Hierarchy:    hierarchy,
		Roles:        roles,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return counterStore.Run(gctx, cfg.RateSweepInterval)
	})
	group.Go(func() error {
		return detector.Run(gctx, cfg.SuspiciousVolumeWindow)
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runtime", slog.Any("error", err))
		os.Exit(1)
	}
}
