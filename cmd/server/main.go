package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/opp-checkout/internal/adapter/opp"
	"github.com/yourorg/opp-checkout/internal/circuitbreaker"
	"github.com/yourorg/opp-checkout/internal/config"
	"github.com/yourorg/opp-checkout/internal/lock"
	"github.com/yourorg/opp-checkout/internal/logging"
	"github.com/yourorg/opp-checkout/internal/order"
	"github.com/yourorg/opp-checkout/internal/order/postgres"
	"github.com/yourorg/opp-checkout/internal/reporting"
	"github.com/yourorg/opp-checkout/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNewLogger(cfg.Logging.ServiceName, cfg.Logging.Env)
	defer func() { _ = logger.Sync() }()

	if !cfg.EnvFileLoaded {
		logger.Info("no .env file found, using system environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.Logging.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.TracingEnabled {
		_, shutdown, err := telemetry.InitTracer(cfg.Logging.ServiceName, cfg.Logging.Env, os.Stdout)
		if err != nil {
			logger.Fatal("failed to initialise tracing", zap.Error(err))
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	audit, err := logging.NewAuditLog(cfg.Logging.AuditLogDir)
	if err != nil {
		logger.Fatal("failed to open audit log", zap.Error(err))
	}
	defer func() { _ = audit.Sync() }()

	repo, err := newRepository(cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up order repository", zap.Error(err))
	}
	locker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up order lock", zap.Error(err))
	}

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
	})
	gateway := opp.NewAdapter(cfg.Credentials(), repo,
		opp.WithHTTPClient(&http.Client{Timeout: cfg.Gateway.HTTPTimeout}),
		opp.WithLogger(logger),
		opp.WithAudit(audit),
		opp.WithBreaker(breaker),
		opp.WithBrands(cfg.Gateway.Brands),
	)
	logger.Info("payment gateway configured",
		zap.String("base_url", gateway.BaseURL()),
		zap.Any("credentials", cfg.Credentials().Redacted()),
	)

	router := setupRouter(serverDeps{
		serviceName: cfg.Logging.ServiceName,
		publicURL:   cfg.Server.PublicURL,
		lockTTL:     cfg.Server.LockTTL,
		repo:        repo,
		gateway:     gateway,
		locker:      locker,
		reporter:    reporting.NewHistoryReporter(opp.CodeCheckoutCreated, opp.CodeTransactionSucceeded),
		logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newRepository(cfg *config.Config, logger *zap.Logger) (order.Repository, error) {
	if cfg.Database.DSN == "" {
		logger.Warn("DATABASE_DSN not set, orders are kept in memory")
		return order.NewMemoryRepository(), nil
	}
	db, err := postgres.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	return postgres.NewRepository(db), nil
}

func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, error) {
	if cfg.Redis.Addr == "" {
		logger.Warn("REDIS_ADDR not set, order locks are local to this process")
		return lock.NewMemoryLocker(), nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	return lock.NewRedisLocker(client), nil
}
