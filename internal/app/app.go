package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/payment-console/internal/aggregation"
	"github.com/ayo6706/payment-console/internal/api"
	"github.com/ayo6706/payment-console/internal/api/handler"
	"github.com/ayo6706/payment-console/internal/api/middleware"
	"github.com/ayo6706/payment-console/internal/config"
	"github.com/ayo6706/payment-console/internal/db"
	"github.com/ayo6706/payment-console/internal/gateway"
	"github.com/ayo6706/payment-console/internal/idempotency"
	"github.com/ayo6706/payment-console/internal/identity"
	"github.com/ayo6706/payment-console/internal/ingest"
	"github.com/ayo6706/payment-console/internal/normalizer"
	"github.com/ayo6706/payment-console/internal/observability"
	"github.com/ayo6706/payment-console/internal/repository"
	"github.com/ayo6706/payment-console/internal/service"
	"github.com/ayo6706/payment-console/internal/session"
	"github.com/ayo6706/payment-console/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the console session and HTTP server, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool *pgxpool.Pool
	var auditLister handler.AuditLister
	auditWriter := service.AuditWriter(service.NopAuditWriter{})
	if cfg.DatabaseURL != "" {
		pool, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		auditRepo := repository.NewActionAuditRepository(pool)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			return err
		}
		auditWriter = auditRepo
		auditLister = auditRepo
	}

	var redisCmd redis.Cmdable
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		redisCmd = redisClient
	}

	norm, err := normalizer.New(cfg.FileBaseURL)
	if err != nil {
		return fmt.Errorf("init normalizer: %w", err)
	}
	resolver := identity.NewAnyFieldResolver(identity.WithMinNumericLength(cfg.MinNumericIDLength))

	effector, err := newEffector(cfg)
	if err != nil {
		return err
	}

	guard := idempotency.NewGuard(redisCmd, cfg.InFlightTTL)
	engine := aggregation.NewEngine(
		aggregation.WithLocation(cfg.DisplayTimezone),
		aggregation.WithCacheTTL(cfg.AggregateCacheTTL),
	)

	var fetcher worker.Fetcher
	if cfg.PollConfigured() {
		fetcher = ingest.NewPoller(cfg.PollEndpoints, ingest.WithPollToken(cfg.UpstreamToken))
	}
	var subscription worker.Subscription
	if cfg.PushURL != "" {
		subscription = ingest.NewSubscriber(cfg.PushURL,
			ingest.WithReconnectDelay(cfg.PushReconnectDelay),
			ingest.WithPushToken(cfg.UpstreamToken),
		)
	}
	if fetcher == nil && subscription == nil {
		logger.Warn("no poll endpoints or push url configured; the console will stay empty")
	}

	manager := session.NewManager(ctx, func() *session.Session {
		return session.New(session.Config{
			Fetcher:      fetcher,
			PollInterval: cfg.PollInterval,
			Subscription: subscription,
			Normalizer:   norm,
			Resolver:     resolver,
			Effector:     effector,
			Engine:       engine,
			CoordinatorOptions: []service.CoordinatorOption{
				service.WithFailurePolicy(cfg.FailurePolicy),
				service.WithGuard(guard),
				service.WithAuditWriter(auditWriter),
				service.AllowPayoutWithoutDestination(cfg.AllowNoDestination),
				service.WithEffectorTimeout(cfg.EffectorTimeout),
			},
		})
	})
	logger.Info("console session started",
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Bool("poll", fetcher != nil),
		zap.Bool("push", subscription != nil),
		zap.String("failure_policy", string(cfg.FailurePolicy)),
	)

	router := api.NewRouter(cfg, logger, manager, auditLister, pool, redisCmd)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.EffectorTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			manager.Close()
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("closing console session")
	manager.Close()

	logger.Info("shutdown complete")
	return nil
}

func newEffector(cfg *config.Config) (gateway.Effector, error) {
	if cfg.EffectorBaseURL == "" {
		zap.L().Warn("EFFECTOR_BASE_URL not set; using mock effector")
		return gateway.NewMockEffector(), nil
	}
	effector, err := gateway.NewHTTPEffector(cfg.EffectorBaseURL, cfg.EffectorTimeout,
		gateway.WithRateLimit(cfg.EffectorRPS, max(int(cfg.EffectorRPS), 1)),
		gateway.WithBearerToken(cfg.UpstreamToken),
	)
	if err != nil {
		return nil, fmt.Errorf("init effector: %w", err)
	}
	return effector, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
