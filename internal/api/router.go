package api

import (
	"github.com/ayo6706/payment-console/internal/api/handler"
	"github.com/ayo6706/payment-console/internal/api/middleware"
	"github.com/ayo6706/payment-console/internal/api/spec"
	"github.com/ayo6706/payment-console/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Router wires HTTP routes onto the live console session.
type Router struct {
	cfg      *config.Config
	logger   *zap.Logger
	sessions handler.SessionProvider
	audit    handler.AuditLister
	db       *pgxpool.Pool
	redis    redis.Cmdable
}

// NewRouter builds the router. audit, db and redis may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, sessions handler.SessionProvider, audit handler.AuditLister, db *pgxpool.Pool, redis redis.Cmdable) *Router {
	return &Router{cfg: cfg, logger: logger, sessions: sessions, audit: audit, db: db, redis: redis}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis, api.sessions)
	dashboardHandler := handler.NewDashboardHandler(api.sessions)
	txHandler := handler.NewTransactionHandler(api.sessions, api.cfg.MaxEvidenceSizeBytes)
	sessionHandler := handler.NewSessionHandler(api.sessions)
	auditHandler := handler.NewAuditHandler(api.audit)

	// Public Routes
	r.Get("/livez", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Use(middleware.AuthMiddleware)

		r.Get("/v1/dashboard", dashboardHandler.GetDashboard)
		r.Get("/v1/dashboard/trend", dashboardHandler.GetTrend)
		r.Get("/v1/session", sessionHandler.Get)

		r.Get("/v1/transactions/pending", txHandler.ListPending)
		r.Get("/v1/transactions/approved", txHandler.ListApproved)
		r.Get("/v1/transactions/failed", txHandler.ListFailed)
		r.Get("/v1/transactions/{id}/audit", auditHandler.List)

		// Actions
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthRateLimiter(api.cfg.ActionRateLimitRPS))
			r.Post("/v1/transactions/{id}/approve", txHandler.Approve)
			r.Post("/v1/transactions/{id}/reject", txHandler.Reject)
			r.With(middleware.RequireRole("admin")).Post("/v1/session/restart", sessionHandler.Restart)
		})
	})

	return r
}
