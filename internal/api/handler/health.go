package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthHandler exposes Kubernetes-style liveness and readiness endpoints.
type HealthHandler struct {
	db       *pgxpool.Pool
	redis    redis.Cmdable
	sessions SessionProvider
}

// NewHealthHandler builds the probes. db and redis are optional.
func NewHealthHandler(db *pgxpool.Pool, redis redis.Cmdable, sessions SessionProvider) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, sessions: sessions}
}

// Live always reports OK – if the process is up, it's live.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready checks the configured dependencies and that a session is open.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/database-unavailable", "database unavailable")
			return
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/redis-unavailable", "redis unavailable")
			return
		}
	}

	if h.sessions != nil && h.sessions.Current().Store().Closed() {
		RespondError(w, r, http.StatusServiceUnavailable, "session/closed", "session is restarting")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
