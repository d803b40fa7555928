package handler

import (
	"net/http"
	"time"

	"github.com/ayo6706/payment-console/internal/api/middleware"
	"github.com/ayo6706/payment-console/internal/session"
	"go.uber.org/zap"
)

// SessionHandler reports on and restarts the console session.
type SessionHandler struct {
	sessions SessionProvider
}

func NewSessionHandler(sessions SessionProvider) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SessionInfo describes the live session.
type SessionInfo struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	Version      uint64    `json:"version"`
	Generation   uint64    `json:"generation"`
	PendingCount int       `json:"pending_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Get handles GET /v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, sessionInfo(h.sessions.Current()))
}

// Restart handles POST /v1/session/restart. The old session is torn down and
// the new one starts empty.
func (h *SessionHandler) Restart(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Restart()
	zap.L().Info("session restarted",
		zap.String("session_id", sess.ID().String()),
		zap.String("actor_id", middleware.UserIDFromContext(r.Context())),
	)
	RespondJSON(w, http.StatusOK, sessionInfo(sess))
}

func sessionInfo(sess *session.Session) SessionInfo {
	snap := sess.Snapshot()
	return SessionInfo{
		ID:           sess.ID().String(),
		StartedAt:    sess.StartedAt(),
		Version:      snap.Version,
		Generation:   snap.Generation,
		PendingCount: snap.PendingCount(),
		UpdatedAt:    snap.UpdatedAt,
	}
}
