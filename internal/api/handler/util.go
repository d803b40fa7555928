package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/payment-console/internal/api/problem"
	"github.com/ayo6706/payment-console/internal/idempotency"
	"github.com/ayo6706/payment-console/internal/service"
	"github.com/ayo6706/payment-console/internal/session"
)

// SessionProvider exposes the live console session.
type SessionProvider interface {
	Current() *session.Session
	Restart() *session.Session
}

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// mapActionError translates coordinator precondition errors into problem responses.
func mapActionError(err error) (status int, problemType string) {
	switch {
	case errors.Is(err, service.ErrMissingDestination):
		return http.StatusUnprocessableEntity, "action/missing-destination"
	case errors.Is(err, service.ErrMissingReason):
		return http.StatusUnprocessableEntity, "action/missing-reason"
	case errors.Is(err, service.ErrMissingEvidence):
		return http.StatusUnprocessableEntity, "action/missing-evidence"
	case errors.Is(err, service.ErrNoIdentity):
		return http.StatusUnprocessableEntity, "action/no-identity"
	case errors.Is(err, service.ErrAlreadyInProgress), errors.Is(err, idempotency.ErrInProgress):
		return http.StatusConflict, "action/in-progress"
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusServiceUnavailable, "session/closed"
	default:
		return http.StatusInternalServerError, "internal-server-error"
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
