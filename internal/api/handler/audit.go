package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/ayo6706/payment-console/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuditLister reads persisted action history.
type AuditLister interface {
	ListByTransaction(ctx context.Context, transactionID string, limit int) ([]models.ActionAudit, error)
}

// AuditHandler serves action history when a database is configured.
type AuditHandler struct {
	audit AuditLister
}

func NewAuditHandler(audit AuditLister) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List handles GET /v1/transactions/{id}/audit?limit=50
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		RespondError(w, r, http.StatusNotFound, "audit/not-configured", "action history is not available")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit <= 0 || limit > 500 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-limit", "limit must be between 1 and 500")
		return
	}
	entries, err := h.audit.ListByTransaction(r.Context(), id, limit)
	if err != nil {
		zap.L().Error("list action audit failed", zap.Error(err), zap.String("transaction_id", id))
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
		return
	}
	if entries == nil {
		entries = []models.ActionAudit{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"items": entries})
}
