package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ayo6706/payment-console/internal/api/middleware"
	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/service"
	"github.com/ayo6706/payment-console/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultMaxEvidenceBytes = 10 << 20

// TransactionHandler exposes the reconciled collections and the approve and
// reject actions.
type TransactionHandler struct {
	sessions         SessionProvider
	maxEvidenceBytes int64
}

func NewTransactionHandler(sessions SessionProvider, maxEvidenceBytes int64) *TransactionHandler {
	if maxEvidenceBytes <= 0 {
		maxEvidenceBytes = defaultMaxEvidenceBytes
	}
	return &TransactionHandler{sessions: sessions, maxEvidenceBytes: maxEvidenceBytes}
}

// ListResponse wraps a collection with the snapshot version it was read from.
type ListResponse struct {
	Version uint64               `json:"version"`
	List    string               `json:"list,omitempty"`
	Items   []models.Transaction `json:"items"`
}

// ListPending handles GET /v1/transactions/pending?list=upi_topup
func (h *TransactionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Current().Snapshot()
	raw := strings.TrimSpace(r.URL.Query().Get("list"))
	if raw == "" {
		respondList(w, snap.Version, "", snap.AllPending())
		return
	}
	list := domain.PendingList(raw)
	if !list.Valid() {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-list", "unknown pending list")
		return
	}
	respondList(w, snap.Version, raw, snap.PendingFor(list))
}

// ListApproved handles GET /v1/transactions/approved
func (h *TransactionHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Current().Snapshot()
	respondList(w, snap.Version, "approved", snap.Approved)
}

// ListFailed handles GET /v1/transactions/failed
func (h *TransactionHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Current().Snapshot()
	respondList(w, snap.Version, "recent_failed", snap.RecentFailed)
}

func respondList(w http.ResponseWriter, version uint64, list string, items []models.Transaction) {
	if items == nil {
		items = []models.Transaction{}
	}
	RespondJSON(w, http.StatusOK, ListResponse{Version: version, List: list, Items: items})
}

// ApproveRequest is the body of an approve call.
type ApproveRequest struct {
	DestinationAccountID string `json:"destination_account_id"`
}

// Approve handles POST /v1/transactions/{id}/approve
func (h *TransactionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
			return
		}
	}

	sess := h.sessions.Current()
	tx, ok := h.lookup(w, r, sess)
	if !ok {
		return
	}
	result, err := sess.Coordinator().Approve(r.Context(), service.ApproveRequest{
		Transaction:          tx,
		DestinationAccountID: strings.TrimSpace(req.DestinationAccountID),
		ActorID:              middleware.UserIDFromContext(r.Context()),
	})
	h.respondAction(w, r, result, err)
}

// RejectRequest is the JSON form of a reject call. Multipart requests carry
// the same fields plus an optional "evidence" file part.
type RejectRequest struct {
	Reason      string `json:"reason"`
	EvidenceRef string `json:"evidence_ref"`
}

// Reject handles POST /v1/transactions/{id}/reject
func (h *TransactionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	reason, evidence, err := h.parseReject(r)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", err.Error())
		return
	}

	sess := h.sessions.Current()
	tx, ok := h.lookup(w, r, sess)
	if !ok {
		return
	}
	result, err := sess.Coordinator().Reject(r.Context(), service.RejectRequest{
		Transaction: tx,
		Reason:      reason,
		Evidence:    evidence,
		ActorID:     middleware.UserIDFromContext(r.Context()),
	})
	h.respondAction(w, r, result, err)
}

func (h *TransactionHandler) parseReject(r *http.Request) (string, *models.Evidence, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req RejectRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			return "", nil, errors.New("invalid request body")
		}
		var evidence *models.Evidence
		if ref := strings.TrimSpace(req.EvidenceRef); ref != "" {
			evidence = &models.Evidence{Ref: ref}
		}
		return req.Reason, evidence, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, h.maxEvidenceBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxEvidenceBytes); err != nil {
		return "", nil, errors.New("invalid multipart body")
	}
	evidence := &models.Evidence{Ref: strings.TrimSpace(r.FormValue("evidence_ref"))}
	file, header, err := r.FormFile("evidence")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return "", nil, errors.New("invalid evidence file")
	default:
		defer file.Close()
		content, err := io.ReadAll(io.LimitReader(file, h.maxEvidenceBytes+1))
		if err != nil {
			return "", nil, errors.New("invalid evidence file")
		}
		if int64(len(content)) > h.maxEvidenceBytes {
			return "", nil, errors.New("evidence file too large")
		}
		evidence.FileName = header.Filename
		evidence.ContentType = header.Header.Get("Content-Type")
		evidence.Content = content
	}
	if evidence.Empty() {
		evidence = nil
	}
	return r.FormValue("reason"), evidence, nil
}

func (h *TransactionHandler) lookup(w http.ResponseWriter, r *http.Request, sess *session.Session) (models.Transaction, bool) {
	ref := strings.TrimSpace(chi.URLParam(r, "id"))
	if ref == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-id", "transaction id is required")
		return models.Transaction{}, false
	}
	tx, ok := service.FindPending(sess.Snapshot(), sess.Store().Resolver(), ref)
	if !ok {
		RespondError(w, r, http.StatusNotFound, "transaction/not-pending", "no pending transaction matches this id")
		return models.Transaction{}, false
	}
	return tx, true
}

func (h *TransactionHandler) respondAction(w http.ResponseWriter, r *http.Request, result *service.ActionResult, err error) {
	if err != nil {
		status, problemType := mapActionError(err)
		if status == http.StatusInternalServerError {
			zap.L().Error("action failed", zap.Error(err), zap.String("path", r.URL.Path))
			RespondError(w, r, status, problemType, "unexpected server error")
			return
		}
		RespondError(w, r, status, problemType, err.Error())
		return
	}
	switch {
	case result.Discarded:
		RespondJSON(w, http.StatusServiceUnavailable, result)
	case result.OK():
		RespondJSON(w, http.StatusOK, result)
	default:
		RespondJSON(w, http.StatusBadGateway, result)
	}
}
