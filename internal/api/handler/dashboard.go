package handler

import (
	"fmt"
	"net/http"

	"github.com/ayo6706/payment-console/internal/aggregation"
)

// DashboardHandler serves the rollups computed from the live session.
type DashboardHandler struct {
	sessions SessionProvider
}

func NewDashboardHandler(sessions SessionProvider) *DashboardHandler {
	return &DashboardHandler{sessions: sessions}
}

// GetDashboard handles GET /v1/dashboard?days=7
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	days, ok := parseWindow(w, r)
	if !ok {
		return
	}
	RespondJSON(w, http.StatusOK, h.sessions.Current().Dashboard(days))
}

// TrendResponse is one trend series over the requested window.
type TrendResponse struct {
	Series aggregation.Series       `json:"series"`
	Days   int                      `json:"days"`
	Points []aggregation.TrendPoint `json:"points"`
}

// GetTrend handles GET /v1/dashboard/trend?series=approved&days=30
func (h *DashboardHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	days, ok := parseWindow(w, r)
	if !ok {
		return
	}
	series, err := aggregation.ParseSeries(r.URL.Query().Get("series"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-series", err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, TrendResponse{
		Series: series,
		Days:   days,
		Points: h.sessions.Current().Trend(series, days),
	})
}

func parseWindow(w http.ResponseWriter, r *http.Request) (int, bool) {
	days, err := queryInt(r, "days", aggregation.DefaultDays)
	if err != nil || !aggregation.ValidWindow(days) {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-days",
			fmt.Sprintf("days must be one of %v", aggregation.Windows))
		return 0, false
	}
	return days, true
}
