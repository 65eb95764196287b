package handlers

import (
	"net/http"

	"github.com/ndewijer/fci-sync/internal/api/response"
	"github.com/ndewijer/fci-sync/internal/service"
)

// AnalyticsHandler serves the market-wide composition analytics.
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// Market handles GET requests for the analytics report.
//
// Endpoint: GET /api/analytics
// Response: 200 OK with Analytics
// Error: 500 if the aggregation fails
func (h *AnalyticsHandler) Market(w http.ResponseWriter, r *http.Request) {
	report, err := h.analyticsService.Market(r.Context())
	if err != nil {
		response.RespondError(w, statusForError(err), "failed to compute analytics", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, report)
}
