package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/fci-sync/internal/api/request"
	"github.com/ndewijer/fci-sync/internal/api/response"
	"github.com/ndewijer/fci-sync/internal/service"
)

// FundHandler handles HTTP requests for fund class endpoints.
// It parses requests and delegates to the FundService.
type FundHandler struct {
	fundService *service.FundService
}

// NewFundHandler creates a new FundHandler with the provided service dependency.
func NewFundHandler(fundService *service.FundService) *FundHandler {
	return &FundHandler{
		fundService: fundService,
	}
}

// FundClasses handles GET requests to list stored fund classes.
//
// Endpoint: GET /api/funds
// Query parameters: currency, incomeType, manager, enriched (all optional)
// Response: 200 OK with array of FundClassSummary
// Error: 400 Bad Request for invalid filters, 500 if retrieval fails
func (h *FundHandler) FundClasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := request.ParseFundClassFilter(q.Get("currency"), q.Get("incomeType"), q.Get("manager"), q.Get("enriched"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}

	classes, err := h.fundService.ListFundClasses(r.Context(), *filter)
	if err != nil {
		response.RespondError(w, statusForError(err), "failed to retrieve fund classes", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, classes)
}

// FundClass handles GET requests for one fund class with its composition.
//
// Endpoint: GET /api/funds/{classId}
// Response: 200 OK with FundClassDetail
// Error: 404 Not Found when the class is not stored, 500 if retrieval fails
func (h *FundHandler) FundClass(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classId")

	detail, err := h.fundService.GetFundClass(r.Context(), classID)
	if err != nil {
		status := statusForError(err)
		msg := "failed to retrieve fund class"
		if status == http.StatusNotFound {
			msg = "fund class not found"
		}
		response.RespondError(w, status, msg, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, detail)
}
