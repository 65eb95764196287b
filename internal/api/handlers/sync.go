package handlers

import (
	"context"
	"net/http"

	"github.com/ndewijer/fci-sync/internal/api/response"
	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/service"
)

// SyncHandler exposes the sync status and lets clients trigger a run.
type SyncHandler struct {
	syncService *service.SyncService
	// runCtx bounds runs started over HTTP; it outlives single requests.
	runCtx context.Context
}

// NewSyncHandler creates a new SyncHandler. Runs started through Trigger
// are cancelled with runCtx.
func NewSyncHandler(runCtx context.Context, syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		runCtx:      runCtx,
	}
}

// Status returns the dashboard status. While a run is active in this
// process, the live progress replaces the persisted sync block.
//
// Endpoint: GET /api/status
// Response: 200 OK with SyncStatus
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.syncService.Status().Current(r.Context())
	if err != nil {
		response.RespondError(w, statusForError(err), "failed to compute status", err.Error())
		return
	}

	if h.syncService.Running() {
		p := h.syncService.Progress()
		status.Sync = &p
	}

	respondJSON(w, http.StatusOK, status)
}

// SyncStateResponse is the body of GET /api/sync.
type SyncStateResponse struct {
	Running    bool               `json:"running"`
	Progress   model.SyncProgress `json:"progress"`
	LastReport *model.SyncReport  `json:"lastReport,omitempty"`
}

// State returns the progress of the current run and the last report.
//
// Endpoint: GET /api/sync
func (h *SyncHandler) State(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, SyncStateResponse{
		Running:    h.syncService.Running(),
		Progress:   h.syncService.Progress(),
		LastReport: h.syncService.LastReport(),
	})
}

// TriggerResponse is the body of a successful POST /api/sync.
type TriggerResponse struct {
	RunID string          `json:"runId"`
	State model.SyncState `json:"state"`
}

// Trigger starts a sync in the background.
//
// Endpoint: POST /api/sync
// Response: 202 Accepted with TriggerResponse
// Error: 409 Conflict when a run is already in progress
func (h *SyncHandler) Trigger(w http.ResponseWriter, _ *http.Request) {
	runID, err := h.syncService.Start(h.runCtx)
	if err != nil {
		response.RespondError(w, statusForError(err), "failed to start sync", err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, TriggerResponse{RunID: runID, State: model.StateRunning})
}
