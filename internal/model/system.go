package model

import "time"

// SyncStatus is the status artifact consumed by the dashboard. Counts are
// derived from storage on demand, never maintained incrementally.
type SyncStatus struct {
	TotalFunds    int           `json:"totalFunds"`
	EnrichedFunds int           `json:"enrichedFunds"`
	ProgressPct   float64       `json:"progressPct"`
	LastUpdate    time.Time     `json:"lastUpdate"`
	Sync          *SyncProgress `json:"sync,omitempty"`
}

// SyncProgress is the in-flight part of the status artifact.
type SyncProgress struct {
	RunID     string    `json:"runId,omitempty"`
	State     SyncState `json:"state"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Message   string    `json:"message"`
}
