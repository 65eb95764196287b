package model

import "time"

// SyncAction is the outcome of reconciling one class against upstream.
type SyncAction string

const (
	ActionSkip   SyncAction = "skip"
	ActionUpdate SyncAction = "update"
	ActionPrune  SyncAction = "prune"
	// ActionFailed marks a task whose detail fetch failed; it is logged and skipped.
	ActionFailed SyncAction = "failed"
)

// SyncState is the state of the batch runner.
type SyncState string

const (
	StateIdle      SyncState = "idle"
	StateRunning   SyncState = "running"
	StateCompleted SyncState = "completed"
	StatePaused    SyncState = "paused"
	StateFailed    SyncState = "failed"
)

// SyncCheckpoint is the persisted job progress marker. ProcessedCount is an
// index into the flattened task list, not a statement about data freshness.
type SyncCheckpoint struct {
	ProcessedCount int `json:"processedCount"`
}

// SyncTaskFailure records a task that was logged and skipped.
type SyncTaskFailure struct {
	Index   int    `json:"index"`
	FundID  string `json:"fundId"`
	ClassID string `json:"classId"`
	Error   string `json:"error"`
}

// SyncReport summarizes one run of the batch runner.
type SyncReport struct {
	RunID      string             `json:"runId"`
	State      SyncState          `json:"state"`
	Total      int                `json:"total"`
	ResumedAt  int                `json:"resumedAt"`
	Processed  int                `json:"processed"`
	Actions    map[SyncAction]int `json:"actions"`
	Failures   []SyncTaskFailure  `json:"failures,omitempty"`
	Writes     int                `json:"writes"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Error      string             `json:"error,omitempty"`
}

// Count records one task outcome.
func (r *SyncReport) Count(a SyncAction) {
	if r.Actions == nil {
		r.Actions = make(map[SyncAction]int)
	}
	r.Actions[a]++
	if a == ActionUpdate || a == ActionPrune {
		r.Writes++
	}
}
