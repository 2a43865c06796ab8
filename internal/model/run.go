package model

import "time"

// RunStatus is the lifecycle state of one pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one orchestrator pass over a category.
type Run struct {
	ID         string     `json:"id"`
	Category   string     `json:"category"`
	Status     RunStatus  `json:"status"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// EntityOutcome is the ledger entry for one job within a run.
type EntityOutcome struct {
	RunID       string `json:"run_id"`
	EntityID    string `json:"entity_id"`
	Status      Status `json:"status,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
	Error       string `json:"error,omitempty"`
}
