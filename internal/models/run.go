package models

import "time"

// RunStatus is the lifecycle state of a RunRecord.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord audits one orchestrated pass over some set of mountains.
type RunRecord struct {
	RunID            string     `json:"run_id"`
	TriggeredBy      string     `json:"triggered_by"`
	TotalMountains   int        `json:"total_mountains"`
	SuccessfulCount  int        `json:"successful_count"`
	FailedCount      int        `json:"failed_count"`
	DurationMS       int64      `json:"duration_ms"`
	Status           RunStatus  `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// FailureRecord is an optional per-mountain failure log entry for a run.
type FailureRecord struct {
	RunID        string    `json:"run_id"`
	MountainID   string    `json:"mountain_id"`
	ErrorMessage string    `json:"error_message"`
	SourceURL    string    `json:"source_url"`
	FailedAt     time.Time `json:"failed_at"`
}
