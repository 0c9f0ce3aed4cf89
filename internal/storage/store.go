// Package storage defines the persistence contract for scraped status
// history and run audit records, with two interchangeable backends
// (postgres, dynamo) plus an in-memory test double (memstore). See spec
// §4.7/§4.8.
package storage

import (
	"context"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

// RecentRunsWindow is how far back Stats looks when computing the
// recent_runs rollup (spec §4.7/§6: "last 7 days").
const RecentRunsWindow = 7 * 24 * time.Hour

// RunStats summarizes run_records over the last RecentRunsWindow (spec §6
// "stats() -> {..., recent_runs:{count, avg_success, avg_fail, avg_duration_ms}}").
type RunStats struct {
	Count         int     `json:"count"`
	AvgSuccess    float64 `json:"avg_success"`
	AvgFail       float64 `json:"avg_fail"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Stats summarizes the stored history for operational reporting (spec §6
// "stats").
type Stats struct {
	TotalRecords   int       `json:"total_records"`
	MountainCount  int       `json:"mountain_count"`
	OldestRecordAt time.Time `json:"oldest_record_at"`
	NewestRecordAt time.Time `json:"newest_record_at"`
	LastRunID      string    `json:"last_run_id"`
	LastRunStatus  string    `json:"last_run_status"`
	RecentRuns     RunStats  `json:"recent_runs"`
}

// StatusStore is the persistence contract every backend implements (spec
// §4.7). Implementations must make Save idempotent on (mountain_id,
// scraped_at): a duplicate key is swallowed, not an error surfaced to the
// caller as a failure.
type StatusStore interface {
	// StartRun records a new run as "running" and returns its run id.
	StartRun(ctx context.Context, triggeredBy string, totalMountains int) (string, error)
	// CompleteRun marks a run "completed" with final counts.
	CompleteRun(ctx context.Context, runID string, successful, failed int, durationMS int64) error
	// FailRun marks a run "failed" with a top-level error message.
	FailRun(ctx context.Context, runID string, errMessage string, durationMS int64) error

	// Save persists one scraped status. Duplicate (mountain_id, scraped_at)
	// keys are swallowed and logged, not returned as an error.
	Save(ctx context.Context, status models.ScrapedStatus) error
	// SaveMany persists a batch of statuses, continuing past individual
	// duplicate-key conflicts.
	SaveMany(ctx context.Context, statuses []models.ScrapedStatus) error
	// SaveFailure records a per-mountain failure for a run.
	SaveFailure(ctx context.Context, failure models.FailureRecord) error

	// GetLatest returns the most recent status for one mountain.
	GetLatest(ctx context.Context, mountainID string) (models.ScrapedStatus, bool, error)
	// GetAllLatest returns the most recent status for every mountain with
	// any recorded history.
	GetAllLatest(ctx context.Context) ([]models.ScrapedStatus, error)
	// GetHistory returns a mountain's statuses within [since, now], newest
	// first.
	GetHistory(ctx context.Context, mountainID string, since time.Time) ([]models.ScrapedStatus, error)

	// Stats reports aggregate counters over stored history.
	Stats(ctx context.Context) (Stats, error)
	// Cleanup deletes records older than the retention window and returns
	// the number of rows removed (spec §8 Scenario S6).
	Cleanup(ctx context.Context, retention time.Duration) (int, error)
}
