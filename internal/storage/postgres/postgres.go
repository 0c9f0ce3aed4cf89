// Package postgres implements storage.StatusStore on top of PostgreSQL,
// grounded on the teacher's database/sql + lib/pq usage (server.go's
// sql.Open("postgres", ...) and database_handlers.go's query/scan style)
// and the backend's db-tagged persistence entities.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
	"github.com/ridgeline-labs/slope-scraper/internal/storage"
)

// Store is a postgres-backed storage.StatusStore.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and verifies connectivity.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrStorageFailure, "open postgres connection", err)
	}
	if err := db.Ping(); err != nil {
		return nil, models.NewScrapeError(models.ErrStorageFailure, "ping postgres", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Schema is the DDL this store expects. Migrations are the caller's
// responsibility; this is provided for local setup and tests.
const Schema = `
CREATE TABLE IF NOT EXISTS scraped_statuses (
	mountain_id  TEXT NOT NULL,
	is_open      BOOLEAN NOT NULL,
	percent_open INTEGER,
	lifts_open   INTEGER NOT NULL,
	lifts_total  INTEGER NOT NULL,
	runs_open    INTEGER NOT NULL,
	runs_total   INTEGER NOT NULL,
	acres_open   INTEGER,
	acres_total  INTEGER,
	message      TEXT,
	source_url   TEXT NOT NULL,
	data_url     TEXT NOT NULL,
	scraped_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (mountain_id, scraped_at)
);

CREATE TABLE IF NOT EXISTS run_records (
	run_id           TEXT PRIMARY KEY,
	triggered_by     TEXT NOT NULL,
	total_mountains  INTEGER NOT NULL,
	successful_count INTEGER NOT NULL DEFAULT 0,
	failed_count     INTEGER NOT NULL DEFAULT 0,
	duration_ms      BIGINT NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ,
	error_message    TEXT
);

CREATE TABLE IF NOT EXISTS failure_records (
	run_id        TEXT NOT NULL,
	mountain_id   TEXT NOT NULL,
	error_message TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	failed_at     TIMESTAMPTZ NOT NULL
);
`

func (s *Store) StartRun(ctx context.Context, triggeredBy string, totalMountains int) (string, error) {
	runID := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_records (run_id, triggered_by, total_mountains, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		runID, triggeredBy, totalMountains, models.RunRunning, time.Now().UTC())
	if err != nil {
		return "", models.NewScrapeError(models.ErrStorageFailure, "start run", err)
	}
	return runID, nil
}

func (s *Store) CompleteRun(ctx context.Context, runID string, successful, failed int, durationMS int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE run_records
		SET status = $1, successful_count = $2, failed_count = $3, duration_ms = $4, completed_at = $5
		WHERE run_id = $6`,
		models.RunCompleted, successful, failed, durationMS, time.Now().UTC(), runID)
	if err != nil {
		return models.NewScrapeError(models.ErrStorageFailure, "complete run", err)
	}
	return nil
}

func (s *Store) FailRun(ctx context.Context, runID string, errMessage string, durationMS int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE run_records
		SET status = $1, error_message = $2, duration_ms = $3, completed_at = $4
		WHERE run_id = $5`,
		models.RunFailed, errMessage, durationMS, time.Now().UTC(), runID)
	if err != nil {
		return models.NewScrapeError(models.ErrStorageFailure, "fail run", err)
	}
	return nil
}

// Save performs an idempotent insert keyed on (mountain_id, scraped_at).
// ON CONFLICT DO NOTHING makes a duplicate key a no-op instead of an error,
// matching the store contract's swallow-and-log semantics.
func (s *Store) Save(ctx context.Context, status models.ScrapedStatus) error {
	e := entityFromStatus(status)
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scraped_statuses
			(mountain_id, is_open, percent_open, lifts_open, lifts_total, runs_open, runs_total,
			 acres_open, acres_total, message, source_url, data_url, scraped_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (mountain_id, scraped_at) DO NOTHING`,
		e.MountainID, e.IsOpen, e.PercentOpen, e.LiftsOpen, e.LiftsTotal, e.RunsOpen, e.RunsTotal,
		e.AcresOpen, e.AcresTotal, e.Message, e.SourceURL, e.DataURL, e.ScrapedAt)
	if err != nil {
		return models.NewScrapeError(models.ErrStorageFailure, fmt.Sprintf("save status for %s", status.MountainID), err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		log.Printf("[INFO] postgres: duplicate status for %s at %s ignored", status.MountainID, status.ScrapedAt.Format(time.RFC3339Nano))
	}
	return nil
}

func (s *Store) SaveMany(ctx context.Context, statuses []models.ScrapedStatus) error {
	for _, status := range statuses {
		if err := s.Save(ctx, status); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveFailure(ctx context.Context, failure models.FailureRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failure_records (run_id, mountain_id, error_message, source_url, failed_at)
		VALUES ($1,$2,$3,$4,$5)`,
		failure.RunID, failure.MountainID, failure.ErrorMessage, failure.SourceURL, failure.FailedAt)
	if err != nil {
		return models.NewScrapeError(models.ErrStorageFailure, "save failure record", err)
	}
	return nil
}

func (s *Store) GetLatest(ctx context.Context, mountainID string) (models.ScrapedStatus, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT mountain_id, is_open, percent_open, lifts_open, lifts_total, runs_open, runs_total,
		       acres_open, acres_total, message, source_url, data_url, scraped_at
		FROM scraped_statuses
		WHERE mountain_id = $1
		ORDER BY scraped_at DESC
		LIMIT 1`, mountainID)

	var e statusEntity
	err := row.Scan(&e.MountainID, &e.IsOpen, &e.PercentOpen, &e.LiftsOpen, &e.LiftsTotal,
		&e.RunsOpen, &e.RunsTotal, &e.AcresOpen, &e.AcresTotal, &e.Message, &e.SourceURL, &e.DataURL, &e.ScrapedAt)
	if err == sql.ErrNoRows {
		return models.ScrapedStatus{}, false, nil
	}
	if err != nil {
		return models.ScrapedStatus{}, false, models.NewScrapeError(models.ErrStorageFailure, "get latest status", err)
	}
	return e.toDomain(), true, nil
}

func (s *Store) GetAllLatest(ctx context.Context) ([]models.ScrapedStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (mountain_id)
		       mountain_id, is_open, percent_open, lifts_open, lifts_total, runs_open, runs_total,
		       acres_open, acres_total, message, source_url, data_url, scraped_at
		FROM scraped_statuses
		ORDER BY mountain_id, scraped_at DESC`)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrStorageFailure, "get all latest statuses", err)
	}
	defer rows.Close()

	var out []models.ScrapedStatus
	for rows.Next() {
		var e statusEntity
		if err := rows.Scan(&e.MountainID, &e.IsOpen, &e.PercentOpen, &e.LiftsOpen, &e.LiftsTotal,
			&e.RunsOpen, &e.RunsTotal, &e.AcresOpen, &e.AcresTotal, &e.Message, &e.SourceURL, &e.DataURL, &e.ScrapedAt); err != nil {
			return nil, models.NewScrapeError(models.ErrStorageFailure, "scan latest status row", err)
		}
		out = append(out, e.toDomain())
	}
	return out, rows.Err()
}

func (s *Store) GetHistory(ctx context.Context, mountainID string, since time.Time) ([]models.ScrapedStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mountain_id, is_open, percent_open, lifts_open, lifts_total, runs_open, runs_total,
		       acres_open, acres_total, message, source_url, data_url, scraped_at
		FROM scraped_statuses
		WHERE mountain_id = $1 AND scraped_at >= $2
		ORDER BY scraped_at DESC`, mountainID, since)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrStorageFailure, "get status history", err)
	}
	defer rows.Close()

	var out []models.ScrapedStatus
	for rows.Next() {
		var e statusEntity
		if err := rows.Scan(&e.MountainID, &e.IsOpen, &e.PercentOpen, &e.LiftsOpen, &e.LiftsTotal,
			&e.RunsOpen, &e.RunsTotal, &e.AcresOpen, &e.AcresTotal, &e.Message, &e.SourceURL, &e.DataURL, &e.ScrapedAt); err != nil {
			return nil, models.NewScrapeError(models.ErrStorageFailure, "scan history row", err)
		}
		out = append(out, e.toDomain())
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	var stats storage.Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT mountain_id),
		       COALESCE(MIN(scraped_at), NOW()), COALESCE(MAX(scraped_at), NOW())
		FROM scraped_statuses`)
	if err := row.Scan(&stats.TotalRecords, &stats.MountainCount, &stats.OldestRecordAt, &stats.NewestRecordAt); err != nil {
		return storage.Stats{}, models.NewScrapeError(models.ErrStorageFailure, "compute stats", err)
	}

	lastRun := s.db.QueryRowContext(ctx, `
		SELECT run_id, status FROM run_records ORDER BY started_at DESC LIMIT 1`)
	if err := lastRun.Scan(&stats.LastRunID, &stats.LastRunStatus); err != nil && err != sql.ErrNoRows {
		return storage.Stats{}, models.NewScrapeError(models.ErrStorageFailure, "get last run", err)
	}

	recentCutoff := time.Now().UTC().Add(-storage.RecentRunsWindow)
	recentRun := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(successful_count), 0),
		       COALESCE(AVG(failed_count), 0),
		       COALESCE(AVG(duration_ms), 0)
		FROM run_records
		WHERE started_at >= $1`, recentCutoff)
	if err := recentRun.Scan(&stats.RecentRuns.Count, &stats.RecentRuns.AvgSuccess,
		&stats.RecentRuns.AvgFail, &stats.RecentRuns.AvgDurationMS); err != nil {
		return storage.Stats{}, models.NewScrapeError(models.ErrStorageFailure, "compute recent run stats", err)
	}
	return stats, nil
}

// Cleanup deletes records older than retention (spec §8 Scenario S6).
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result, err := s.db.ExecContext(ctx, `DELETE FROM scraped_statuses WHERE scraped_at < $1`, cutoff)
	if err != nil {
		return 0, models.NewScrapeError(models.ErrStorageFailure, "cleanup old statuses", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, models.NewScrapeError(models.ErrStorageFailure, "count cleaned rows", err)
	}
	return int(affected), nil
}

var _ storage.StatusStore = (*Store)(nil)
