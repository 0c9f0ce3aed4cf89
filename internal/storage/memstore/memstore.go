// Package memstore is an in-memory StatusStore used by engine, aggregator,
// and server tests that need a real store without a database, and by the
// CLI as its default --store. It honors the same idempotency and retention
// semantics as the real backends.
package memstore

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
	"github.com/ridgeline-labs/slope-scraper/internal/storage"
)

type key struct {
	mountainID string
	scrapedAt  int64
}

// Store is a mutex-guarded, process-local StatusStore.
type Store struct {
	mu        sync.Mutex
	byKey     map[key]models.ScrapedStatus
	byMountain map[string][]key
	runs      map[string]*models.RunRecord
	failures  []models.FailureRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byKey:      make(map[key]models.ScrapedStatus),
		byMountain: make(map[string][]key),
		runs:       make(map[string]*models.RunRecord),
	}
}

func (s *Store) StartRun(ctx context.Context, triggeredBy string, totalMountains int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.runs[id] = &models.RunRecord{
		RunID:          id,
		TriggeredBy:    triggeredBy,
		TotalMountains: totalMountains,
		Status:         models.RunRunning,
		StartedAt:      time.Now().UTC(),
	}
	return id, nil
}

func (s *Store) CompleteRun(ctx context.Context, runID string, successful, failed int, durationMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("memstore: unknown run %q", runID)
	}
	now := time.Now().UTC()
	run.Status = models.RunCompleted
	run.SuccessfulCount = successful
	run.FailedCount = failed
	run.DurationMS = durationMS
	run.CompletedAt = &now
	return nil
}

func (s *Store) FailRun(ctx context.Context, runID string, errMessage string, durationMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("memstore: unknown run %q", runID)
	}
	now := time.Now().UTC()
	run.Status = models.RunFailed
	run.ErrorMessage = errMessage
	run.DurationMS = durationMS
	run.CompletedAt = &now
	return nil
}

func (s *Store) Save(ctx context.Context, status models.ScrapedStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(status)
}

func (s *Store) saveLocked(status models.ScrapedStatus) error {
	k := key{mountainID: status.MountainID, scrapedAt: status.ScrapedAt.UnixNano()}
	if _, exists := s.byKey[k]; exists {
		// Idempotent insert: duplicate (mountain_id, scraped_at) is swallowed.
		log.Printf("[INFO] memstore: duplicate status for %s at %s ignored", status.MountainID, status.ScrapedAt.Format(time.RFC3339Nano))
		return nil
	}
	s.byKey[k] = status
	s.byMountain[status.MountainID] = append(s.byMountain[status.MountainID], k)
	return nil
}

func (s *Store) SaveMany(ctx context.Context, statuses []models.ScrapedStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, status := range statuses {
		if err := s.saveLocked(status); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveFailure(ctx context.Context, failure models.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	return nil
}

func (s *Store) GetLatest(ctx context.Context, mountainID string) (models.ScrapedStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.byMountain[mountainID]
	if len(keys) == 0 {
		return models.ScrapedStatus{}, false, nil
	}
	latest := keys[0]
	for _, k := range keys[1:] {
		if k.scrapedAt > latest.scrapedAt {
			latest = k
		}
	}
	return s.byKey[latest], true, nil
}

func (s *Store) GetAllLatest(ctx context.Context) ([]models.ScrapedStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mountainIDs := make([]string, 0, len(s.byMountain))
	for id := range s.byMountain {
		mountainIDs = append(mountainIDs, id)
	}
	sort.Strings(mountainIDs)

	out := make([]models.ScrapedStatus, 0, len(mountainIDs))
	for _, id := range mountainIDs {
		keys := s.byMountain[id]
		latest := keys[0]
		for _, k := range keys[1:] {
			if k.scrapedAt > latest.scrapedAt {
				latest = k
			}
		}
		out = append(out, s.byKey[latest])
	}
	return out, nil
}

func (s *Store) GetHistory(ctx context.Context, mountainID string, since time.Time) ([]models.ScrapedStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScrapedStatus
	for _, k := range s.byMountain[mountainID] {
		status := s.byKey[k]
		if !status.ScrapedAt.Before(since) {
			out = append(out, status)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScrapedAt.After(out[j].ScrapedAt) })
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := storage.Stats{MountainCount: len(s.byMountain)}
	for _, status := range s.byKey {
		stats.TotalRecords++
		if stats.OldestRecordAt.IsZero() || status.ScrapedAt.Before(stats.OldestRecordAt) {
			stats.OldestRecordAt = status.ScrapedAt
		}
		if status.ScrapedAt.After(stats.NewestRecordAt) {
			stats.NewestRecordAt = status.ScrapedAt
		}
	}
	var lastStarted time.Time
	for _, run := range s.runs {
		if run.StartedAt.After(lastStarted) {
			lastStarted = run.StartedAt
			stats.LastRunID = run.RunID
			stats.LastRunStatus = string(run.Status)
		}
	}

	cutoff := time.Now().UTC().Add(-storage.RecentRunsWindow)
	var sumSuccess, sumFail, sumDuration float64
	for _, run := range s.runs {
		if run.StartedAt.Before(cutoff) {
			continue
		}
		stats.RecentRuns.Count++
		sumSuccess += float64(run.SuccessfulCount)
		sumFail += float64(run.FailedCount)
		sumDuration += float64(run.DurationMS)
	}
	if stats.RecentRuns.Count > 0 {
		n := float64(stats.RecentRuns.Count)
		stats.RecentRuns.AvgSuccess = sumSuccess / n
		stats.RecentRuns.AvgFail = sumFail / n
		stats.RecentRuns.AvgDurationMS = sumDuration / n
	}
	return stats, nil
}

func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-retention)
	removed := 0
	for mountainID, keys := range s.byMountain {
		kept := keys[:0]
		for _, k := range keys {
			if s.byKey[k].ScrapedAt.Before(cutoff) {
				delete(s.byKey, k)
				removed++
				continue
			}
			kept = append(kept, k)
		}
		s.byMountain[mountainID] = kept
	}
	return removed, nil
}

var _ storage.StatusStore = (*Store)(nil)
