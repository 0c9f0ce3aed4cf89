package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

func TestSaveIsIdempotentOnMountainAndScrapedAt(t *testing.T) {
	s := New()
	ctx := context.Background()
	ts := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

	status := models.ScrapedStatus{MountainID: "alpine-ridge", LiftsOpen: 5, LiftsTotal: 10, ScrapedAt: ts}
	if err := s.Save(ctx, status); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// Duplicate key, different payload: should be silently ignored.
	dup := status
	dup.LiftsOpen = 9
	if err := s.Save(ctx, dup); err != nil {
		t.Fatalf("Save() duplicate error = %v", err)
	}

	got, ok, err := s.GetLatest(ctx, "alpine-ridge")
	if err != nil || !ok {
		t.Fatalf("GetLatest() = %v, %v, %v", got, ok, err)
	}
	if got.LiftsOpen != 5 {
		t.Errorf("expected original write to win, got LiftsOpen=%d", got.LiftsOpen)
	}
}

func TestGetLatestIsMaxOfHistory(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		status := models.ScrapedStatus{
			MountainID: "timberline-basin",
			LiftsOpen:  i,
			LiftsTotal: 10,
			ScrapedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.Save(ctx, status); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	latest, ok, err := s.GetLatest(ctx, "timberline-basin")
	if err != nil || !ok {
		t.Fatalf("GetLatest() = %v, %v, %v", latest, ok, err)
	}
	history, err := s.GetHistory(ctx, "timberline-basin", base)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("expected 5 history records, got %d", len(history))
	}
	if !latest.ScrapedAt.Equal(history[0].ScrapedAt) {
		t.Errorf("expected GetLatest to equal max(GetHistory), got %v vs %v", latest.ScrapedAt, history[0].ScrapedAt)
	}
}

// TestCleanupRetention covers spec §8 Scenario S6: 100 records spanning 120
// days, 90-day retention window.
func TestCleanupRetention(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 100; i++ {
		daysAgo := i * 120 / 100
		status := models.ScrapedStatus{
			MountainID: "crystal-peaks",
			LiftsOpen:  1,
			LiftsTotal: 1,
			ScrapedAt:  now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
		}
		if err := s.Save(ctx, status); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	removed, err := s.Cleanup(ctx, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed == 0 {
		t.Fatal("expected some records older than 90 days to be removed")
	}

	history, err := s.GetHistory(ctx, "crystal-peaks", now.Add(-120*24*time.Hour))
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	for _, rec := range history {
		if rec.ScrapedAt.Before(now.Add(-90 * 24 * time.Hour)) {
			t.Errorf("found record older than retention window after cleanup: %v", rec.ScrapedAt)
		}
	}
}

func TestRunLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	runID, err := s.StartRun(ctx, "scheduler", 3)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if err := s.CompleteRun(ctx, runID, 2, 1, 4200); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.LastRunID != runID || stats.LastRunStatus != string(models.RunCompleted) {
		t.Errorf("expected stats to reflect completed run %s, got %+v", runID, stats)
	}
	if stats.RecentRuns.Count != 1 {
		t.Errorf("expected recent_runs.count = 1, got %d", stats.RecentRuns.Count)
	}
	if stats.RecentRuns.AvgSuccess != 2 || stats.RecentRuns.AvgFail != 1 || stats.RecentRuns.AvgDurationMS != 4200 {
		t.Errorf("expected recent_runs averages to reflect the single run, got %+v", stats.RecentRuns)
	}
}
