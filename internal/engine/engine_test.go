package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/storage/memstore"
)

func testRegistry(t *testing.T, configs []config.MountainConfig) *config.Registry {
	t.Helper()
	data, err := json.Marshal(configs)
	if err != nil {
		t.Fatalf("marshal configs: %v", err)
	}
	registry, err := config.Load(data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return registry
}

func TestRunAllPersistsSuccessesAndFailures(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="st">OPEN</div></body></html>`))
	}))
	defer okSrv.Close()

	downSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer downSrv.Close()

	registry := testRegistry(t, []config.MountainConfig{
		{ID: "alpha", Enabled: true, CanonicalURL: okSrv.URL, Strategy: config.StrategyStaticHTML, Selectors: config.SelectorSet{Status: ".st"}},
		{ID: "bravo", Enabled: true, CanonicalURL: downSrv.URL, Strategy: config.StrategyStaticHTML, Selectors: config.SelectorSet{Status: ".st"}},
	})

	store := memstore.New()
	e := New(registry, store, nil, nil)

	result, err := e.RunAll(context.Background(), "test-suite")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Run.SuccessfulCount)
	assert.Equal(t, 1, result.Run.FailedCount)

	status, found, err := e.GetLatest(context.Background(), "alpha")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, status.IsOpen)

	_, found, err = e.GetLatest(context.Background(), "bravo")
	require.NoError(t, err)
	assert.False(t, found, "expected bravo's failed run to leave no status record")
}

func TestRunOneUnknownMountainReturnsConfigMissing(t *testing.T) {
	registry := testRegistry(t, nil)
	e := New(registry, memstore.New(), nil, nil)

	_, err := e.RunOne(context.Background(), "test-suite", "nonexistent")
	if err == nil {
		t.Fatal("expected an error for an unknown mountain id")
	}
}

func TestStatsReflectsStoredHistory(t *testing.T) {
	registry := testRegistry(t, nil)
	store := memstore.New()
	e := New(registry, store, nil, nil)

	stats, err := e.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalRecords != 0 {
		t.Errorf("expected an empty store to report 0 records, got %d", stats.TotalRecords)
	}
}

func TestCleanupDelegatesToStore(t *testing.T) {
	registry := testRegistry(t, nil)
	store := memstore.New()
	e := New(registry, store, nil, nil)

	removed, err := e.Cleanup(context.Background(), 90*24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("expected nothing to remove from an empty store, got %d", removed)
	}
}

func TestGetMountainSnapshotWithoutAggregatorErrors(t *testing.T) {
	registry := testRegistry(t, nil)
	e := New(registry, memstore.New(), nil, nil)

	if _, err := e.GetMountainSnapshot(context.Background(), "alpha"); err == nil {
		t.Error("expected an error when no aggregator is wired")
	}
}
