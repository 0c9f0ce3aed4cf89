// Package engine is the Control API façade wiring the configuration
// registry, orchestrator, storage, aggregator, and cache together behind
// the operations spec §6 names (run_all, run_batch, run_one, get_latest,
// get_all_latest, get_history, stats, cleanup, plus the aggregator
// snapshot). cmd/scraper and internal/server are thin adapters over this
// package; apart from cmd/scraper building the collaborators it passes to
// New, neither talks to the lower-level packages directly.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/aggregator"
	"github.com/ridgeline-labs/slope-scraper/internal/cache"
	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/fetcher"
	"github.com/ridgeline-labs/slope-scraper/internal/metrics"
	"github.com/ridgeline-labs/slope-scraper/internal/models"
	"github.com/ridgeline-labs/slope-scraper/internal/orchestrator"
	"github.com/ridgeline-labs/slope-scraper/internal/storage"
	"github.com/ridgeline-labs/slope-scraper/internal/strategy"
)

// SnapshotTTL is the aggregator cache's default entry lifetime (spec §4.8:
// "default 600 s").
const SnapshotTTL = 600 * time.Second

// Engine is the process-wide Control API.
type Engine struct {
	Registry     *config.Registry
	Orchestrator *orchestrator.Orchestrator
	Factory      *strategy.Factory
	Store        storage.StatusStore
	Aggregator   *aggregator.Aggregator
	Cache        *cache.TTLCache
	Metrics      *metrics.Collector
}

// New wires every collaborator into one Engine. metrics may be nil to skip
// Prometheus instrumentation (e.g. in tests).
func New(registry *config.Registry, store storage.StatusStore, agg *aggregator.Aggregator, m *metrics.Collector) *Engine {
	factory := strategy.NewFactory(fetcher.New())
	return &Engine{
		Registry:     registry,
		Orchestrator: orchestrator.New(registry, factory),
		Factory:      factory,
		Store:        store,
		Aggregator:   agg,
		Cache:        cache.New(),
		Metrics:      m,
	}
}

// NewWithFactory is like New but lets the caller share a pre-built strategy
// factory (e.g. one already holding a started headless scraper), avoiding a
// redundant Playwright launch across Engine instances in the same process.
func NewWithFactory(registry *config.Registry, factory *strategy.Factory, store storage.StatusStore, agg *aggregator.Aggregator, m *metrics.Collector) *Engine {
	return &Engine{
		Registry:     registry,
		Orchestrator: orchestrator.New(registry, factory),
		Factory:      factory,
		Store:        store,
		Aggregator:   agg,
		Cache:        cache.New(),
		Metrics:      m,
	}
}

// RunResult is the outcome of one orchestrated pass, persisted as a
// RunRecord plus the individual TaskResults that produced it.
type RunResult struct {
	Run   models.RunRecord
	Tasks map[string]orchestrator.TaskResult
}

// RunAll runs every enabled mountain config and persists the run + results.
func (e *Engine) RunAll(ctx context.Context, triggeredBy string) (RunResult, error) {
	return e.run(ctx, triggeredBy, e.Registry.Enabled(), e.Orchestrator.RunAll)
}

// RunBatch runs enabled configs tagged with batch n.
func (e *Engine) RunBatch(ctx context.Context, triggeredBy string, batch int) (RunResult, error) {
	configs := e.Registry.ByBatch(batch)
	return e.run(ctx, triggeredBy, configs, func(ctx context.Context) map[string]orchestrator.TaskResult {
		return e.Orchestrator.RunBatch(ctx, batch)
	})
}

// RunOne runs a single mountain and persists its result under its own run
// record (so its audit trail matches a batch/all run's shape).
func (e *Engine) RunOne(ctx context.Context, triggeredBy, mountainID string) (RunResult, error) {
	cfg, ok := e.Registry.Get(mountainID)
	if !ok {
		return RunResult{}, models.NewScrapeError(models.ErrConfigMissing, mountainID, nil)
	}
	return e.run(ctx, triggeredBy, []config.MountainConfig{cfg}, func(ctx context.Context) map[string]orchestrator.TaskResult {
		result, err := e.Orchestrator.RunOne(ctx, mountainID)
		if err != nil {
			return map[string]orchestrator.TaskResult{}
		}
		return map[string]orchestrator.TaskResult{mountainID: result}
	})
}

func (e *Engine) run(ctx context.Context, triggeredBy string, configs []config.MountainConfig, do func(context.Context) map[string]orchestrator.TaskResult) (RunResult, error) {
	runID, err := e.Store.StartRun(ctx, triggeredBy, len(configs))
	if err != nil {
		if e.Metrics != nil {
			e.Metrics.ObserveStorageError("start_run")
		}
		return RunResult{}, err
	}

	start := time.Now()
	results := do(ctx)

	var statuses []models.ScrapedStatus
	successful, failed := 0, 0
	for mountainID, result := range results {
		if result.Success && result.Status != nil {
			successful++
			statuses = append(statuses, *result.Status)
			continue
		}
		failed++
		failure := models.FailureRecord{
			RunID:        runID,
			MountainID:   mountainID,
			ErrorMessage: result.ErrorMessage,
			FailedAt:     result.Timestamp,
		}
		if cfg, ok := e.Registry.Get(mountainID); ok {
			failure.SourceURL = cfg.CanonicalURL
		}
		if err := e.Store.SaveFailure(ctx, failure); err != nil {
			log.Printf("[WARN] engine: save_failure for %s failed: %v", mountainID, err)
			if e.Metrics != nil {
				e.Metrics.ObserveStorageError("save_failure")
			}
		}
	}

	if err := e.Store.SaveMany(ctx, statuses); err != nil {
		log.Printf("[WARN] engine: save_many failed: %v", err)
		if e.Metrics != nil {
			e.Metrics.ObserveStorageError("save_many")
		}
	}

	duration := time.Since(start)
	if err := e.Store.CompleteRun(ctx, runID, successful, failed, duration.Milliseconds()); err != nil {
		log.Printf("[WARN] engine: complete_run(%s) failed: %v", runID, err)
		if e.Metrics != nil {
			e.Metrics.ObserveStorageError("complete_run")
		}
	}
	if e.Metrics != nil {
		outcome := "completed"
		if failed > 0 && successful == 0 {
			outcome = "failed"
		}
		e.Metrics.ObserveRun(outcome, duration.Seconds())
		for mountainID, result := range results {
			cfg, _ := e.Registry.Get(mountainID)
			outcome := "success"
			if !result.Success {
				outcome = string(result.ErrorKind)
			}
			e.Metrics.ObserveScrape(mountainID, string(cfg.Strategy), outcome, float64(result.DurationMS)/1000)
		}
	}

	return RunResult{
		Run: models.RunRecord{
			RunID:           runID,
			TriggeredBy:     triggeredBy,
			TotalMountains:  len(configs),
			SuccessfulCount: successful,
			FailedCount:     failed,
			DurationMS:      duration.Milliseconds(),
			Status:          models.RunCompleted,
			StartedAt:       start,
		},
		Tasks: results,
	}, nil
}

// GetLatest returns the most recent status for one mountain.
func (e *Engine) GetLatest(ctx context.Context, mountainID string) (models.ScrapedStatus, bool, error) {
	return e.Store.GetLatest(ctx, mountainID)
}

// GetAllLatest returns the most recent status for every mountain with
// recorded history.
func (e *Engine) GetAllLatest(ctx context.Context) ([]models.ScrapedStatus, error) {
	return e.Store.GetAllLatest(ctx)
}

// GetHistory returns a mountain's history over the last `days` days.
func (e *Engine) GetHistory(ctx context.Context, mountainID string, days int) ([]models.ScrapedStatus, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	return e.Store.GetHistory(ctx, mountainID, since)
}

// Stats reports aggregate storage counters.
func (e *Engine) Stats(ctx context.Context) (storage.Stats, error) {
	return e.Store.Stats(ctx)
}

// Cleanup deletes statuses older than retention.
func (e *Engine) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	return e.Store.Cleanup(ctx, retention)
}

// GetMountainSnapshot returns the aggregator's snapshot for one mountain,
// through the engine's TTL cache (spec §4.8 cache discipline).
func (e *Engine) GetMountainSnapshot(ctx context.Context, mountainID string) (*aggregator.Snapshot, error) {
	if e.Aggregator == nil {
		return nil, fmt.Errorf("engine: no aggregator configured")
	}
	key := "snapshot:" + mountainID
	if e.Metrics != nil {
		e.Metrics.ObserveCacheResult(cacheResultLabel(e.Cache.GetStale(key)))
	}
	result, err := e.Cache.WithCache(ctx, key, func(ctx context.Context) (interface{}, error) {
		return e.Aggregator.GetMountainSnapshot(ctx, mountainID)
	}, SnapshotTTL)
	if err != nil {
		return nil, err
	}
	snap, _ := result.(*aggregator.Snapshot)
	return snap, nil
}

// cacheResultLabel classifies a pre-lookup cache state for the
// cache_hits_total metric: "fresh", "stale", or "miss".
func cacheResultLabel(r cache.StaleResult) string {
	switch {
	case !r.Found:
		return "miss"
	case r.IsStale:
		return "stale"
	default:
		return "fresh"
	}
}

// Close releases any resources held by the underlying strategy factory
// (the headless browser, if one was ever started).
func (e *Engine) Close() {
	e.Factory.Close()
}
