// Package orchestrator implements spec §4.6: parallel fan-out/fan-in over
// mountain configs with per-task failure isolation. Grounded on the shape of
// ariadne's WaitGroup/mutex/context-cancellation pipeline skeleton
// (engine/internal/pipeline/pipeline.go), simplified down to
// one-goroutine-per-mountain since the spec's unit of concurrency is a
// whole scrape rather than a multi-stage channel pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/models"
	"github.com/ridgeline-labs/slope-scraper/internal/strategy"
)

// PerTaskTimeout is the 30s per-scrape cap from spec §5.
const PerTaskTimeout = 30 * time.Second

// OverallTimeout is the orchestrator-level cap from spec §5 ("implementation
// defined, e.g. 50s").
const OverallTimeout = 50 * time.Second

// TaskResult is one mountain's outcome from a fan-out pass (spec §4.6: "each
// task returns {success, status?, error?, duration_ms, timestamp}").
type TaskResult struct {
	MountainID   string
	Success      bool
	Status       *models.ScrapedStatus
	ErrorKind    models.ErrorKind
	ErrorMessage string
	DurationMS   int64
	Timestamp    time.Time
}

// Orchestrator runs one, several, or all enabled mountain configs.
type Orchestrator struct {
	Registry *config.Registry
	Factory  *strategy.Factory
}

// New builds an Orchestrator over registry and factory.
func New(registry *config.Registry, factory *strategy.Factory) *Orchestrator {
	return &Orchestrator{Registry: registry, Factory: factory}
}

// RunOne resolves cfg, runs it, and returns its result. A missing config id
// is the one error this method returns directly (spec §7: config_missing is
// not a per-task result, since there's no task to isolate).
func (o *Orchestrator) RunOne(ctx context.Context, id string) (TaskResult, error) {
	cfg, ok := o.Registry.Get(id)
	if !ok {
		return TaskResult{}, models.NewScrapeError(models.ErrConfigMissing, id, nil)
	}
	return o.runTask(ctx, cfg), nil
}

// RunBatch fans out over enabled configs tagged with batch n.
func (o *Orchestrator) RunBatch(ctx context.Context, n int) map[string]TaskResult {
	return o.runSet(ctx, o.Registry.ByBatch(n))
}

// RunAll fans out over every enabled config.
func (o *Orchestrator) RunAll(ctx context.Context) map[string]TaskResult {
	return o.runSet(ctx, o.Registry.Enabled())
}

// runSet launches one goroutine per config, all starting concurrently, each
// isolated by a recover() so a panic in one strategy cannot abort the rest
// (spec §4.6/§9: "structured concurrency with per-task result capture").
func (o *Orchestrator) runSet(ctx context.Context, configs []config.MountainConfig) map[string]TaskResult {
	overallCtx, cancel := context.WithTimeout(ctx, OverallTimeout)
	defer cancel()

	results := make(map[string]TaskResult, len(configs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, cfg := range configs {
		wg.Add(1)
		go func(cfg config.MountainConfig) {
			defer wg.Done()
			result := o.runTaskSafely(overallCtx, cfg)
			mu.Lock()
			results[cfg.ID] = result
			mu.Unlock()
		}(cfg)
	}

	wg.Wait()
	return results
}

// runTaskSafely wraps runTask with panic recovery so one strategy's bug
// cannot poison the batch (spec §1(c)).
func (o *Orchestrator) runTaskSafely(ctx context.Context, cfg config.MountainConfig) (result TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] orchestrator: panic scraping %s: %v", cfg.ID, r)
			result = TaskResult{
				MountainID:   cfg.ID,
				Success:      false,
				ErrorKind:    models.ErrNetwork,
				ErrorMessage: fmt.Sprintf("panic: %v", r),
				Timestamp:    time.Now().UTC(),
			}
		}
	}()
	return o.runTask(ctx, cfg)
}

func (o *Orchestrator) runTask(ctx context.Context, cfg config.MountainConfig) TaskResult {
	start := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, PerTaskTimeout)
	defer cancel()

	scraper, err := o.Factory.For(cfg)
	if err != nil {
		return TaskResult{
			MountainID:   cfg.ID,
			Success:      false,
			ErrorKind:    models.KindOf(err),
			ErrorMessage: err.Error(),
			DurationMS:   time.Since(start).Milliseconds(),
			Timestamp:    time.Now().UTC(),
		}
	}

	status, err := scraper.Scrape(taskCtx, cfg)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		kind := models.KindOf(err)
		if taskCtx.Err() == context.DeadlineExceeded {
			kind = models.ErrTimeout
		} else if ctx.Err() == context.Canceled {
			kind = models.ErrCancelled
		}
		log.Printf("[WARN] orchestrator: scrape %s failed (%s): %v", cfg.ID, kind, err)
		return TaskResult{
			MountainID:   cfg.ID,
			Success:      false,
			ErrorKind:    kind,
			ErrorMessage: err.Error(),
			DurationMS:   duration,
			Timestamp:    time.Now().UTC(),
		}
	}

	return TaskResult{
		MountainID: cfg.ID,
		Success:    true,
		Status:     &status,
		DurationMS: duration,
		Timestamp:  time.Now().UTC(),
	}
}
