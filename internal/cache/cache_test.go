package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithCacheMissInvokesFetchSynchronously(t *testing.T) {
	c := New()
	var calls int32
	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "fresh-value", nil
	}

	data, err := c.WithCache(context.Background(), "alpine-ridge", fetch, time.Minute)
	if err != nil {
		t.Fatalf("WithCache() error = %v", err)
	}
	if data != "fresh-value" {
		t.Errorf("WithCache() = %v, want fresh-value", data)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected fetch called once on miss, got %d", calls)
	}
}

// TestFreshHitNeverCallsFetch covers the "N concurrent during fresh-hit
// invokes f zero times" invariant.
func TestFreshHitNeverCallsFetch(t *testing.T) {
	c := New()
	var calls int32
	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}
	if _, err := c.WithCache(context.Background(), "k", fetch, time.Minute); err != nil {
		t.Fatalf("initial WithCache() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one priming fetch, got %d", got)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.WithCache(context.Background(), "k", fetch, time.Minute); err != nil {
				t.Errorf("WithCache() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected fetch still called once after 20 fresh-hit callers, got %d", got)
	}
}

// TestScenarioS5StaleWhileRevalidate covers spec §8 Scenario S5: a
// stale-window hit returns the stale value immediately and coalesces the
// background refresh across concurrent callers into a single fetch.
func TestScenarioS5StaleWhileRevalidate(t *testing.T) {
	c := New()
	var calls int32
	block := make(chan struct{})
	fetch := func(ctx context.Context) (interface{}, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			<-block
		}
		return "refreshed", nil
	}

	// Prime the cache with a value that's already expired.
	c.store("crystal-peaks", "stale", -time.Second)

	var wg sync.WaitGroup
	results := make([]interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := c.WithCache(context.Background(), "crystal-peaks", fetch, time.Minute)
			if err != nil {
				t.Errorf("WithCache() error = %v", err)
				return
			}
			results[i] = data
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r != "stale" {
			t.Errorf("caller %d got %v, want stale (served immediately)", i, r)
		}
	}

	close(block)
	// Give the coalesced background refresh a moment to land.
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&calls) < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly one refresh fetch under 10 concurrent stale callers, got %d", got)
	}
}

func TestSweepRemovesLongStaleEntries(t *testing.T) {
	c := New()
	c.store("bear-hollow", "old", -time.Hour)
	c.store("whitehorn-summit", "recent", time.Minute)

	removed := c.Sweep(time.Minute)
	if removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if _, ok := c.Get("bear-hollow"); ok {
		t.Error("expected long-stale entry to be swept")
	}
	if _, ok := c.Get("whitehorn-summit"); !ok {
		t.Error("expected fresh entry to survive sweep")
	}
}
