// Package cache implements a stale-while-revalidate TTL cache for
// aggregator/engine reads (spec §4.9, §8 Scenario S5). Grounded on
// garyellow-ntpu-linebot-go's scraper package: CacheWrapper's
// golang.org/x/sync/singleflight coalescing (singleflight.go) and
// URLCache's cache/log-on-refresh idiom (urlcache.go), generalized from a
// single cached URL string to arbitrary keyed payloads with an explicit
// stale window.
package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is one cached value with its insertion and expiry timestamps.
type Entry struct {
	Key        string
	Data       interface{}
	InsertedAt time.Time
	ExpiresAt  time.Time
}

func (e Entry) isFresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Fetcher produces a fresh value for a cache key.
type Fetcher func(ctx context.Context) (interface{}, error)

// TTLCache is a mutex-guarded, single-process cache with stale-while-
// revalidate semantics: a stale hit returns immediately and kicks off a
// background refresh, coalesced via singleflight so concurrent callers for
// the same key only trigger one refresh.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]Entry
	group   singleflight.Group
}

// New returns an empty TTLCache.
func New() *TTLCache {
	return &TTLCache{entries: make(map[string]Entry)}
}

// Get returns the cached entry for key, if present, regardless of
// freshness.
func (c *TTLCache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

// StaleResult is what GetStale reports about a cached value.
type StaleResult struct {
	Data    interface{}
	Found   bool
	IsStale bool
}

// GetStale reports a cached value along with whether it's past its TTL.
func (c *TTLCache) GetStale(key string) StaleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return StaleResult{}
	}
	return StaleResult{Data: e.Data, Found: true, IsStale: !e.isFresh(time.Now())}
}

// WithCache returns the cached value for key when fresh. On a stale hit it
// returns the stale value immediately and refreshes in the background. On a
// miss it calls fetch synchronously. Concurrent calls for the same key
// during a refresh are coalesced by singleflight, so fetch runs at most
// once per key at a time (spec §8 Scenario S5: "f invoked exactly once
// under N concurrent stale-window callers").
func (c *TTLCache) WithCache(ctx context.Context, key string, fetch Fetcher, ttl time.Duration) (interface{}, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	now := time.Now()
	switch {
	case ok && entry.isFresh(now):
		return entry.Data, nil
	case ok:
		go c.refresh(context.Background(), key, fetch, ttl)
		return entry.Data, nil
	default:
		return c.refreshSync(ctx, key, fetch, ttl)
	}
}

func (c *TTLCache) refreshSync(ctx context.Context, key string, fetch Fetcher, ttl time.Duration) (interface{}, error) {
	data, err, _ := c.group.Do(key, func() (interface{}, error) {
		return fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.store(key, data, ttl)
	return data, nil
}

func (c *TTLCache) refresh(ctx context.Context, key string, fetch Fetcher, ttl time.Duration) {
	data, err, _ := c.group.Do(key, func() (interface{}, error) {
		return fetch(ctx)
	})
	if err != nil {
		log.Printf("[WARN] cache: background refresh of %q failed: %v", key, err)
		return
	}
	c.store(key, data, ttl)
}

func (c *TTLCache) store(key string, data interface{}, ttl time.Duration) {
	now := time.Now()
	c.mu.Lock()
	c.entries[key] = Entry{Key: key, Data: data, InsertedAt: now, ExpiresAt: now.Add(ttl)}
	c.mu.Unlock()
}

// Sweep removes entries whose data has been stale for longer than
// staleGrace, bounding unbounded growth from keys that stop being
// requested. Intended to run on a periodic ticker (spec §4.9: "~5 minute
// sweep").
func (c *TTLCache) Sweep(staleGrace time.Duration) int {
	cutoff := time.Now().Add(-staleGrace)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if e.ExpiresAt.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// RunSweeper starts a goroutine that calls Sweep every interval until ctx
// is done.
func (c *TTLCache) RunSweeper(ctx context.Context, interval, staleGrace time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(staleGrace); n > 0 {
					log.Printf("[INFO] cache: swept %d stale entries", n)
				}
			}
		}
	}()
}
