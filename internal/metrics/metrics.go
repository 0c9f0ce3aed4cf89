// Package metrics exposes Prometheus counters and histograms for scrape
// outcomes, grounded on the backend's observability.MetricsCollector
// (internal/observability/metrics.go): a CounterVec/HistogramVec pair
// registered once against a prometheus.Registerer, plus a promhttp handler
// for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the scrape-outcome metrics for one process.
type Collector struct {
	registry prometheus.Registerer

	ScrapesTotal     *prometheus.CounterVec
	ScrapeDuration    *prometheus.HistogramVec
	RunsTotal        *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	CacheHitsTotal   *prometheus.CounterVec
	StorageErrorsTotal *prometheus.CounterVec
}

// New registers and returns a Collector against reg. Pass nil to use the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		registry: reg,
		ScrapesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slope_scraper_scrapes_total",
			Help: "Total scrape attempts by mountain and outcome.",
		}, []string{"mountain_id", "strategy", "outcome"}),
		ScrapeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slope_scraper_scrape_duration_seconds",
			Help:    "Scrape duration in seconds by strategy.",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slope_scraper_runs_total",
			Help: "Total orchestrated runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slope_scraper_run_duration_seconds",
			Help:    "Full orchestrated run duration in seconds.",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90},
		}),
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slope_scraper_cache_hits_total",
			Help: "Aggregator cache lookups by result.",
		}, []string{"result"}),
		StorageErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slope_scraper_storage_errors_total",
			Help: "Storage operation failures by operation.",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.ScrapesTotal,
		c.ScrapeDuration,
		c.RunsTotal,
		c.RunDuration,
		c.CacheHitsTotal,
		c.StorageErrorsTotal,
	)
	return c
}

// ObserveScrape records one scrape's outcome and duration.
func (c *Collector) ObserveScrape(mountainID, strategy, outcome string, seconds float64) {
	c.ScrapesTotal.WithLabelValues(mountainID, strategy, outcome).Inc()
	c.ScrapeDuration.WithLabelValues(strategy).Observe(seconds)
}

// ObserveRun records one orchestrated run's outcome and duration.
func (c *Collector) ObserveRun(outcome string, seconds float64) {
	c.RunsTotal.WithLabelValues(outcome).Inc()
	c.RunDuration.Observe(seconds)
}

// ObserveCacheResult records a cache lookup outcome: "fresh", "stale", or
// "miss".
func (c *Collector) ObserveCacheResult(result string) {
	c.CacheHitsTotal.WithLabelValues(result).Inc()
}

// ObserveStorageError records a failed storage operation by name.
func (c *Collector) ObserveStorageError(operation string) {
	c.StorageErrorsTotal.WithLabelValues(operation).Inc()
}

// Handler exposes the registered metrics for scraping.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if g, ok := c.registry.(prometheus.Gatherer); ok {
		gatherer = g
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
