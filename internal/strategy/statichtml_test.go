package strategy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/fetcher"
)

// TestScenarioS1TwoSidedRatios covers spec §8 Scenario S1.
func TestScenarioS1TwoSidedRatios(t *testing.T) {
	html := `<html><body>
		<div class="lifts">8 / 10</div>
		<div class="runs">70 / 82</div>
		<div class="st">OPEN FOR SEASON</div>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	defer srv.Close()

	cfg := config.MountainConfig{
		ID:           "s1",
		CanonicalURL: srv.URL,
		Strategy:     config.StrategyStaticHTML,
		Selectors: config.SelectorSet{
			LiftsOpen: ".lifts",
			RunsOpen:  ".runs",
			Status:    ".st",
		},
	}

	s := &StaticHTMLScraper{fetcher: fetcher.New()}
	status, err := s.Scrape(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if status.LiftsOpen != 8 || status.LiftsTotal != 10 {
		t.Errorf("lifts = %d/%d, want 8/10", status.LiftsOpen, status.LiftsTotal)
	}
	if status.RunsOpen != 70 || status.RunsTotal != 82 {
		t.Errorf("runs = %d/%d, want 70/82", status.RunsOpen, status.RunsTotal)
	}
	if !status.IsOpen {
		t.Error("expected is_open = true")
	}
}

// TestScenarioS2CountFallback covers spec §8 Scenario S2.
func TestScenarioS2CountFallback(t *testing.T) {
	html := `<html><body>
		<div class="status-open">A</div>
		<div class="status-open">B</div>
		<div class="status-open">C</div>
		<div class="status-open">D</div>
		<div class="status-open">E</div>
		<div class="status-open">F</div>
		<div class="status-open">G</div>
		<div class="status-open">H</div>
		<div class="status-open">I</div>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	defer srv.Close()

	cfg := config.MountainConfig{
		ID:           "s2",
		CanonicalURL: srv.URL,
		Strategy:     config.StrategyStaticHTML,
		Selectors:    config.SelectorSet{LiftsOpen: "div.status-open"},
	}

	s := &StaticHTMLScraper{fetcher: fetcher.New()}
	status, err := s.Scrape(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if status.LiftsOpen != 9 || status.LiftsTotal != 9 {
		t.Errorf("lifts = %d/%d, want 9/9", status.LiftsOpen, status.LiftsTotal)
	}
}

func TestAllZeroCountsIsValid(t *testing.T) {
	html := `<html><body><div class="st">pre-season, coming soon</div></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	defer srv.Close()

	cfg := config.MountainConfig{
		ID:           "preseason",
		CanonicalURL: srv.URL,
		Strategy:     config.StrategyStaticHTML,
		Selectors:    config.SelectorSet{Status: ".st"},
	}

	s := &StaticHTMLScraper{fetcher: fetcher.New()}
	status, err := s.Scrape(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if status.LiftsTotal != 0 || status.RunsTotal != 0 {
		t.Errorf("expected all-zero counts, got lifts_total=%d runs_total=%d", status.LiftsTotal, status.RunsTotal)
	}
	if status.IsOpen {
		t.Error("expected is_open = false, status text doesn't contain 'open'")
	}
}
