package strategy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/fetcher"
)

// TestScenarioS3JSONAPITransform covers spec §8 Scenario S3.
func TestScenarioS3JSONAPITransform(t *testing.T) {
	body := `{"lifts":{"open":5,"total":12},"trails":{"open":40,"total":60},"resort":{"open":true}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := config.MountainConfig{
		ID:           "s3",
		CanonicalURL: "https://crystalpeaks.example.com",
		Strategy:     config.StrategyJSONAPI,
		JSONAPI: config.JSONAPIParams{
			Endpoint: srv.URL,
			Transform: config.JSONTransform{
				LiftsOpenPath:  "lifts.open",
				LiftsTotalPath: "lifts.total",
				RunsOpenPath:   "trails.open",
				RunsTotalPath:  "trails.total",
				IsOpenPath:     "resort.open",
			},
		},
	}

	s := &JSONAPIScraper{fetcher: fetcher.New()}
	status, err := s.Scrape(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if status.LiftsOpen != 5 || status.LiftsTotal != 12 {
		t.Errorf("lifts = %d/%d, want 5/12", status.LiftsOpen, status.LiftsTotal)
	}
	if status.RunsOpen != 40 || status.RunsTotal != 60 {
		t.Errorf("runs = %d/%d, want 40/60", status.RunsOpen, status.RunsTotal)
	}
	if !status.IsOpen {
		t.Error("expected is_open = true")
	}
}

func TestJSONAPINonJSONBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	cfg := config.MountainConfig{
		ID:           "bad",
		CanonicalURL: "https://example.com",
		Strategy:     config.StrategyJSONAPI,
		JSONAPI:      config.JSONAPIParams{Endpoint: srv.URL},
	}

	s := &JSONAPIScraper{fetcher: fetcher.New()}
	if _, err := s.Scrape(context.Background(), cfg); err == nil {
		t.Fatal("expected upstream_error for non-JSON body")
	}
}

func TestJSONAPIMissingFieldsDefaultSafely(t *testing.T) {
	body := `{"lifts":{}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := config.MountainConfig{
		ID:           "sparse",
		CanonicalURL: "https://example.com",
		Strategy:     config.StrategyJSONAPI,
		JSONAPI: config.JSONAPIParams{
			Endpoint: srv.URL,
			Transform: config.JSONTransform{
				LiftsOpenPath: "lifts.open",
			},
		},
	}

	s := &JSONAPIScraper{fetcher: fetcher.New()}
	status, err := s.Scrape(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if status.LiftsOpen != 0 || status.RunsTotal != 0 {
		t.Errorf("expected missing counts to default to 0, got %+v", status)
	}
	if status.IsOpen {
		t.Error("expected missing is_open to default to false")
	}
	if status.PercentOpen != nil {
		t.Error("expected missing percent_open to stay absent")
	}
}
