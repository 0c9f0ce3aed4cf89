package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/models"
	"github.com/ridgeline-labs/slope-scraper/internal/storage/memstore"
)

type fakeNOAA struct {
	obs WeatherObservation
	err error
}

func (f fakeNOAA) GetCurrentWeather(ctx context.Context, coords config.Coordinates) (WeatherObservation, error) {
	return f.obs, f.err
}

type fakeSNOTEL struct {
	telemetry SnowTelemetry
	err       error
}

func (f fakeSNOTEL) GetSnowTelemetry(ctx context.Context, coords config.Coordinates) (SnowTelemetry, error) {
	return f.telemetry, f.err
}

type fakeForecast struct {
	forecast Forecast
	err      error
}

func (f fakeForecast) GetForecast(ctx context.Context, coords config.Coordinates) (Forecast, error) {
	return f.forecast, f.err
}

func testRegistry(t *testing.T) *config.Registry {
	t.Helper()
	data := []byte(`[{
		"id": "alpine-ridge",
		"display_name": "Alpine Ridge",
		"canonical_url": "https://alpineridge.example.com",
		"strategy": "static_html",
		"enabled": true,
		"selectors": {"status": ".st"},
		"elevation": {"base_feet": 6800, "summit_feet": 10200, "reference_feet": 8500},
		"coordinates": {"latitude": 39.6, "longitude": -106.1}
	}]`)
	registry, err := config.Load(data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return registry
}

func TestSnapshotAssemblesAllSources(t *testing.T) {
	registry := testRegistry(t)
	store := memstore.New()
	status := models.ScrapedStatus{MountainID: "alpine-ridge", IsOpen: true, LiftsOpen: 8, LiftsTotal: 10, ScrapedAt: time.Now().UTC()}
	if err := store.Save(context.Background(), status); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	noaa := fakeNOAA{obs: WeatherObservation{TemperatureF: 22, WindMPH: 5}}
	snotel := fakeSNOTEL{telemetry: SnowTelemetry{Snowfall24hIn: 8, Snowfall48hIn: 14}}
	forecast := fakeForecast{forecast: Forecast{FreezingLevelFt: 6000}}

	agg := New(registry, store, noaa, snotel, forecast)
	snap, err := agg.GetMountainSnapshot(context.Background(), "alpine-ridge")
	if err != nil {
		t.Fatalf("GetMountainSnapshot() error = %v", err)
	}
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}

	for _, source := range []string{"status", "noaa", "snotel", "forecast"} {
		if !snap.DataSources[source] {
			t.Errorf("expected data_sources[%q] = true", source)
		}
	}
	if snap.Status == nil || !snap.Status.IsOpen {
		t.Error("expected status to be populated from the store")
	}
	if snap.BaseTemperatureF == nil || snap.SummitTemperatureF == nil {
		t.Error("expected lapse-rate temperatures to be derived")
	}
	if snap.RainRiskScore == nil {
		t.Error("expected rain risk to be derived")
	}
	if snap.PowderScore == nil || snap.PowderVerdict == "" {
		t.Error("expected powder score and verdict to be derived")
	}
}

// TestSnapshotDegradesGracefullyOnPartialFailure covers spec §4.8 bullet 2:
// each subquery is independently fallible and absent data nulls only the
// affected fields.
func TestSnapshotDegradesGracefullyOnPartialFailure(t *testing.T) {
	registry := testRegistry(t)
	store := memstore.New()

	noaa := fakeNOAA{err: errors.New("noaa unavailable")}
	snotel := fakeSNOTEL{telemetry: SnowTelemetry{Snowfall24hIn: 4}}
	forecast := fakeForecast{err: errors.New("forecast timeout")}

	agg := New(registry, store, noaa, snotel, forecast)
	snap, err := agg.GetMountainSnapshot(context.Background(), "alpine-ridge")
	if err != nil {
		t.Fatalf("GetMountainSnapshot() error = %v", err)
	}

	if snap.DataSources["noaa"] || snap.DataSources["forecast"] {
		t.Error("expected failed sources to be marked unavailable")
	}
	if !snap.DataSources["snotel"] {
		t.Error("expected successful snotel source to be marked available")
	}
	if snap.Status != nil {
		t.Error("expected nil status: nothing was ever saved for this mountain")
	}
	if snap.RainRiskScore != nil {
		t.Error("expected rain risk to stay nil without a forecast reading")
	}
	if snap.PowderScore != nil {
		t.Error("expected powder score to stay nil without a current-weather reading")
	}
}

func TestSnapshotUnknownMountainReturnsNil(t *testing.T) {
	registry := testRegistry(t)
	agg := New(registry, memstore.New(), nil, nil, nil)

	snap, err := agg.GetMountainSnapshot(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetMountainSnapshot() error = %v", err)
	}
	if snap != nil {
		t.Error("expected nil snapshot for an unknown mountain id")
	}
}

func TestSnapshotWithNoAdaptersWiredOnlyUsesStore(t *testing.T) {
	registry := testRegistry(t)
	store := memstore.New()
	if err := store.Save(context.Background(), models.ScrapedStatus{MountainID: "alpine-ridge", ScrapedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	agg := New(registry, store, nil, nil, nil)
	snap, err := agg.GetMountainSnapshot(context.Background(), "alpine-ridge")
	if err != nil {
		t.Fatalf("GetMountainSnapshot() error = %v", err)
	}
	if !snap.DataSources["status"] {
		t.Error("expected status source to be available")
	}
	if snap.DataSources["noaa"] || snap.DataSources["snotel"] || snap.DataSources["forecast"] {
		t.Error("expected unwired adapters to stay unavailable")
	}
}
