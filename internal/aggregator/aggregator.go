// Package aggregator assembles a per-mountain Snapshot from the scraped
// status store plus three independently-fallible external weather
// adapters, then layers in locally-computed derived metrics (spec §4.8).
// Grounded on the teacher's and ariadne's WaitGroup/mutex fan-out idiom,
// here applied to four heterogeneous subqueries instead of N identical
// scrape tasks.
package aggregator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/models"
	"github.com/ridgeline-labs/slope-scraper/internal/storage"
)

// Snapshot is the assembled, cache-friendly document returned by
// GetMountainSnapshot.
type Snapshot struct {
	MountainID  string                `json:"mountain_id"`
	DisplayName string                `json:"display_name"`
	Status      *models.ScrapedStatus `json:"status,omitempty"`

	CurrentWeather *WeatherObservation `json:"current_weather,omitempty"`
	SnowTelemetry  *SnowTelemetry      `json:"snow_telemetry,omitempty"`
	Forecast       *Forecast           `json:"forecast,omitempty"`

	BaseTemperatureF   *float64 `json:"base_temperature_f,omitempty"`
	SummitTemperatureF *float64 `json:"summit_temperature_f,omitempty"`
	RainRiskScore      *float64 `json:"rain_risk_score,omitempty"`
	PowderScore        *float64 `json:"powder_score,omitempty"`
	PowderVerdict      string   `json:"powder_verdict,omitempty"`

	DataSources map[string]bool `json:"data_sources"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Aggregator wires the store and the three optional weather adapters. Any
// adapter may be nil, meaning that data source is simply never consulted
// and its data_sources entry stays false (spec §1 Non-goals: weather APIs
// are out-of-scope collaborators, not a hard dependency).
type Aggregator struct {
	Registry *config.Registry
	Store    storage.StatusStore
	NOAA     NOAAClient
	SNOTEL   SNOTELClient
	Forecast ForecastClient
}

// New builds an Aggregator. Any adapter may be nil.
func New(registry *config.Registry, store storage.StatusStore, noaa NOAAClient, snotel SNOTELClient, forecast ForecastClient) *Aggregator {
	return &Aggregator{Registry: registry, Store: store, NOAA: noaa, SNOTEL: snotel, Forecast: forecast}
}

// GetMountainSnapshot resolves cfg from the registry, fans out over the
// store and the three weather adapters concurrently, and assembles the
// derived fields. A missing mountain id returns (nil, nil): there is no
// error, just nothing to show.
func (a *Aggregator) GetMountainSnapshot(ctx context.Context, mountainID string) (*Snapshot, error) {
	cfg, ok := a.Registry.Get(mountainID)
	if !ok {
		return nil, nil
	}

	snap := &Snapshot{
		MountainID:  cfg.ID,
		DisplayName: cfg.DisplayName,
		DataSources: map[string]bool{"status": false, "noaa": false, "snotel": false, "forecast": false},
		GeneratedAt: time.Now().UTC(),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		status, found, err := a.Store.GetLatest(ctx, cfg.ID)
		if err != nil {
			log.Printf("[WARN] aggregator: get_latest(%s) failed: %v", cfg.ID, err)
			return
		}
		if !found {
			return
		}
		mu.Lock()
		snap.Status = &status
		snap.DataSources["status"] = true
		mu.Unlock()
	}()

	if a.NOAA != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obs, err := a.NOAA.GetCurrentWeather(ctx, cfg.Coordinates)
			if err != nil {
				log.Printf("[WARN] aggregator: noaa lookup for %s failed: %v", cfg.ID, err)
				return
			}
			mu.Lock()
			snap.CurrentWeather = &obs
			snap.DataSources["noaa"] = true
			mu.Unlock()
		}()
	}

	if a.SNOTEL != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			telemetry, err := a.SNOTEL.GetSnowTelemetry(ctx, cfg.Coordinates)
			if err != nil {
				log.Printf("[WARN] aggregator: snotel lookup for %s failed: %v", cfg.ID, err)
				return
			}
			mu.Lock()
			snap.SnowTelemetry = &telemetry
			snap.DataSources["snotel"] = true
			mu.Unlock()
		}()
	}

	if a.Forecast != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			forecast, err := a.Forecast.GetForecast(ctx, cfg.Coordinates)
			if err != nil {
				log.Printf("[WARN] aggregator: forecast lookup for %s failed: %v", cfg.ID, err)
				return
			}
			mu.Lock()
			snap.Forecast = &forecast
			snap.DataSources["forecast"] = true
			mu.Unlock()
		}()
	}

	wg.Wait()

	a.deriveMetrics(snap, cfg)
	return snap, nil
}

// deriveMetrics fills in the locally-computed fields whose inputs are
// available, leaving the rest nil (spec §4.8 bullet 3: absent upstream
// data degrades gracefully rather than failing the whole snapshot).
func (a *Aggregator) deriveMetrics(snap *Snapshot, cfg config.MountainConfig) {
	elevation := cfg.Elevation
	if snap.CurrentWeather != nil && elevation.ReferenceFeet != 0 {
		base := estimateTemperatureAt(snap.CurrentWeather.TemperatureF, elevation.ReferenceFeet, elevation.BaseFeet)
		summit := estimateTemperatureAt(snap.CurrentWeather.TemperatureF, elevation.ReferenceFeet, elevation.SummitFeet)
		snap.BaseTemperatureF = &base
		snap.SummitTemperatureF = &summit
	}

	if snap.Forecast != nil && elevation.BaseFeet != 0 && elevation.SummitFeet != 0 {
		risk := rainRiskScore(snap.Forecast.FreezingLevelFt, elevation.BaseFeet, elevation.SummitFeet)
		snap.RainRiskScore = &risk
	}

	if snap.SnowTelemetry != nil && snap.CurrentWeather != nil {
		inputs := powderScoreInputs{
			Snowfall24hIn: snap.SnowTelemetry.Snowfall24hIn,
			Snowfall48hIn: snap.SnowTelemetry.Snowfall48hIn,
			TemperatureF:  snap.CurrentWeather.TemperatureF,
			WindMPH:       snap.CurrentWeather.WindMPH,
		}
		if snap.RainRiskScore != nil {
			inputs.RainRisk = *snap.RainRiskScore
		}
		score, verdict := powderScore(inputs)
		snap.PowderScore = &score
		snap.PowderVerdict = verdict
	}
}
