package aggregator

import (
	"context"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
)

// WeatherObservation is a current-conditions reading from the
// NOAA-equivalent adapter.
type WeatherObservation struct {
	TemperatureF float64
	WindMPH      float64
	ObservedAt   time.Time
}

// NOAAClient is the out-of-scope collaborator for current weather
// observations (spec §1 Non-goals: "third-party weather/snow APIs ...
// consume scraped data through a read-only interface"). Only the contract
// lives in this module; a downstream implementation supplies the client.
type NOAAClient interface {
	GetCurrentWeather(ctx context.Context, coords config.Coordinates) (WeatherObservation, error)
}

// SnowTelemetry is a snowpack reading from the SNOTEL-equivalent adapter.
type SnowTelemetry struct {
	Snowfall24hIn float64
	Snowfall48hIn float64
	SnowDepthIn   float64
	ObservedAt    time.Time
}

// SNOTELClient is the out-of-scope collaborator for snow telemetry.
type SNOTELClient interface {
	GetSnowTelemetry(ctx context.Context, coords config.Coordinates) (SnowTelemetry, error)
}

// Forecast is a short-range forecast reading, including the freezing level
// used by the rain-risk calculation.
type Forecast struct {
	FreezingLevelFt int
	DailyTempF      []float64
	GeneratedAt     time.Time
}

// ForecastClient is the out-of-scope collaborator for the freezing-level
// and short-range daily forecast (spec §4.8 bullet 2).
type ForecastClient interface {
	GetForecast(ctx context.Context, coords config.Coordinates) (Forecast, error)
}
