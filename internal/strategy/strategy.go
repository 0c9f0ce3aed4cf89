// Package strategy implements the three Scraper strategies behind one
// contract: static HTML (goquery), JSON API, and headless-browser
// (playwright-go). See spec §4.3-§4.5 and §9 "pluggable strategies behind
// one contract".
package strategy

import (
	"context"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/fetcher"
	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

// Scraper is the single contract every strategy implements.
type Scraper interface {
	Scrape(ctx context.Context, cfg config.MountainConfig) (models.ScrapedStatus, error)
}

// Factory constructs the Scraper for a config's declared strategy. The
// headless scraper is created with the factory but starts its browser engine
// lazily (see headless.go), so the Playwright driver is never started unless
// a config demands it (spec §4.5,
// §8 "Headless strategy is never instantiated in a process whose configs
// all omit it").
type Factory struct {
	fetcher  *fetcher.Client
	headless *HeadlessScraper
}

// NewFactory builds a strategy Factory sharing one Fetcher across the
// static-HTML and JSON-API strategies (spec §4.2: "shared across strategies
// to centralize cancellation and timeout handling").
func NewFactory(f *fetcher.Client) *Factory {
	return &Factory{fetcher: f, headless: NewHeadlessScraper()}
}

// For resolves the Scraper for cfg.Strategy.
func (f *Factory) For(cfg config.MountainConfig) (Scraper, error) {
	switch cfg.Strategy {
	case config.StrategyStaticHTML:
		return &StaticHTMLScraper{fetcher: f.fetcher}, nil
	case config.StrategyJSONAPI:
		return &JSONAPIScraper{fetcher: f.fetcher}, nil
	case config.StrategyHeadless:
		return f.headless, nil
	default:
		return nil, models.NewScrapeError(models.ErrStrategyUnsupported, string(cfg.Strategy), nil)
	}
}

// Close releases any resources held by lazily-constructed strategies (the
// headless engine, if it was ever started).
func (f *Factory) Close() {
	f.headless.Close()
}
