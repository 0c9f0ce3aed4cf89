package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

//go:embed mountains.json
var embeddedConfigFS embed.FS

// Registry is the read-only, process-wide Configuration Registry. It is
// built once via Load/LoadEmbedded and never mutated afterward.
type Registry struct {
	byID  map[string]MountainConfig
	order []string
}

// LoadEmbedded loads the registry from the module's bundled mountains.json,
// the concrete realization of spec §6's "configuration file ... delivered
// at process start".
func LoadEmbedded() (*Registry, error) {
	data, err := embeddedConfigFS.ReadFile("mountains.json")
	if err != nil {
		return nil, models.NewScrapeError(models.ErrConfigError, "read embedded mountains.json", err)
	}
	return Load(data)
}

// Load parses and validates a JSON array of MountainConfig records.
// Duplicate ids and strategy/param mismatches fail at load time (spec §2,
// §4.1: "Duplicate IDs are rejected at load time ... strategy-specific
// fields are validated against the declared strategy").
func Load(data []byte) (*Registry, error) {
	var configs []MountainConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, models.NewScrapeError(models.ErrConfigError, "parse mountain configs", err)
	}

	r := &Registry{byID: make(map[string]MountainConfig, len(configs))}
	for _, c := range configs {
		if err := validate(c); err != nil {
			return nil, err
		}
		if _, exists := r.byID[c.ID]; exists {
			return nil, models.NewScrapeError(models.ErrConfigError,
				fmt.Sprintf("duplicate mountain id %q", c.ID), nil)
		}
		r.byID[c.ID] = c
		r.order = append(r.order, c.ID)
	}

	log.Printf("[INFO] config: loaded %d mountain configs (%d enabled)", len(r.order), len(r.Enabled()))
	return r, nil
}

func validate(c MountainConfig) error {
	if c.ID == "" {
		return models.NewScrapeError(models.ErrConfigError, "mountain config missing id", nil)
	}
	if c.CanonicalURL == "" {
		return models.NewScrapeError(models.ErrConfigError, fmt.Sprintf("%s: missing canonical_url", c.ID), nil)
	}

	switch c.Strategy {
	case StrategyStaticHTML:
		if c.Selectors.Empty() {
			return models.NewScrapeError(models.ErrConfigError, fmt.Sprintf("%s: static_html requires selectors", c.ID), nil)
		}
	case StrategyJSONAPI:
		if c.JSONAPI.Endpoint == "" {
			return models.NewScrapeError(models.ErrConfigError, fmt.Sprintf("%s: json_api requires endpoint", c.ID), nil)
		}
	case StrategyHeadless:
		if c.Selectors.Empty() {
			return models.NewScrapeError(models.ErrConfigError, fmt.Sprintf("%s: headless_browser requires selectors", c.ID), nil)
		}
	default:
		return models.NewScrapeError(models.ErrConfigError, fmt.Sprintf("%s: unsupported strategy %q", c.ID, c.Strategy), nil)
	}
	return nil
}

// Get resolves a single config by id.
func (r *Registry) Get(id string) (MountainConfig, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// All returns every loaded config, in load order.
func (r *Registry) All() []MountainConfig {
	out := make([]MountainConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Enabled returns configs with Enabled == true, in load order.
func (r *Registry) Enabled() []MountainConfig {
	out := make([]MountainConfig, 0, len(r.order))
	for _, id := range r.order {
		if c := r.byID[id]; c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// ByBatch returns enabled configs tagged with batch n.
func (r *Registry) ByBatch(n int) []MountainConfig {
	out := make([]MountainConfig, 0)
	for _, id := range r.order {
		if c := r.byID[id]; c.Enabled && c.Batch == n {
			out = append(out, c)
		}
	}
	return out
}

// Batches returns the distinct batch numbers present among enabled configs,
// ascending.
func (r *Registry) Batches() []int {
	seen := make(map[int]bool)
	for _, id := range r.order {
		if c := r.byID[id]; c.Enabled {
			seen[c.Batch] = true
		}
	}
	out := make([]int, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}
