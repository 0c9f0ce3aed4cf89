package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/fetcher"
	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

// JSONAPIScraper implements spec §4.4: fetch a JSON endpoint, apply a
// declarative transform to the same semantic fields as the static-HTML
// strategy, and merge in safe defaults for anything the transform left
// unset.
type JSONAPIScraper struct {
	fetcher *fetcher.Client
}

func (s *JSONAPIScraper) Scrape(ctx context.Context, cfg config.MountainConfig) (models.ScrapedStatus, error) {
	dataURL := cfg.JSONAPI.Endpoint
	resp, err := s.fetcher.Fetch(ctx, dataURL, cfg.JSONAPI.Method, cfg.JSONAPI.Headers, fetcher.DefaultTimeout)
	if err != nil {
		return models.ScrapedStatus{}, err
	}

	var payload interface{}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return models.ScrapedStatus{}, models.NewScrapeError(models.ErrUpstream, "response is not JSON", err)
	}

	status := applyTransform(payload, cfg.JSONAPI.Transform)
	status.MountainID = cfg.ID
	status.SourceURL = cfg.CanonicalURL
	status.DataURL = dataURL
	status.ScrapedAt = time.Now().UTC()
	status.Normalize()
	return status, nil
}

// applyTransform implements spec §4.4 step 3-4 using the small primitive
// vocabulary spec §9 asks for: path select, int coerce, ratio split (a
// "a.b" path yielding {open,total} via two sibling "*_open"/"*_total"
// paths), and presence-derived booleans. Missing counts default to 0,
// missing is_open defaults to false, missing percent_open stays absent.
func applyTransform(payload interface{}, t config.JSONTransform) models.ScrapedStatus {
	var status models.ScrapedStatus

	status.LiftsOpen = pathInt(payload, t.LiftsOpenPath)
	status.LiftsTotal = pathInt(payload, t.LiftsTotalPath)
	status.RunsOpen = pathInt(payload, t.RunsOpenPath)
	status.RunsTotal = pathInt(payload, t.RunsTotalPath)

	if t.IsOpenPath != "" {
		status.IsOpen = pathBool(payload, t.IsOpenPath)
	}
	if t.MessagePath != "" {
		status.Message = pathString(payload, t.MessagePath)
	}

	return status
}

// pathValue walks a dotted path ("lifts.open") through nested
// map[string]interface{}/[]interface{} values produced by encoding/json.
func pathValue(payload interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	cur := payload
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func pathInt(payload interface{}, path string) int {
	v, ok := pathValue(payload, path)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return 0
}

func pathBool(payload interface{}, path string) bool {
	v, ok := pathValue(payload, path)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return deriveIsOpen(b)
	case nil:
		return false
	default:
		return fmt.Sprintf("%v", b) != "" && fmt.Sprintf("%v", b) != "0"
	}
}

func pathString(payload interface{}, path string) string {
	v, ok := pathValue(payload, path)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
