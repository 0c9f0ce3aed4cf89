package strategy

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/fetcher"
	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

// StaticHTMLScraper implements spec §4.3: fetch, parse as HTML with
// goquery, read the first match per selector, normalize via the ratio and
// percent parsers with a "count open-class nodes" fallback.
type StaticHTMLScraper struct {
	fetcher *fetcher.Client
}

func (s *StaticHTMLScraper) Scrape(ctx context.Context, cfg config.MountainConfig) (models.ScrapedStatus, error) {
	dataURL := cfg.EffectiveDataURL()
	resp, err := s.fetcher.Fetch(ctx, dataURL, "", nil, fetcher.DefaultTimeout)
	if err != nil {
		return models.ScrapedStatus{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if err != nil {
		// Malformed HTML is best-effort, not fatal (spec §4.3 edge cases).
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}

	status := extractFromDocument(doc, cfg.Selectors)
	status.MountainID = cfg.ID
	status.SourceURL = cfg.CanonicalURL
	status.DataURL = dataURL
	status.ScrapedAt = time.Now().UTC()
	status.Normalize()
	return status, nil
}

// extractFromDocument applies the selector set to doc, shared verbatim by
// the static-HTML and headless strategies (the headless strategy evaluates
// the same selectors inside the rendered page before handing raw text back
// here is unnecessary — it reuses this function directly on the page's
// final HTML snapshot).
func extractFromDocument(doc *goquery.Document, sel config.SelectorSet) models.ScrapedStatus {
	var status models.ScrapedStatus

	if sel.LiftsOpen != "" {
		status.LiftsOpen, status.LiftsTotal = extractRatioField(doc, sel.LiftsOpen)
	}
	if sel.RunsOpen != "" {
		status.RunsOpen, status.RunsTotal = extractRatioField(doc, sel.RunsOpen)
	}
	if sel.PercentOpen != "" {
		if text := firstText(doc, sel.PercentOpen); text != "" {
			if p, ok := parsePercent(text); ok {
				status.PercentOpen = &p
			}
		}
	}
	if sel.AcresOpen != "" {
		if text := firstText(doc, sel.AcresOpen); text != "" {
			if open, total, ok := parseRatio(text); ok {
				status.AcresOpen = &open
				status.AcresTotal = &total
			}
		}
	}
	if sel.Status != "" {
		status.IsOpen = deriveIsOpen(firstText(doc, sel.Status))
	}
	if sel.Message != "" {
		status.Message = firstText(doc, sel.Message)
	}

	return status
}

// extractRatioField implements the two-pattern normalization of spec §4.3
// step 4: try the ratio parser against the first matching element's text;
// if it doesn't match and the selector resolves to multiple elements, fall
// back to "count open-class nodes" (open = total = count).
func extractRatioField(doc *goquery.Document, selector string) (open, total int) {
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return 0, 0
	}

	text := strings.TrimSpace(sel.First().Text())
	if o, t, ok := parseRatio(text); ok {
		return o, t
	}

	if sel.Length() > 1 {
		count := sel.Length()
		return count, count
	}
	return 0, 0
}

func firstText(doc *goquery.Document, selector string) string {
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.First().Text())
}
