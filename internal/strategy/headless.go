package strategy

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	playwright "github.com/playwright-community/playwright-go"

	"github.com/ridgeline-labs/slope-scraper/internal/config"
	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

// headlessNavigationTimeout is the overall per-scrape cap from spec §4.5/§5:
// "30 s navigation cap".
const headlessNavigationTimeout = 30 * time.Second

const headlessUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// HeadlessScraper implements spec §4.5. It lazily starts a single
// process-wide Playwright engine and Chromium instance on first use (so a
// process whose configs are all static/json never starts the driver or a
// browser), then opens one fresh Page per scrape and closes it when done.
// Grounded on the teacher's getOrCreatePersistentSession/
// BrowseWithPlaywright (internal/analyzer/code_analyzer.go), trimmed down
// from cookie-persisting debug sessions to the spec's simpler "fresh page
// per scrape, reuse the engine" contract.
type HeadlessScraper struct {
	once    sync.Once
	initErr error
	pw      *playwright.Playwright
	browser playwright.Browser
	mu      sync.Mutex
}

// NewHeadlessScraper returns a HeadlessScraper that has not yet started the
// browser engine.
func NewHeadlessScraper() *HeadlessScraper {
	return &HeadlessScraper{}
}

// graceDelay resolves a config's post-navigation grace period, defaulting
// to the ~3s spec §4.5/§9 calls empirical but bounded by the overall 30s cap.
func graceDelay(graceMS int) time.Duration {
	if graceMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(graceMS) * time.Millisecond
}

// Started reports whether the browser engine has been lazily initialized.
func (h *HeadlessScraper) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.browser != nil
}

func (h *HeadlessScraper) ensureStarted() error {
	h.once.Do(func() {
		pw, err := playwright.Run()
		if err != nil {
			h.initErr = models.NewScrapeError(models.ErrHeadlessInitFailed, "start playwright driver", err)
			return
		}
		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(true),
			Args: []string{
				"--no-sandbox",
				"--disable-dev-shm-usage",
				"--disable-gpu",
			},
		})
		if err != nil {
			pw.Stop()
			h.initErr = models.NewScrapeError(models.ErrHeadlessInitFailed, "launch chromium", err)
			return
		}
		h.pw = pw
		h.browser = browser
	})
	return h.initErr
}

// Scrape implements spec §4.5: navigate with wait-for-network-idle, wait a
// fixed grace period, evaluate the same selector set as the static-HTML
// strategy, then close the page. The browser instance is reused across
// scrapes; only the page is per-call.
func (h *HeadlessScraper) Scrape(ctx context.Context, cfg config.MountainConfig) (models.ScrapedStatus, error) {
	if err := h.ensureStarted(); err != nil {
		return models.ScrapedStatus{}, err
	}

	h.mu.Lock()
	browser := h.browser
	h.mu.Unlock()

	scrapeCtx, cancel := context.WithTimeout(ctx, headlessNavigationTimeout)
	defer cancel()

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{UserAgent: playwright.String(headlessUserAgent)})
	if err != nil {
		return models.ScrapedStatus{}, models.NewScrapeError(models.ErrHeadlessInitFailed, "open page", err)
	}
	defer page.Close()

	// Watchdog: abort the page if scrapeCtx expires before Playwright's own
	// call returns (e.g. a hung navigation). Playwright's Go bindings block
	// synchronously, so a context cancellation must be converted into an
	// explicit page close on a separate goroutine (spec §9: "strategies
	// that cannot honor cancellation must wrap their work in a watchdog
	// that aborts the page").
	done := make(chan struct{})
	go func() {
		select {
		case <-scrapeCtx.Done():
			page.Close()
		case <-done:
		}
	}()
	defer close(done)

	dataURL := cfg.EffectiveDataURL()
	waitUntil := playwright.WaitUntilStateNetworkidle
	if _, err := page.Goto(dataURL, playwright.PageGotoOptions{
		WaitUntil: &waitUntil,
		Timeout:   playwright.Float(float64(headlessNavigationTimeout.Milliseconds())),
	}); err != nil {
		if scrapeCtx.Err() != nil {
			return models.ScrapedStatus{}, models.NewScrapeError(models.ErrTimeout, "navigate to "+dataURL, err)
		}
		return models.ScrapedStatus{}, models.NewScrapeError(models.ErrNetwork, "navigate to "+dataURL, err)
	}

	grace := graceDelay(cfg.WaitPolicy.GraceMS)
	page.WaitForTimeout(float64(grace.Milliseconds()))

	html, err := page.Content()
	if err != nil {
		return models.ScrapedStatus{}, models.NewScrapeError(models.ErrParse, "read rendered content", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
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

// Close stops the Playwright driver and browser, if they were ever started.
// Safe to call even when the engine was never lazily initialized.
func (h *HeadlessScraper) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser != nil {
		h.browser.Close()
	}
	if h.pw != nil {
		h.pw.Stop()
	}
}
