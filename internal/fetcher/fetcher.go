// Package fetcher wraps *http.Client with the timeout, user-agent, and
// cancellation handling shared by every scraping strategy (spec §4.2).
// Grounded on the teacher's contentfetcher.go request-building idiom,
// trimmed to the spec's declared Non-goal: no persona/DNS/proxy rotation,
// just UA spoofing and timeouts.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

const (
	// DefaultTimeout is the per-request timeout spec §4.2 mandates.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent mimics a desktop Chrome browser per spec §4.2.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Response is the result of one fetch.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client is the shared Fetcher. The zero value is ready to use.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

// New builds a Client with DefaultTimeout and DefaultUserAgent.
func New() *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: DefaultTimeout},
		UserAgent: DefaultUserAgent,
	}
}

// Fetch performs one HTTP request, honoring ctx cancellation and an
// optional per-call timeout override. A status of 400 or above is reported
// as ErrUpstream; context deadline/cancellation is reported as ErrTimeout or
// ErrCancelled; any other transport failure is ErrNetwork.
func (c *Client) Fetch(ctx context.Context, url, method string, headers map[string]string, timeout time.Duration) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrNetwork, "build request for "+url, err)
	}

	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, models.NewScrapeError(models.ErrTimeout, "fetch "+url, err)
		}
		if ctx.Err() == context.Canceled {
			return nil, models.NewScrapeError(models.ErrCancelled, "fetch "+url, err)
		}
		return nil, models.NewScrapeError(models.ErrNetwork, "fetch "+url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrNetwork, "read body from "+url, err)
	}

	if resp.StatusCode >= 400 {
		return nil, models.NewScrapeError(models.ErrUpstream,
			http.StatusText(resp.StatusCode), nil)
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}
