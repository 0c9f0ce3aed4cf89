package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

func TestFetchSetsUserAgentAndHeaders(t *testing.T) {
	var gotUA, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New()
	resp, err := c.Fetch(context.Background(), srv.URL, "", map[string]string{"X-Custom": "yes"}, 0)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
	if gotCustom != "yes" {
		t.Errorf("X-Custom header not merged in, got %q", gotCustom)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New()
	_, err := c.Fetch(context.Background(), srv.URL, "", nil, 0)
	if err == nil {
		t.Fatal("expected upstream error")
	}
	if models.KindOf(err) != models.ErrUpstream {
		t.Errorf("KindOf(err) = %v, want %v", models.KindOf(err), models.ErrUpstream)
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	_, err := c.Fetch(context.Background(), srv.URL, "", nil, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if models.KindOf(err) != models.ErrTimeout {
		t.Errorf("KindOf(err) = %v, want %v", models.KindOf(err), models.ErrTimeout)
	}
}
