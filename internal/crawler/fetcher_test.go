package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitescout/internal/model"
)

// newTestFetcher creates a fetcher with fast backoff for tests.
func newTestFetcher(client *http.Client, robots *RobotsGate, opts ...FetcherOption) *Fetcher {
	base := []FetcherOption{
		WithBackoff(time.Millisecond, 10*time.Millisecond),
	}
	return NewFetcher(client, NewRateLimiter(0), robots, "TestBot/1.0", nil, append(base, opts...)...)
}

// TestFetcherFetch tests the fetch, retry, and classification behavior.
func TestFetcherFetch(t *testing.T) {
	t.Parallel()

	t.Run("fetches and decodes HTML", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><head><title>Hello</title></head></html>")
		}))
		defer server.Close()

		f := newTestFetcher(server.Client(), nil)
		result := f.Fetch(context.Background(), server.URL+"/", 0)

		if result.Err != nil {
			t.Fatalf("unexpected error: %v", result.Err)
		}
		if result.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", result.StatusCode)
		}
		if result.Kind != model.ContentText {
			t.Errorf("expected text content, got %v", result.Kind)
		}
		if !strings.Contains(result.Text, "<title>Hello</title>") {
			t.Errorf("expected decoded body, got %q", result.Text)
		}
		if result.Hash == "" {
			t.Error("expected content hash to be computed")
		}
		if result.Depth != 0 {
			t.Errorf("expected depth 0, got %d", result.Depth)
		}
	})

	t.Run("retries transient server errors until success", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html>ok</html>")
		}))
		defer server.Close()

		f := newTestFetcher(server.Client(), nil, WithRetryTimes(2))
		result := f.Fetch(context.Background(), server.URL+"/", 1)

		if result.Err != nil {
			t.Fatalf("expected success after retries, got %v", result.Err)
		}
		if got := hits.Load(); got != 3 {
			t.Errorf("expected 3 attempts, got %d", got)
		}
	})

	t.Run("exhausted retries yield transient error", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		f := newTestFetcher(server.Client(), nil, WithRetryTimes(2))
		result := f.Fetch(context.Background(), server.URL+"/", 0)

		if !errors.Is(result.Err, ErrTransient) {
			t.Fatalf("expected transient error, got %v", result.Err)
		}
		if got := hits.Load(); got != 3 {
			t.Errorf("expected 3 attempts (1 + 2 retries), got %d", got)
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		f := newTestFetcher(server.Client(), nil, WithRetryTimes(3))
		result := f.Fetch(context.Background(), server.URL+"/missing", 0)

		if !errors.Is(result.Err, ErrClientError) {
			t.Fatalf("expected client error, got %v", result.Err)
		}
		if result.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", result.StatusCode)
		}
		if got := hits.Load(); got != 1 {
			t.Errorf("expected exactly 1 attempt for 4xx, got %d", got)
		}
	})

	t.Run("network errors are retried", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		url := server.URL
		server.Close()

		f := newTestFetcher(http.DefaultClient, nil, WithRetryTimes(1))
		result := f.Fetch(context.Background(), url+"/", 0)

		if !errors.Is(result.Err, ErrTransient) {
			t.Fatalf("expected transient error for connection refused, got %v", result.Err)
		}
	})

	t.Run("disallowed URL issues no request", func(t *testing.T) {
		t.Parallel()

		var pageHits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
				return
			}
			pageHits.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		robots := NewRobotsGate(server.Client(), nil, "TestBot/1.0", nil)
		f := newTestFetcher(server.Client(), robots)
		result := f.Fetch(context.Background(), server.URL+"/private/page", 1)

		if !errors.Is(result.Err, ErrForbidden) {
			t.Fatalf("expected forbidden error, got %v", result.Err)
		}
		if got := pageHits.Load(); got != 0 {
			t.Errorf("expected no page request for disallowed URL, got %d", got)
		}
	})

	t.Run("classifies binary content", func(t *testing.T) {
		t.Parallel()

		payload := []byte{0x25, 0x50, 0x44, 0x46, 0x2d} // %PDF-
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(payload) //nolint:errcheck // test server
		}))
		defer server.Close()

		f := newTestFetcher(server.Client(), nil)
		result := f.Fetch(context.Background(), server.URL+"/doc.pdf", 0)

		if result.Err != nil {
			t.Fatalf("unexpected error: %v", result.Err)
		}
		if result.Kind != model.ContentBinary {
			t.Errorf("expected binary content, got %v", result.Kind)
		}
		if string(result.Raw) != string(payload) {
			t.Errorf("expected raw payload preserved, got %v", result.Raw)
		}
		if result.Text != "" {
			t.Errorf("binary result should have no text, got %q", result.Text)
		}
	})

	t.Run("classifies JSON as text", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"ok":true}`)
		}))
		defer server.Close()

		f := newTestFetcher(server.Client(), nil)
		result := f.Fetch(context.Background(), server.URL+"/api", 0)

		if result.Kind != model.ContentText {
			t.Errorf("expected JSON classified as text, got %v", result.Kind)
		}
		if result.Text != `{"ok":true}` {
			t.Errorf("expected JSON body, got %q", result.Text)
		}
	})

	t.Run("truncates oversized bodies", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, strings.Repeat("x", 4096))
		}))
		defer server.Close()

		f := newTestFetcher(server.Client(), nil, WithMaxBodySize(1024))
		result := f.Fetch(context.Background(), server.URL+"/big", 0)

		if result.Err != nil {
			t.Fatalf("unexpected error: %v", result.Err)
		}
		if len(result.Text) > 1024 {
			t.Errorf("expected body capped at 1024 bytes, got %d", len(result.Text))
		}
	})

	t.Run("sends configured cookie and headers", func(t *testing.T) {
		t.Parallel()

		var gotCookie, gotAuth, gotUA string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			gotAuth = r.Header.Get("Authorization")
			gotUA = r.Header.Get("User-Agent")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		f := newTestFetcher(server.Client(), nil,
			WithCookie("session=abc123"),
			WithHeaders(map[string]string{"Authorization": "Bearer tok"}),
		)
		f.Fetch(context.Background(), server.URL+"/", 0)

		if gotCookie != "session=abc123" {
			t.Errorf("expected cookie header, got %q", gotCookie)
		}
		if gotAuth != "Bearer tok" {
			t.Errorf("expected authorization header, got %q", gotAuth)
		}
		if gotUA != "TestBot/1.0" {
			t.Errorf("expected user-agent, got %q", gotUA)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		f := newTestFetcher(server.Client(), nil, WithRetryTimes(5))
		result := f.Fetch(ctx, server.URL+"/", 0)

		if result.Err == nil {
			t.Fatal("expected error from cancelled context")
		}
	})
}

// TestSleepBackoff tests the retry delay schedule.
func TestSleepBackoff(t *testing.T) {
	t.Parallel()

	t.Run("delay grows toward the cap", func(t *testing.T) {
		t.Parallel()

		f := newTestFetcher(http.DefaultClient, nil, WithBackoff(5*time.Millisecond, 40*time.Millisecond))

		start := time.Now()
		if err := f.sleepBackoff(context.Background(), 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
			t.Errorf("first retry slept %s, want at least the base delay", elapsed)
		}
	})

	t.Run("high attempt counts still wait the capped delay", func(t *testing.T) {
		t.Parallel()

		// A naive base<<(attempt-1) overflows into a negative delay
		// here and returns immediately.
		f := newTestFetcher(http.DefaultClient, nil, WithBackoff(time.Millisecond, 30*time.Millisecond))

		start := time.Now()
		if err := f.sleepBackoff(context.Background(), 63); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
			t.Errorf("attempt 63 slept %s, want the capped delay", elapsed)
		}
	})
}
