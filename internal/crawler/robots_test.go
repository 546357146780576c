package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// TestRobotsGateIsAllowed tests robots.txt rule enforcement.
func TestRobotsGateIsAllowed(t *testing.T) {
	t.Parallel()

	t.Run("honors disallow rules", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				fmt.Fprint(w, "User-agent: *\nDisallow: /private/\nAllow: /\n")
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		gate := NewRobotsGate(server.Client(), nil, "TestBot/1.0", nil)
		ctx := context.Background()

		if gate.IsAllowed(ctx, server.URL+"/private/secret.html") {
			t.Error("disallowed path should be blocked")
		}
		if !gate.IsAllowed(ctx, server.URL+"/public/page.html") {
			t.Error("allowed path should pass")
		}
		if !gate.IsAllowed(ctx, server.URL+"/") {
			t.Error("root should pass")
		}
	})

	t.Run("matches specific user-agent group", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "User-agent: TestBot\nDisallow: /bot-only/\n\nUser-agent: *\nDisallow:\n")
		}))
		defer server.Close()

		gate := NewRobotsGate(server.Client(), nil, "TestBot/1.0", nil)
		ctx := context.Background()

		if gate.IsAllowed(ctx, server.URL+"/bot-only/page") {
			t.Error("path disallowed for our agent should be blocked")
		}
		if !gate.IsAllowed(ctx, server.URL+"/other") {
			t.Error("unrelated path should pass")
		}
	})

	t.Run("missing robots.txt allows everything", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		gate := NewRobotsGate(server.Client(), nil, "TestBot/1.0", nil)

		if !gate.IsAllowed(context.Background(), server.URL+"/anything") {
			t.Error("404 robots.txt should allow everything")
		}
	})

	t.Run("server error allows everything", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		gate := NewRobotsGate(server.Client(), nil, "TestBot/1.0", nil)

		if !gate.IsAllowed(context.Background(), server.URL+"/anything") {
			t.Error("500 robots.txt should allow everything")
		}
	})

	t.Run("unreachable origin allows everything", func(t *testing.T) {
		t.Parallel()

		// Closed server: the fetch fails with a connection error.
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		url := server.URL
		server.Close()

		gate := NewRobotsGate(http.DefaultClient, nil, "TestBot/1.0", nil)

		if !gate.IsAllowed(context.Background(), url+"/page") {
			t.Error("unreachable robots.txt should allow everything")
		}
	})

	t.Run("fetches robots.txt once per origin", func(t *testing.T) {
		t.Parallel()

		var robotsFetches atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				robotsFetches.Add(1)
				fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		gate := NewRobotsGate(server.Client(), nil, "TestBot/1.0", nil)
		ctx := context.Background()

		for i := 0; i < 10; i++ {
			gate.IsAllowed(ctx, fmt.Sprintf("%s/page-%d", server.URL, i))
		}

		if got := robotsFetches.Load(); got != 1 {
			t.Errorf("expected 1 robots.txt fetch, got %d", got)
		}
	})

	t.Run("failure result is cached too", func(t *testing.T) {
		t.Parallel()

		var robotsFetches atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				robotsFetches.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		gate := NewRobotsGate(server.Client(), nil, "TestBot/1.0", nil)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			if !gate.IsAllowed(ctx, fmt.Sprintf("%s/page-%d", server.URL, i)) {
				t.Error("failed robots.txt should allow everything")
			}
		}

		if got := robotsFetches.Load(); got != 1 {
			t.Errorf("expected 1 robots.txt fetch despite failure, got %d", got)
		}
	})

	t.Run("query string participates in matching", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "User-agent: *\nDisallow: /search?*\n")
		}))
		defer server.Close()

		gate := NewRobotsGate(server.Client(), nil, "TestBot/1.0", nil)
		ctx := context.Background()

		if gate.IsAllowed(ctx, server.URL+"/search?q=secret") {
			t.Error("disallowed query pattern should be blocked")
		}
	})
}
