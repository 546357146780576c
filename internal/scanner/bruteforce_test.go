package scanner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/sitescout/internal/crawler"
)

// newProbeFetcher creates a fetcher suited for probing in tests.
func newProbeFetcher(client *http.Client) *crawler.Fetcher {
	return crawler.NewFetcher(client, crawler.NewRateLimiter(0), nil, "TestBot/1.0", nil,
		crawler.WithRetryTimes(0),
		crawler.WithBackoff(time.Millisecond, 10*time.Millisecond),
	)
}

// TestBruteForcerRun tests hidden-path probing.
func TestBruteForcerRun(t *testing.T) {
	t.Parallel()

	t.Run("records only responding paths", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/admin":
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, "<html>admin</html>")
			case "/backup.zip":
				w.Header().Set("Content-Type", "application/zip")
				fmt.Fprint(w, "PK")
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		bf := NewBruteForcer(newProbeFetcher(server.Client()), nil)
		hits, err := bf.Run(context.Background(), server.URL, []string{"admin", "secret", "backup.zip", "hidden"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(hits) != 2 {
			t.Fatalf("expected 2 hits, got %d: %v", len(hits), hits)
		}

		// Hits come back in wordlist order.
		if hits[0].URL != server.URL+"/admin" {
			t.Errorf("expected /admin first, got %q", hits[0].URL)
		}
		if hits[1].URL != server.URL+"/backup.zip" {
			t.Errorf("expected /backup.zip second, got %q", hits[1].URL)
		}
		if hits[1].ContentType != "application/zip" {
			t.Errorf("expected content type recorded, got %q", hits[1].ContentType)
		}
		if hits[1].Size != 2 {
			t.Errorf("expected size 2, got %d", hits[1].Size)
		}
	})

	t.Run("empty wordlist yields no hits", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		bf := NewBruteForcer(newProbeFetcher(server.Client()), nil)
		hits, err := bf.Run(context.Background(), server.URL, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hits) != 0 {
			t.Errorf("expected no hits, got %v", hits)
		}
	})

	t.Run("cancelled context stops probing", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		words := make([]string, 100)
		for i := range words {
			words[i] = fmt.Sprintf("word-%d", i)
		}

		bf := NewBruteForcer(newProbeFetcher(server.Client()), nil)
		if _, err := bf.Run(ctx, server.URL, words); err == nil {
			t.Error("expected error from cancelled context")
		}
	})
}

// TestReadWordlist tests wordlist file parsing.
func TestReadWordlist(t *testing.T) {
	t.Parallel()

	t.Run("skips blanks and comments", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "words.txt")
		content := "# common paths\nadmin\n\n  backup  \n# comment\nlogin\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write wordlist: %v", err)
		}

		words, err := ReadWordlist(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"admin", "backup", "login"}
		if len(words) != len(want) {
			t.Fatalf("expected %d words, got %d: %v", len(want), len(words), words)
		}
		for i, w := range words {
			if w != want[i] {
				t.Errorf("word %d: expected %q, got %q", i, want[i], w)
			}
		}
	})

	t.Run("missing file returns error", func(t *testing.T) {
		t.Parallel()

		if _, err := ReadWordlist(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
