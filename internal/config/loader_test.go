package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfigFile tests YAML configuration file loading.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads site configurations", func(t *testing.T) {
		t.Parallel()

		content := `
defaults:
  depth: 2
  rateLimit: 1.5
sites:
  example.com:
    cookie: "session=abc"
    depth: 5
    scope: subdomain
    headers:
      Authorization: "Bearer tok"
  example.org:
    rateLimit: 0.5
`
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cf.Defaults.Depth != 2 {
			t.Errorf("expected default depth 2, got %d", cf.Defaults.Depth)
		}
		site, ok := cf.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com entry")
		}
		if site.Cookie != "session=abc" {
			t.Errorf("expected cookie, got %q", site.Cookie)
		}
		if site.Depth != 5 {
			t.Errorf("expected depth 5, got %d", site.Depth)
		}
		if site.Scope != "subdomain" {
			t.Errorf("expected scope subdomain, got %q", site.Scope)
		}
		if site.Headers["Authorization"] != "Bearer tok" {
			t.Errorf("expected authorization header, got %v", site.Headers)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("malformed YAML returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("sites: [not a map"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for malformed YAML")
		}
	})

	t.Run("empty file yields empty config", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected initialized sites map")
		}
	})
}

// TestFindConfigFile tests configuration file discovery.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path that exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "my.yaml")
		if err := os.WriteFile(path, []byte("sites: {}"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("expected empty result, got %q", got)
		}
	})
}

// TestGetSiteConfig tests per-site configuration merging.
func TestGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Depth:     2,
			RateLimit: 1.0,
			Headers:   map[string]string{"X-Default": "yes"},
		},
		Sites: map[string]SiteConfig{
			"example.com": {
				Cookie: "session=abc",
				Depth:  5,
				Headers: map[string]string{
					"Authorization": "Bearer tok",
				},
			},
		},
	}

	t.Run("merges site entry over defaults", func(t *testing.T) {
		t.Parallel()

		site := cf.GetSiteConfig("example.com")

		if site.Depth != 5 {
			t.Errorf("expected site depth to win, got %d", site.Depth)
		}
		if site.RateLimit != 1.0 {
			t.Errorf("expected default rate limit to survive, got %f", site.RateLimit)
		}
		if site.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", site.Cookie)
		}
		if site.Headers["Authorization"] != "Bearer tok" {
			t.Errorf("expected site header, got %v", site.Headers)
		}
	})

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		site := cf.GetSiteConfig("unknown.net")

		if site.Depth != 2 {
			t.Errorf("expected default depth, got %d", site.Depth)
		}
		if site.Cookie != "" {
			t.Errorf("expected no cookie, got %q", site.Cookie)
		}
	})
}
