package crawler

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
)

// Scope controls which discovered links are eligible for crawling
// relative to the seed URL.
type Scope int

const (
	// ScopeDomain admits any host sharing the seed's registrable domain
	// (last two host labels), so sub.example.com and example.com are both
	// in scope for a seed on example.com. This is the default.
	ScopeDomain Scope = iota

	// ScopeSubdomain admits only the seed's exact host.
	ScopeSubdomain

	// ScopeUnrestricted admits any http(s) URL.
	ScopeUnrestricted
)

// ParseScope converts a config string into a Scope.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "domain", "same-domain":
		return ScopeDomain, nil
	case "subdomain", "same-subdomain":
		return ScopeSubdomain, nil
	case "unrestricted", "all":
		return ScopeUnrestricted, nil
	default:
		return ScopeDomain, fmt.Errorf("unknown scope %q", s)
	}
}

// Frontier holds the set of URLs ever enqueued and the queues of URLs
// pending at each depth level. It is the single point of deduplication:
// a URL that normalizes identically to one already seen is rejected.
//
// Design decision: The visited set records URLs at enqueue time, not at
// fetch time. Recording at enqueue prevents the same URL discovered on
// two pages of the same level from being dispatched twice.
type Frontier struct {
	seedHost   string
	seedDomain string
	scope      Scope

	// maxPages caps the total number of URLs ever admitted.
	// Zero means unlimited.
	maxPages int

	mu      sync.Mutex
	seen    map[string]bool
	pending map[int][]string
}

// NewFrontier creates a Frontier scoped to the given seed URL.
// maxPages of zero disables the page cap.
func NewFrontier(seedURL string, scope Scope, maxPages int) (*Frontier, error) {
	norm, err := NormalizeURL(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}
	u, err := url.Parse(norm)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}

	return &Frontier{
		seedHost:   u.Hostname(),
		seedDomain: registrableDomain(u.Hostname()),
		scope:      scope,
		maxPages:   maxPages,
		seen:       make(map[string]bool),
		pending:    make(map[int][]string),
	}, nil
}

// Enqueue normalizes rawURL and, if it has not been seen before, is in
// scope, and the page cap is not exhausted, records it as seen and
// appends it to the pending queue for depth. Returns true iff the URL
// was admitted.
func (f *Frontier) Enqueue(rawURL string, depth int) bool {
	norm, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	if !f.inScope(norm) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[norm] {
		return false
	}
	if f.maxPages > 0 && len(f.seen) >= f.maxPages {
		return false
	}

	f.seen[norm] = true
	f.pending[depth] = append(f.pending[depth], norm)
	return true
}

// DrainLevel atomically removes and returns all URLs queued for the
// given depth. The visited set is untouched, so drained URLs can never
// be re-enqueued.
func (f *Frontier) DrainLevel(depth int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	queue := f.pending[depth]
	delete(f.pending, depth)
	return queue
}

// HasPending reports whether any depth level still has queued URLs.
func (f *Frontier) HasPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, queue := range f.pending {
		if len(queue) > 0 {
			return true
		}
	}
	return false
}

// SeenCount returns the number of distinct URLs ever admitted.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// inScope applies the configured scope filter to a normalized URL.
func (f *Frontier) inScope(norm string) bool {
	u, err := url.Parse(norm)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	switch f.scope {
	case ScopeUnrestricted:
		return true
	case ScopeSubdomain:
		return strings.EqualFold(u.Hostname(), f.seedHost)
	default:
		return registrableDomain(u.Hostname()) == f.seedDomain
	}
}

// NormalizeURL canonicalizes a URL so that equivalent spellings map to
// the same frontier entry: scheme and host are lower-cased, default
// ports stripped, the fragment removed, and an empty path becomes "/".
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute URL: %q", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	// Default ports carry no information.
	if (u.Scheme == "http" && u.Port() == "80") ||
		(u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}

	// http://example.com and http://example.com/ are the same resource.
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// registrableDomain returns the last two labels of a host, the unit of
// same-domain scoping. Hosts with fewer than two labels (localhost) and
// IP literals are kept whole, so same-domain scoping on an IP-addressed
// seed degrades to exact-host matching.
func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}
