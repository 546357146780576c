package crawler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsGate answers "may I fetch path P on this origin?" for the
// crawler's user-agent. robots.txt is fetched and parsed once per origin
// and cached for the lifetime of the crawl run.
//
// A failed fetch (network error, timeout, non-2xx other than 404, or a
// malformed body) is treated as full permission. This fail-open default
// matches common crawler politeness convention; the failure is cached so
// the origin is not refetched.
//
// Design decision: We parse with github.com/temoto/robotstxt rather than
// hand-rolling the grammar. The library implements the longest-match
// rule, Allow/Disallow precedence, and agent-group selection, all of
// which are easy to get subtly wrong.
type RobotsGate struct {
	client    *http.Client
	limiter   *RateLimiter
	userAgent string
	logger    *slog.Logger

	mu sync.RWMutex
	// cache maps origin (scheme://host[:port]) to the matched agent
	// group. A nil group means everything is allowed for this origin.
	cache map[string]*robotstxt.Group
}

// maxRobotsBody bounds how much of a robots.txt response we read.
const maxRobotsBody = 512 * 1024

// NewRobotsGate creates a gate that fetches robots.txt with the given
// client. Lookups acquire budget from limiter before touching the
// network, so robots traffic obeys the same ceiling as page fetches.
func NewRobotsGate(client *http.Client, limiter *RateLimiter, userAgent string, logger *slog.Logger) *RobotsGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsGate{
		client:    client,
		limiter:   limiter,
		userAgent: userAgent,
		logger:    logger,
		cache:     make(map[string]*robotstxt.Group),
	}
}

// IsAllowed reports whether the crawler may fetch rawURL.
// Unparsable URLs are allowed; the fetcher will fail on them anyway
// with a more useful error.
func (g *RobotsGate) IsAllowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	origin := u.Scheme + "://" + u.Host

	g.mu.RLock()
	group, ok := g.cache[origin]
	g.mu.RUnlock()

	if !ok {
		group = g.fetchRules(ctx, origin)
		g.mu.Lock()
		// Another goroutine may have raced us here; first write wins so
		// the answer stays consistent for the rest of the run.
		if cached, ok := g.cache[origin]; ok {
			group = cached
		} else {
			g.cache[origin] = group
		}
		g.mu.Unlock()
	}

	if group == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

// fetchRules retrieves and parses robots.txt for an origin.
// Any failure yields nil, the fail-open result.
func (g *RobotsGate) fetchRules(ctx context.Context, origin string) *robotstxt.Group {
	if g.limiter != nil {
		if err := g.limiter.Acquire(ctx); err != nil {
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots.txt fetch failed, allowing origin",
			"origin", origin,
			"error", err,
		)
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		g.logger.Debug("robots.txt read failed, allowing origin",
			"origin", origin,
			"error", err,
		)
		return nil
	}

	// Anything but a 2xx is treated as "no usable robots.txt": servers
	// answering 404 or 5xx get the fail-open default.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Debug("robots.txt unavailable, allowing origin",
			"origin", origin,
			"status", resp.StatusCode,
		)
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		g.logger.Debug("robots.txt parse failed, allowing origin",
			"origin", origin,
			"error", err,
		)
		return nil
	}

	g.logger.Debug("robots.txt loaded", "origin", origin, "status", resp.StatusCode)
	return data.FindGroup(g.userAgent)
}
