package crawler

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound request issuance to a configured
// requests-per-second ceiling. A single RateLimiter is shared by all
// concurrent fetches, including robots.txt lookups; no request bypasses
// it.
//
// Design decision: We build on golang.org/x/time/rate rather than a
// hand-rolled token bucket. The library implements exactly the leaky
// bucket this component needs, refills continuously, and queues waiters
// FIFO so no caller starves.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing perSecond requests per
// second with a burst of one second of backlog (minimum one request).
// A non-positive perSecond disables throttling entirely.
func NewRateLimiter(perSecond float64) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	burst := int(math.Ceil(perSecond))
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Acquire blocks until one more request would not exceed the configured
// ceiling, then reserves one unit of budget. It returns early with the
// context's error if the crawl is cancelled while waiting.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
