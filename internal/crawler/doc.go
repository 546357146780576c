// Package crawler implements the crawl orchestration engine for SiteScout.
//
// # Architecture
//
// The package is built from small collaborating components:
//
//   - Frontier: visited-set deduplication plus per-depth pending queues
//   - RateLimiter: shared leaky-bucket throttle for all outbound requests
//   - RobotsGate: per-origin robots.txt fetch, parse, and cache
//   - Fetcher: a single logical fetch with timeout, retries, and backoff
//   - Orchestrator: breadth-first traversal driving the above
//
// The orchestrator drains one depth level at a time: it dispatches every
// URL queued at the current depth with bounded concurrency, waits for all
// of them to settle, extracts links from the successful text results, and
// only then advances to the next depth. This guarantees breadth-first
// semantics and bounds in-flight work to one level at a time.
//
// # Politeness
//
// Every network request, including robots.txt lookups, passes through the
// shared RateLimiter. robots.txt rules are honored per origin; a robots
// fetch failure is treated as full permission (fail-open) and cached so
// the origin is not refetched during the run.
//
// # Failure policy
//
// A page that fails after all retries is recorded as a failed result and
// the crawl continues. Only an unreachable seed aborts the run.
package crawler
