package crawler

import "errors"

// Fetch error taxonomy.
// These errors are attached to FetchResult.Err so downstream reporting
// can distinguish forbidden, failed, and fetched pages.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances per fetch. This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrForbidden means robots.txt disallows the path for the effective
	// user-agent. The page is skipped, never retried, and no network
	// request is issued for it.
	ErrForbidden = errors.New("blocked by robots.txt")

	// ErrClientError means the server answered with a 4xx status.
	// Client errors are not transient and are never retried.
	ErrClientError = errors.New("client error response")

	// ErrTransient means a timeout, connection failure, or 5xx response.
	// Transient failures are retried with exponential backoff; a fetch
	// result carrying this error has exhausted all retries.
	ErrTransient = errors.New("transient fetch failure")

	// ErrSeedUnreachable means the seed URL could not be fetched at all.
	// Unlike per-page failures, this aborts the entire run.
	ErrSeedUnreachable = errors.New("seed URL unreachable")
)
