// Package log provides slog-based logging with automatic redaction of
// credentials.
//
// SiteScout's configuration file can carry per-site cookies and
// authorization headers for crawling authenticated areas. Those values
// flow through fetcher and pipeline code that logs request details, so
// the logger itself guarantees they never reach log output, even in
// verbose mode.
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
