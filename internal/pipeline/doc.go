// Package pipeline orchestrates the steps of one site scan.
//
// A scan is a sequence of steps executed against a shared ScanReport:
// crawl, document discovery, locale detection, and hidden-path brute
// force. The Pipeline runs steps in order for a single target; the
// BatchProcessor fans scans out over multiple targets with bounded
// concurrency.
package pipeline
