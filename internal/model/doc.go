// Package model defines the data structures shared across SiteScout.
//
// The model package has no dependencies on other internal packages.
// This keeps the dependency graph clean: crawler, scanner, pipeline,
// report, and database all depend on model, never the reverse.
//
// Key types:
//   - FetchResult: a single fetched page (or a fetch failure)
//   - ScanReport: the aggregate result of scanning one target site
package model
