// Package main provides the entry point for the SiteScout CLI.
//
// SiteScout is a polite website reconnaissance tool. It crawls a site
// breadth-first within a configurable scope, discovers linked documents,
// maps locale coverage, and probes for unlinked resources.
//
// Usage:
//
//	sitescout scan <url>
//	sitescout scan --depth 2 --max-pages 100 <url>
//
// See --help for all available options.
package main

// main is the entry point for SiteScout.
func main() {
	Execute()
}
