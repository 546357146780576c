// Package scanner holds the analyzers that run over crawl output:
// document discovery, locale detection, and hidden-path brute force.
//
// The analyzers consume fetch results produced by the crawler and
// append their findings to the scan report. They contain no scheduling
// logic of their own beyond the brute forcer's bounded fan-out; crawl
// orchestration stays in the crawler package.
package scanner
