// Package report renders scan results for human and machine consumers.
//
// Three formats are supported:
//   - Simple: human-readable text for terminal display (default)
//   - JSON: machine-readable output for tool integration
//   - Markdown: GitHub-flavored markdown for documentation and sharing
package report
