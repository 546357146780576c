package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These are conservative politeness settings suitable for scanning
// production sites you are authorized to test.
const (
	// DefaultTimeout applies to each individual HTTP request.
	// 30 seconds tolerates slow origins without hanging the crawl.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxDepth of 3 explores a site's main sections without
	// descending into unbounded archives or calendars.
	DefaultMaxDepth = 3

	// DefaultMaxPages caps the total pages fetched per target.
	// This prevents runaway crawling on large or infinitely-generating
	// sites. Zero disables the cap.
	DefaultMaxPages = 200

	// DefaultRateLimit is the shared requests-per-second ceiling.
	// 2 req/s keeps the scanner well below what most origins notice.
	DefaultRateLimit = 2.0

	// DefaultConcurrency bounds simultaneous connections per crawl.
	// The rate limit, not concurrency, governs request frequency; this
	// only caps how many requests can be in flight at once.
	DefaultConcurrency = 10

	// DefaultRetryTimes is the number of extra attempts for transient
	// failures (5xx, timeouts, connection errors).
	DefaultRetryTimes = 2

	// DefaultUserAgent identifies SiteScout in HTTP requests and in
	// robots.txt group matching. A descriptive User-Agent lets site
	// operators identify scanner traffic in their logs.
	DefaultUserAgent = "SiteScout/1.0 (+https://github.com/nao1215/sitescout)"

	// DefaultMaxBodySize limits the response body bytes read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultBatchSize is the number of targets scanned concurrently
	// when multiple seed URLs are given.
	DefaultBatchSize = 3

	// AppName is the application name used for XDG directory paths.
	AppName = "sitescout"
)

// Config holds all configuration options for SiteScout.
// It is populated from CLI flags and passed through the application via
// dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested
// structs for simplicity. The number of options is manageable, and
// nesting would add complexity without significant benefit.
type Config struct {
	// Targets is the list of seed URLs to scan.
	// Must contain at least one absolute http(s) URL.
	Targets []string

	// MaxDepth is the maximum link-following depth from each seed.
	// Depth 0 fetches only the seed page.
	MaxDepth int

	// MaxPages caps the total pages fetched per target, counting every
	// URL admitted to the frontier. Zero disables the cap.
	MaxPages int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// RateLimit is the shared requests-per-second ceiling applied to
	// all outbound traffic, robots.txt lookups included.
	RateLimit float64

	// Concurrency bounds simultaneous fetches within one depth level.
	Concurrency int

	// RetryTimes is the number of additional attempts for transient
	// failures before a page is recorded as failed.
	RetryTimes int

	// UserAgent is sent with every request and used to select the
	// matching robots.txt rule group.
	UserAgent string

	// Scope restricts which discovered links are crawled:
	// "domain" (registrable domain, default), "subdomain" (exact host),
	// or "unrestricted".
	Scope string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// WordlistPath points at a hidden-path wordlist. Empty disables the
	// brute-force step.
	WordlistPath string

	// BatchSize is the number of targets scanned concurrently.
	BatchSize int

	// Verbose enables debug-level log output.
	Verbose bool

	// JSONReport enables JSON report output.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written there instead of stdout.
	ReportFile string

	// ConfigFilePath is the path to the .sitescout configuration file.
	// If empty, the tool searches the current directory and then the
	// user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site overrides loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory for the SQLite scan history database.
	// When set, scan results are saved for later comparison.
	DBDir string

	// SaveToDB indicates whether to persist scan results.
	// Automatically true when DBDir is configured.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
//
// Design decision: We use a constructor instead of relying on zero
// values because many defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:    DefaultMaxDepth,
		MaxPages:    DefaultMaxPages,
		Timeout:     DefaultTimeout,
		RateLimit:   DefaultRateLimit,
		Concurrency: DefaultConcurrency,
		RetryTimes:  DefaultRetryTimes,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		BatchSize:   DefaultBatchSize,
		Scope:       "domain",
	}
}

// XDGDataDir returns the XDG data directory for SiteScout.
// On Linux: ~/.local/share/sitescout
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for SiteScout.
// On Linux: ~/.config/sitescout
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid, returning a specific
// error describing the first problem found.
//
// Design decision: We validate once after CLI parsing rather than at
// each point of use, to fail fast with a clear message. We return the
// first error found because fixing one often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RateLimit <= 0 {
		return ErrInvalidRateLimit
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RetryTimes < 0 {
		return ErrInvalidRetryTimes
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}
