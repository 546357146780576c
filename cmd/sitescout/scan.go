package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitescout/internal/config"
	"github.com/nao1215/sitescout/internal/crawler"
	"github.com/nao1215/sitescout/internal/database"
	"github.com/nao1215/sitescout/internal/log"
	"github.com/nao1215/sitescout/internal/model"
	"github.com/nao1215/sitescout/internal/pipeline"
	"github.com/nao1215/sitescout/internal/report"
	"github.com/nao1215/sitescout/internal/scanner"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Crawl a website and report what it finds",
		Long: `Scan crawls a website breadth-first and reports on its structure.

It fetches pages level by level, staying within the target's domain by
default, and analyzes the result for:
- Page metadata (titles, meta tags, headings)
- Downloadable documents (PDF, Office files, CSV)
- Locale coverage (language-prefixed URL paths)
- Unlinked resources (wordlist probing, when a wordlist is given)

Examples:
  # Scan a single site
  sitescout scan https://example.com

  # Scan multiple sites
  sitescout scan https://example.com https://example.org

  # Limit depth and page count
  sitescout scan --depth 2 --max-pages 50 https://example.com

  # Follow links to sibling subdomains
  sitescout scan --scope subdomain https://example.com

  # Probe for hidden paths using a wordlist
  sitescout scan --wordlist common.txt https://example.com

  # Output JSON report to a file
  sitescout scan --json -o report.json https://example.com

Configuration file (.sitescout) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
    example.org:
      depth: 5
      rateLimit: 1.0`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Crawl behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Connection timeout for each request")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl recursion depth")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per site")
	cmd.Flags().Float64P("rate", "r", config.DefaultRateLimit,
		"Maximum requests per second per site")
	cmd.Flags().Int("retry", config.DefaultRetryTimes,
		"Number of retries for transient fetch failures")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Maximum in-flight fetches within a depth level")
	cmd.Flags().StringP("scope", "s", "domain",
		"Link-following scope: domain, subdomain, or unrestricted")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header for all requests")

	// Hidden-path probing
	cmd.Flags().StringP("wordlist", "w", "",
		"Wordlist file for hidden-path probing (disabled when empty)")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent site scans")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitescout in current or home directory)")

	// Scan history database
	cmd.Flags().String("db-dir", "",
		"Directory for the scan history database (default: XDG data directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with credential redaction
	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cfg, logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.RateLimit, err = cmd.Flags().GetFloat64("rate")
	if err != nil {
		return nil, err
	}

	cfg.RetryTimes, err = cmd.Flags().GetInt("retry")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.Scope, err = cmd.Flags().GetString("scope")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.WordlistPath, err = cmd.Flags().GetString("wordlist")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.Verbose, err = cmd.Flags().GetBool("verbose")
	if err != nil {
		cfg.Verbose, _ = cmd.Root().PersistentFlags().GetBool("verbose") //nolint:errcheck // missing flag means not verbose
	}

	// Load site-specific configurations from config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	// Scan results are always saved for later comparison. The database
	// lives in the XDG data directory unless --db-dir overrides it.
	cfg.SaveToDB = true
	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	// Get positional arguments (target URLs)
	cfg.Targets = args

	return cfg, nil
}

// normalizeTarget validates a target URL and returns its canonical
// form. A bare host without a scheme is treated as https.
func normalizeTarget(target string) (string, error) {
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	normalized, err := crawler.NormalizeURL(target)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q (only http and https)", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", target)
	}
	return normalized, nil
}

// runScan executes the scan.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting scan",
		"targets", cfg.Targets,
		"depth", cfg.MaxDepth,
		"maxPages", cfg.MaxPages,
		"batchSize", cfg.BatchSize,
	)

	// Open database connection if saving is enabled
	var db *database.ScanDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// Validate and normalize all target URLs
	for i, target := range cfg.Targets {
		normalized, err := normalizeTarget(target)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}
		cfg.Targets[i] = normalized
	}

	// Load the wordlist once; it is shared across all targets.
	var words []string
	if cfg.WordlistPath != "" {
		var err error
		words, err = scanner.ReadWordlist(cfg.WordlistPath)
		if err != nil {
			return fmt.Errorf("failed to read wordlist: %w", err)
		}
		logger.Info("wordlist loaded", "path", cfg.WordlistPath, "words", len(words))
	}

	client := &http.Client{Timeout: cfg.Timeout}

	// Use batch processor for parallel scanning if multiple targets
	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		return runBatchScan(ctx, cfg, client, db, words, logger)
	}

	return runSequentialScan(ctx, cfg, client, db, words, logger)
}

// runSequentialScan scans targets one at a time.
func runSequentialScan(ctx context.Context, cfg *config.Config, client *http.Client, db *database.ScanDB, words []string, logger *slog.Logger) error {
	for _, target := range cfg.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p := createPipelineForTarget(client, logger, cfg, target, words)

		scanReport := model.NewScanReport(target)

		if db != nil {
			if prev, err := db.GetLatestScanReport(ctx, target); err == nil && prev != nil {
				fmt.Printf("Previous scan of %s on record from %s (%d pages); run 'sitescout compare' afterwards to diff.\n",
					target, prev.StartedAt.Format("2006-01-02 15:04"), prev.FetchedCount())
			}
		}

		fmt.Printf("Scanning %s...\n", target)
		startTime := time.Now()

		if err := p.Execute(ctx, scanReport); err != nil {
			logger.Error("scan failed", "target", target, "error", err)
			fmt.Fprintf(os.Stderr, "Scan error for %s: %v\n", target, err)
			continue
		}

		elapsed := time.Since(startTime)
		fmt.Printf("Scan completed in %s\n\n", elapsed.Round(time.Millisecond))

		if err := outputReport(cfg, scanReport); err != nil {
			logger.Error("report failed", "target", target, "error", err)
		}

		if err := saveScanReport(ctx, db, scanReport, logger); err != nil {
			logger.Error("failed to save scan report", "target", target, "error", err)
		}
	}

	return nil
}

// runBatchScan scans multiple targets concurrently using BatchProcessor.
func runBatchScan(ctx context.Context, cfg *config.Config, client *http.Client, db *database.ScanDB, words []string, logger *slog.Logger) error {
	fmt.Printf("Starting batch scan of %d targets (concurrency: %d)...\n\n",
		len(cfg.Targets), cfg.BatchSize)

	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			return createPipelineForTarget(client, logger, cfg, target, words)
		},
		pipeline.WithBatchConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	// Process with callback for streaming output
	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(scanReport *model.ScanReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Printf("[%d/%d] Scan completed: %s\n", index+1, len(cfg.Targets), scanReport.Target)

		if err := outputReport(cfg, scanReport); err != nil {
			logger.Error("report failed", "target", scanReport.Target, "error", err)
		}

		if err := saveScanReport(ctx, db, scanReport, logger); err != nil {
			logger.Error("failed to save scan report", "target", scanReport.Target, "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Printf("\nBatch scan completed in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// createPipelineForTarget creates a pipeline with the given target's
// merged site configuration. Each pipeline gets its own rate limiter
// so one site's budget does not starve another in batch mode.
func createPipelineForTarget(client *http.Client, logger *slog.Logger, cfg *config.Config, target string, words []string) *pipeline.Pipeline {
	site := getSiteConfig(cfg, target)

	perSecond := cfg.RateLimit
	if site.RateLimit > 0 {
		perSecond = site.RateLimit
	}
	limiter := crawler.NewRateLimiter(perSecond)

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)

	p.AddStep(pipeline.NewCrawlStep(client, cfg, site, limiter, logger))
	p.AddStep(pipeline.NewDocumentDiscoveryStep())
	p.AddStep(pipeline.NewLocalizationStep())

	if len(words) > 0 {
		p.AddStep(pipeline.NewBruteForceStep(client, cfg, limiter, words, logger))
	}

	return p
}

// getSiteConfig returns the merged site configuration for a target URL.
// Falls back to the file's defaults when no site entry matches.
func getSiteConfig(cfg *config.Config, target string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}

	host := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = u.Host
	}

	return cfg.SiteConfigs.GetSiteConfig(host)
}

// outputReport outputs the scan report in the requested format.
func outputReport(cfg *config.Config, scanReport *model.ScanReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may contain session cookies from the config file, so
		// keep them readable by the owner only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output (detailed report with all data)
	if cfg.JSONReport {
		writer := report.NewJSONWriter(output, report.WithPrettyPrint())
		_, err := writer.Write(scanReport)
		return err
	}

	// Markdown output
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(scanReport)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output)
	_, err := writer.Write(scanReport)
	return err
}

// saveScanReport saves the scan report and its per-page crawl records
// to the database. If db is nil, this function is a no-op.
func saveScanReport(ctx context.Context, db *database.ScanDB, scanReport *model.ScanReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if err := db.SaveScanReport(ctx, scanReport); err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	changed, err := db.SaveCrawlRecords(ctx, scanReport)
	if err != nil {
		return fmt.Errorf("failed to save crawl records: %w", err)
	}
	if changed > 0 {
		fmt.Printf("%d page(s) changed content since the previous scan.\n", changed)
	}

	logger.Info("scan report saved to database",
		"target", scanReport.Target,
		"changedPages", changed,
	)
	return nil
}
