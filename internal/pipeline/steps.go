package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nao1215/sitescout/internal/config"
	"github.com/nao1215/sitescout/internal/crawler"
	"github.com/nao1215/sitescout/internal/model"
	"github.com/nao1215/sitescout/internal/scanner"
)

// CrawlStep runs the breadth-first crawl for the report's target and
// fills in the per-page results. It is always the first step: every
// analyzer step reads what it produces.
type CrawlStep struct {
	client  *http.Client
	cfg     *config.Config
	site    config.SiteConfig
	limiter *crawler.RateLimiter
	logger  *slog.Logger
}

// NewCrawlStep creates a CrawlStep. The limiter is shared with any
// other step that touches the network, so the whole scan observes one
// requests-per-second ceiling.
func NewCrawlStep(client *http.Client, cfg *config.Config, site config.SiteConfig, limiter *crawler.RateLimiter, logger *slog.Logger) *CrawlStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlStep{
		client:  client,
		cfg:     cfg,
		site:    site,
		limiter: limiter,
		logger:  logger,
	}
}

// Name returns the step name.
func (s *CrawlStep) Name() string { return "crawl" }

// Do crawls the target and records one PageInfo per dispatched fetch.
// A fatal crawl error (unreachable seed, cancellation) is returned;
// per-page failures are recorded in the report and do not fail the step.
func (s *CrawlStep) Do(ctx context.Context, report *model.ScanReport) error {
	depth := s.cfg.MaxDepth
	if s.site.Depth > 0 {
		depth = s.site.Depth
	}

	scopeStr := s.cfg.Scope
	if s.site.Scope != "" {
		scopeStr = s.site.Scope
	}
	scope, err := crawler.ParseScope(scopeStr)
	if err != nil {
		return err
	}

	frontier, err := crawler.NewFrontier(report.Target, scope, s.cfg.MaxPages)
	if err != nil {
		return err
	}

	robots := crawler.NewRobotsGate(s.client, s.limiter, s.cfg.UserAgent, s.logger)
	fetcher := crawler.NewFetcher(s.client, s.limiter, robots, s.cfg.UserAgent, s.logger,
		crawler.WithRetryTimes(s.cfg.RetryTimes),
		crawler.WithMaxBodySize(s.cfg.MaxBodySize),
		crawler.WithCookie(s.site.Cookie),
		crawler.WithHeaders(s.site.Headers),
	)

	orch := crawler.NewOrchestrator(fetcher, frontier, nil,
		crawler.WithMaxDepth(depth),
		crawler.WithConcurrency(s.cfg.Concurrency),
		crawler.WithLogger(s.logger),
	)

	results, crawlErr := orch.Crawl(ctx, report.Target)

	report.Results = results
	for _, res := range results {
		report.Pages = append(report.Pages, pageInfoFrom(res))
	}

	s.logger.Info("crawl finished",
		"target", report.Target,
		"pages", len(results),
		"fetched", report.FetchedCount(),
		"failed", report.FailedCount(),
	)

	return crawlErr
}

// pageInfoFrom converts a fetch result into its report entry, parsing
// HTML metadata when a text body is available.
func pageInfoFrom(res *model.FetchResult) model.PageInfo {
	info := model.PageInfo{
		URL:         res.URL,
		Depth:       res.Depth,
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
	}
	if res.Err != nil {
		info.Error = res.Err.Error()
	}

	if res.OK() && res.Kind == model.ContentText && res.IsHTML() {
		if parser, err := crawler.NewParser(res.URL); err == nil {
			if parsed, err := parser.Parse(strings.NewReader(res.Text)); err == nil {
				info.Title = parsed.Title
				info.Links = parsed.Links
				info.Meta = parsed.Meta
				info.Headings = parsed.Headings
			}
		}
	}

	return info
}

// DocumentDiscoveryStep flags downloadable documents linked from
// crawled pages.
type DocumentDiscoveryStep struct {
	finder *scanner.DocumentFinder
}

// NewDocumentDiscoveryStep creates a DocumentDiscoveryStep.
func NewDocumentDiscoveryStep() *DocumentDiscoveryStep {
	return &DocumentDiscoveryStep{finder: scanner.NewDocumentFinder()}
}

// Name returns the step name.
func (s *DocumentDiscoveryStep) Name() string { return "document-discovery" }

// Do records document links found on the crawled pages.
func (s *DocumentDiscoveryStep) Do(_ context.Context, report *model.ScanReport) error {
	report.Documents = s.finder.Find(report.Pages)
	return nil
}

// LocalizationStep groups crawled URLs by locale path segment.
type LocalizationStep struct {
	localizer *scanner.Localizer
}

// NewLocalizationStep creates a LocalizationStep.
func NewLocalizationStep() *LocalizationStep {
	return &LocalizationStep{localizer: scanner.NewLocalizer()}
}

// Name returns the step name.
func (s *LocalizationStep) Name() string { return "localization" }

// Do fills the report's locale map.
func (s *LocalizationStep) Do(_ context.Context, report *model.ScanReport) error {
	s.localizer.Localize(report)
	return nil
}

// BruteForceStep probes the target for hidden paths from a wordlist.
type BruteForceStep struct {
	client  *http.Client
	cfg     *config.Config
	limiter *crawler.RateLimiter
	words   []string
	logger  *slog.Logger
}

// NewBruteForceStep creates a BruteForceStep over the given wordlist.
// The step shares the scan's rate limiter; probes never exceed the
// configured ceiling even though most of them 404 quickly.
func NewBruteForceStep(client *http.Client, cfg *config.Config, limiter *crawler.RateLimiter, words []string, logger *slog.Logger) *BruteForceStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &BruteForceStep{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
		words:   words,
		logger:  logger,
	}
}

// Name returns the step name.
func (s *BruteForceStep) Name() string { return "hidden-paths" }

// Do probes every wordlist entry against the target root and records
// the paths that answered 2xx.
//
// Probes bypass the robots gate: brute forcing deliberately looks for
// paths the site does not advertise, and a Disallow rule on /admin/
// would defeat the point of checking whether /admin/ exists. Probes are
// also issued without retries, since a missing path answers 404
// immediately and a transient miss is acceptable.
func (s *BruteForceStep) Do(ctx context.Context, report *model.ScanReport) error {
	if len(s.words) == 0 {
		return nil
	}

	fetcher := crawler.NewFetcher(s.client, s.limiter, nil, s.cfg.UserAgent, s.logger,
		crawler.WithRetryTimes(0),
		crawler.WithMaxBodySize(s.cfg.MaxBodySize),
	)
	bf := scanner.NewBruteForcer(fetcher, s.logger,
		scanner.WithProbeConcurrency(s.cfg.Concurrency),
	)

	hits, err := bf.Run(ctx, report.Target, s.words)
	report.HiddenResources = hits
	return err
}
