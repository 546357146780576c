package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitescout/internal/model"
)

// LinkExtractor is the narrow contract between the orchestrator and the
// HTML parsing collaborator. Given a text fetch result it returns the
// raw (possibly relative) hyperlink targets found in the document; the
// orchestrator resolves them against the page URL and normalizes them
// before frontier insertion.
type LinkExtractor interface {
	ExtractLinks(res *model.FetchResult) []string
}

// HTMLLinkExtractor is the production LinkExtractor backed by Parser.
type HTMLLinkExtractor struct{}

// ExtractLinks parses an HTML result and returns its hyperlink targets.
// Non-HTML or unparsable content yields no links.
func (HTMLLinkExtractor) ExtractLinks(res *model.FetchResult) []string {
	if res.Kind != model.ContentText || !res.IsHTML() {
		return nil
	}
	parser, err := NewParser(res.URL)
	if err != nil {
		return nil
	}
	parsed, err := parser.Parse(strings.NewReader(res.Text))
	if err != nil {
		return nil
	}
	return parsed.Links
}

// Orchestrator drives the breadth-first traversal. For each depth level
// it drains the frontier, dispatches bounded-concurrency fetches, waits
// for all of them to settle, merges the discovered links into the next
// level, and advances until the depth bound is reached or the frontier
// is empty.
type Orchestrator struct {
	fetcher   *Fetcher
	frontier  *Frontier
	extractor LinkExtractor
	logger    *slog.Logger

	// maxDepth bounds the traversal; links first discovered beyond it
	// are never enqueued.
	maxDepth int

	// concurrency caps simultaneous fetches within one depth level.
	concurrency int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxDepth sets the maximum crawl depth.
// 0 means only the seed page, 1 adds one level of links, and so on.
func WithMaxDepth(depth int) OrchestratorOption {
	return func(o *Orchestrator) {
		if depth >= 0 {
			o.maxDepth = depth
		}
	}
}

// WithConcurrency caps the number of simultaneous fetches.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an Orchestrator over the given collaborators.
// The extractor may be nil, in which case HTMLLinkExtractor is used.
func NewOrchestrator(fetcher *Fetcher, frontier *Frontier, extractor LinkExtractor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		fetcher:     fetcher,
		frontier:    frontier,
		extractor:   extractor,
		maxDepth:    3,
		concurrency: 10,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.extractor == nil {
		o.extractor = HTMLLinkExtractor{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// Crawl traverses from seedURL and returns every fetch result in depth
// order: all depth-0 results precede all depth-1 results, and so on.
// Within one depth level, completion order is unspecified.
//
// Per-page failures travel inside their results and never abort the
// run. The returned error is non-nil only for fatal conditions: an
// invalid or unreachable seed, or cancellation of ctx (the results
// gathered so far are still returned).
func (o *Orchestrator) Crawl(ctx context.Context, seedURL string) ([]*model.FetchResult, error) {
	seed, err := NormalizeURL(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL %q: %w", seedURL, err)
	}
	if !o.frontier.Enqueue(seed, 0) {
		return nil, fmt.Errorf("seed URL %q rejected by frontier", seedURL)
	}

	var results []*model.FetchResult

	for depth := 0; depth <= o.maxDepth; depth++ {
		batch := o.frontier.DrainLevel(depth)
		if len(batch) == 0 {
			break
		}

		o.logger.Debug("crawling depth level",
			"depth", depth,
			"urls", len(batch),
		)

		levelResults, err := o.crawlLevel(ctx, batch, depth)
		results = append(results, levelResults...)
		if err != nil {
			// Cancelled: abandon pending entries, keep what settled.
			return results, err
		}

		// Seed reachability check. A depth-0 level has exactly one
		// entry; if it failed at the network level the whole run is
		// pointless and the caller needs to know. A fetch that failed
		// because the caller cancelled is cancellation, not an
		// unreachable seed.
		if depth == 0 && len(levelResults) == 1 {
			if seedErr := levelResults[0].Err; errors.Is(seedErr, ErrTransient) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return results, ctxErr
				}
				return results, fmt.Errorf("%w: %v", ErrSeedUnreachable, seedErr)
			}
		}

		// Merging happens after the level settles, so the frontier is
		// mutated from a single goroutine between levels.
		if depth+1 <= o.maxDepth {
			o.mergeLinks(levelResults, depth+1)
		}
	}

	return results, nil
}

// crawlLevel dispatches all URLs of one depth level with bounded
// concurrency and waits for every fetch to settle. Results are returned
// in dispatch order so repeated runs against a static site produce the
// same sequence.
func (o *Orchestrator) crawlLevel(ctx context.Context, batch []string, depth int) ([]*model.FetchResult, error) {
	slots := make([]*model.FetchResult, len(batch))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)

	var cancelled error
	for i, pageURL := range batch {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
		default:
		}
		if cancelled != nil {
			break
		}

		g.Go(func() error {
			res := o.fetcher.Fetch(ctx, pageURL, depth)
			mu.Lock()
			slots[i] = res
			mu.Unlock()
			return nil
		})
	}

	// All in-flight fetches settle before the level is considered done,
	// even when cancellation stopped further dispatch.
	_ = g.Wait() //nolint:errcheck // Workers never return errors

	results := make([]*model.FetchResult, 0, len(batch))
	for _, res := range slots {
		if res != nil {
			results = append(results, res)
		}
	}
	return results, cancelled
}

// mergeLinks extracts outbound links from successful text results,
// resolves them against their page URL, and offers them to the frontier
// at the next depth. Failed pages contribute no links.
func (o *Orchestrator) mergeLinks(results []*model.FetchResult, nextDepth int) {
	for _, res := range results {
		if !res.OK() || res.Kind != model.ContentText {
			continue
		}

		base, err := url.Parse(res.URL)
		if err != nil {
			continue
		}

		for _, link := range o.extractor.ExtractLinks(res) {
			ref, err := url.Parse(strings.TrimSpace(link))
			if err != nil {
				continue
			}
			resolved := base.ResolveReference(ref).String()
			if o.frontier.Enqueue(resolved, nextDepth) {
				o.logger.Debug("link enqueued",
					"url", resolved,
					"depth", nextDepth,
					"source", res.URL,
				)
			}
		}
	}
}
