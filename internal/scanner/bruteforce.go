package scanner

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitescout/internal/crawler"
	"github.com/nao1215/sitescout/internal/model"
)

// BruteForcer probes a target for hidden paths using a wordlist.
// Probes go through the crawler's Fetcher, so they obey the same rate
// limit as regular crawl traffic; most are expected to 404, and only
// 2xx responses are recorded.
type BruteForcer struct {
	fetcher *crawler.Fetcher
	logger  *slog.Logger

	// concurrency caps simultaneous probes.
	concurrency int
}

// BruteForcerOption configures a BruteForcer.
type BruteForcerOption func(*BruteForcer)

// WithProbeConcurrency caps the number of simultaneous probes.
func WithProbeConcurrency(n int) BruteForcerOption {
	return func(b *BruteForcer) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBruteForcer creates a BruteForcer that issues probes through the
// given fetcher. The fetcher is typically constructed with zero retries
// and no robots gate, since probes are expected to miss; see the
// pipeline wiring.
func NewBruteForcer(fetcher *crawler.Fetcher, logger *slog.Logger, opts ...BruteForcerOption) *BruteForcer {
	if logger == nil {
		logger = slog.Default()
	}

	b := &BruteForcer{
		fetcher:     fetcher,
		logger:      logger,
		concurrency: 10,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Run probes baseURL joined with every word and returns the resources
// that answered 2xx, in wordlist order.
func (b *BruteForcer) Run(ctx context.Context, baseURL string, words []string) ([]model.HiddenResource, error) {
	base := strings.TrimRight(baseURL, "/")

	slots := make([]*model.HiddenResource, len(words))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)

	var cancelled error
	for i, word := range words {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
		default:
		}
		if cancelled != nil {
			break
		}

		g.Go(func() error {
			target := base + "/" + strings.TrimLeft(word, "/")
			res := b.fetcher.Fetch(ctx, target, 0)
			if !res.OK() || res.StatusCode < 200 || res.StatusCode > 299 {
				return nil
			}

			b.logger.Debug("hidden path found",
				"url", target,
				"status", res.StatusCode,
			)

			mu.Lock()
			slots[i] = &model.HiddenResource{
				URL:         res.URL,
				StatusCode:  res.StatusCode,
				ContentType: res.ContentType,
				Size:        int64(len(res.Body())),
			}
			mu.Unlock()
			return nil
		})
	}

	// In-flight probes settle before results are read, even when
	// cancellation stopped further dispatch.
	_ = g.Wait() //nolint:errcheck // Workers never return errors
	return collectHits(slots), cancelled
}

// collectHits flattens the probe slots, preserving wordlist order.
func collectHits(slots []*model.HiddenResource) []model.HiddenResource {
	hits := make([]model.HiddenResource, 0)
	for _, hit := range slots {
		if hit != nil {
			hits = append(hits, *hit)
		}
	}
	return hits
}

// ReadWordlist loads a wordlist file: one entry per line, blank lines
// and '#' comments skipped.
func ReadWordlist(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided wordlist path is intentional
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // Read-only file

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
