package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitescout/internal/model"
)

// BatchProcessor scans multiple target sites concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Pipeline because it keeps the Pipeline focused
// on single-scan execution and allows different batch strategies.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each target, so
	// pipeline state never leaks between scans.
	pipelineFactory func(target string) *Pipeline

	// concurrency is the maximum number of concurrent scans.
	concurrency int

	logger *slog.Logger

	results []*model.ScanReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithBatchConcurrency sets the maximum number of concurrent scans.
// Default is 3 if not specified.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
// The factory receives the target URL so per-site configuration can be
// applied when building each pipeline.
func NewBatchProcessor(pipelineFactory func(target string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     3,
		results:         make([]*model.ScanReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans all targets concurrently, respecting the
// configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a hand-built
// worker pool because it handles the concurrency bound correctly with
// less machinery.
//
// Reports are returned for every target, including failed ones; the
// error return indicates cancellation.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.ScanReport, error) {
	bp.logger.Info("starting batch scan",
		"targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	bp.results = make([]*model.ScanReport, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			report := model.NewScanReport(target)
			p := bp.pipelineFactory(target)

			if err := p.Execute(ctx, report); err != nil {
				// Per-target errors are recorded in the report and do
				// not stop the remaining scans.
				bp.logger.Warn("scan failed",
					"target", target,
					"error", err,
				)
			}

			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch scan complete",
		"targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback scans all targets and calls the callback for
// each completed scan, which is useful for streaming output. The
// callback runs on the goroutine that finished the scan and must be
// safe for concurrent use if it touches shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.ScanReport, index int),
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			report := model.NewScanReport(target)
			p := bp.pipelineFactory(target)
			_ = p.Execute(ctx, report) //nolint:errcheck // Error is stored in report

			callback(report, i)
			return nil
		})
	}

	return g.Wait()
}
