package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vfs19/edlscan/internal/analyze"
	"github.com/vfs19/edlscan/internal/model"
)

// BatchAnalyzer handles concurrent analysis of multiple boot images.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: Analysis is pure file work, so unlike device probes
// it parallelizes safely. We use a separate BatchAnalyzer rather than
// adding batch functionality to analyze.Analyzer because it keeps the
// analyzer focused on single-image work.
type BatchAnalyzer struct {
	// analyzerFactory creates a new analyzer for each image.
	// We use a factory so each image gets a fresh instance.
	analyzerFactory func() *analyze.Analyzer

	// concurrency is the maximum number of concurrent analyses.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed analysis reports.
	// Access is synchronized via mutex.
	results []*model.AnalysisReport
	mu      sync.Mutex
}

// BatchOption configures a BatchAnalyzer.
type BatchOption func(*BatchAnalyzer)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchAnalyzer) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent analyses.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchAnalyzer) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchAnalyzer creates a new BatchAnalyzer.
//
// The analyzerFactory function is called for each image to create a
// fresh analyzer. This keeps per-image state from leaking between
// analyses and allows per-image customization if needed.
func NewBatchAnalyzer(analyzerFactory func() *analyze.Analyzer, opts ...BatchOption) *BatchAnalyzer {
	ba := &BatchAnalyzer{
		analyzerFactory: analyzerFactory,
		concurrency:     4,
		results:         make([]*model.AnalysisReport, 0),
	}

	for _, opt := range opts {
		opt(ba)
	}

	if ba.logger == nil {
		ba.logger = slog.Default()
	}

	return ba
}

// AnalyzeBatch analyzes multiple boot images concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each image gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// Results keep the input order. An image that fails to analyze leaves a
// nil slot in the result slice; the error return reports cancellation
// or the first analysis failure.
func (ba *BatchAnalyzer) AnalyzeBatch(ctx context.Context, paths []string) ([]*model.AnalysisReport, error) {
	ba.logger.Info("starting batch analysis",
		"total_images", len(paths),
		"concurrency", ba.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain order
	ba.results = make([]*model.AnalysisReport, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ba.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			ba.logger.Info("analyzing image",
				"image", path,
				"index", i+1,
				"total", len(paths),
			)

			analyzer := ba.analyzerFactory()
			report, err := analyzer.AnalyzeFile(path)
			if err != nil {
				ba.logger.Warn("analysis failed",
					"image", path,
					"error", err,
				)
				return err
			}

			ba.mu.Lock()
			ba.results[i] = report
			ba.mu.Unlock()

			return nil
		})
	}

	err := g.Wait()

	ba.logger.Info("batch analysis complete",
		"total_images", len(paths),
		"elapsed", time.Since(startTime),
	)

	return ba.results, err
}
