package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of seeds crawled at once.
const DefaultBatchConcurrency = 1

// CrawlFunc crawls one seed to completion and returns its summary.
type CrawlFunc func(ctx context.Context, seed string) (*model.Summary, error)

// BatchCrawler crawls several seeds, each with its own engine, with a
// bounded number running at the same time.
type BatchCrawler struct {
	crawl       CrawlFunc
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchCrawler.
type BatchOption func(*BatchCrawler)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchCrawler) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Values below one are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchCrawler) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchCrawler creates a new BatchCrawler around crawl.
func NewBatchCrawler(crawl CrawlFunc, opts ...BatchOption) *BatchCrawler {
	b := &BatchCrawler{
		crawl:       crawl,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Crawl crawls every seed and returns the summaries in seed order. A seed
// that fails leaves a nil entry and does not stop the others; all such
// failures are joined into the returned error.
func (b *BatchCrawler) Crawl(ctx context.Context, seeds []string) ([]*model.Summary, error) {
	results := make([]*model.Summary, len(seeds))
	errs := make([]error, len(seeds))

	err := b.CrawlWithCallback(ctx, seeds, func(summary *model.Summary, index int, err error) {
		// Each index is written by exactly one goroutine.
		results[index] = summary
		errs[index] = err
	})
	if err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

// CrawlWithCallback crawls every seed and calls callback as each one
// finishes. The callback runs on the crawling goroutine and must be safe
// for concurrent use. The returned error is non-nil only when ctx ended
// before every seed was started.
func (b *BatchCrawler) CrawlWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(summary *model.Summary, index int, err error),
) error {
	b.logger.Info("starting batch crawl",
		"seeds", len(seeds),
		"concurrency", b.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, seed := range seeds {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			summary, err := b.crawl(gctx, seed)
			if err != nil {
				b.logger.Warn("crawl failed", "seed", seed, "error", err)
				err = fmt.Errorf("%s: %w", seed, err)
			}
			callback(summary, i, err)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	b.logger.Info("batch crawl complete",
		"seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)
	return err
}
