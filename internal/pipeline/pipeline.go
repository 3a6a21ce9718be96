package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
)

// Step processes one page record taken from the output stream.
// Steps run in the order they were added, on the consumer goroutine.
type Step interface {
	// Do handles a page. Returning an error marks the output unusable.
	Do(ctx context.Context, page *model.Page) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs a fixed list of steps for every page of a crawl.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps consuming after a step fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to log step failures and
// keep going. By default the first failure stops consumption, since a
// broken output file makes the rest of the stream worthless.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

// Execute runs every step on one page.
func (p *Pipeline) Execute(ctx context.Context, page *model.Page) error {
	for _, step := range p.steps {
		if err := step.Do(ctx, page); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", page.URL,
				"error", err,
			)
			if !p.continueOnError {
				return &StepError{Step: step.Name(), Err: err}
			}
		}
	}
	return nil
}

// Consume executes the steps for every page until the stream is closed.
// It stops early with the first step error unless continueOnError is set.
func (p *Pipeline) Consume(ctx context.Context, pages <-chan *model.Page) error {
	for page := range pages {
		if err := p.Execute(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// Source is the producer side of a crawl. *crawler.Engine implements it.
type Source interface {
	Seed() string
	TransportName() string
	Generate(ctx context.Context) (<-chan *model.Page, error)
	StopReason() model.StopReason
	Stats() crawler.Stats
}

// Run drives one crawl: it starts src, feeds every page through the
// summary and the steps, and returns once the stream is closed. When a
// step fails the crawl is cancelled with an ErrEmit cause and the rest of
// the stream is drained unprocessed; the step error is returned with the
// partial summary.
func (p *Pipeline) Run(ctx context.Context, src Source) (*model.Summary, error) {
	crawlCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	summary := model.NewSummary(src.Seed(), time.Now())
	summary.Transport = src.TransportName()

	pages, err := src.Generate(crawlCtx)
	if err != nil {
		return nil, err
	}

	var stepErr error
	for page := range pages {
		if stepErr != nil {
			continue
		}
		summary.Add(page)
		if err := p.Execute(crawlCtx, page); err != nil {
			stepErr = err
			cancel(fmt.Errorf("%w: %w", crawler.ErrEmit, err))
		}
	}

	summary.Finish(time.Now(), src.StopReason())
	stats := src.Stats()
	summary.Failed = int(stats.Failed)
	summary.Skipped = int(stats.Skipped)
	summary.Reconnects = int(stats.Reconnects)

	p.logger.Info("crawl finished",
		"seed", summary.StartURL,
		"pages", summary.Pages,
		"reason", summary.Reason.String(),
		"elapsed", summary.Elapsed,
	)
	return summary, stepErr
}
