package crawler

import (
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/metrics"
	"github.com/nao1215/sitecrawl/internal/politeness"
	"github.com/nao1215/sitecrawl/internal/scope"
	"github.com/nao1215/sitecrawl/internal/session"
)

// Engine defaults.
const (
	DefaultMaxConcurrency = 4
	DefaultIdleTimeout    = 300 * time.Second
	DefaultTotalTimeout   = 1200 * time.Second
	DefaultFetchTimeout   = 45 * time.Second
	DefaultDequeueTimeout = 5 * time.Second
	DefaultGracePeriod    = 5 * time.Second

	// sessionCloseTimeout bounds closing a session when a worker exits.
	sessionCloseTimeout = 10 * time.Second
)

// Option configures an Engine.
type Option func(*Engine)

// WithMaxConcurrency sets the number of fetch permits. Unless WithWorkers
// is given it is also the number of workers.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		e.maxConcurrency = n
	}
}

// WithWorkers sets the number of workers independently of the permit
// count, so workers waiting for a URL overlap with workers holding one.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithIdleTimeout stops the crawl when no page has been emitted for d.
// Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.idleTimeout = d
	}
}

// WithTotalTimeout caps the crawl's wall-clock time. Zero disables it.
func WithTotalTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.totalTimeout = d
	}
}

// WithFetchTimeout sets the deadline covering one URL from permit
// acquisition to the source read.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.fetchTimeout = d
	}
}

// WithDequeueTimeout sets the dequeue wait of the first worker. Later
// workers wait progressively less.
func WithDequeueTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.dequeueTimeout = d
	}
}

// WithGracePeriod sets when the watchdog checks for a finished crawl.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) {
		e.gracePeriod = d
	}
}

// WithFrontierCapacity sets how many URLs may wait in the frontier.
func WithFrontierCapacity(n int) Option {
	return func(e *Engine) {
		e.frontierCapacity = n
	}
}

// WithScope replaces the rules derived from the seed.
func WithScope(rules scope.Rules) Option {
	return func(e *Engine) {
		e.rules = &rules
	}
}

// WithAllowExternal lifts the domain and path restriction derived from
// the seed. It has no effect together with WithScope.
func WithAllowExternal(allow bool) Option {
	return func(e *Engine) {
		e.allowExternal = allow
	}
}

// WithExtractor replaces the content extractor.
func WithExtractor(x extract.Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithExtractOptions configures the default extractor.
func WithExtractOptions(opts extract.Options) Option {
	return func(e *Engine) {
		e.extractor = extract.New(opts)
	}
}

// WithTransport sets how sessions are opened.
func WithTransport(t session.Transport) Option {
	return func(e *Engine) {
		e.transport = t
	}
}

// WithEndpoints sets the primary rendering endpoint and the fallbacks
// tried after it. A nil fallbacks slice keeps the defaults.
func WithEndpoints(primary string, fallbacks []string) Option {
	return func(e *Engine) {
		e.primary = primary
		e.fallbacks = fallbacks
	}
}

// WithGate enables robots.txt checks and per-host pacing.
func WithGate(g *politeness.Gate) Option {
	return func(e *Engine) {
		e.gate = g
	}
}

// WithMetrics records engine activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// dequeueTimeout returns the dequeue wait for worker id: the full base
// for the first worker, then one fifth less per index down to one fifth.
func dequeueTimeout(base time.Duration, id int) time.Duration {
	step := base / 5
	return base - time.Duration(min(id, 4))*step
}
