package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/frontier"
	"github.com/nao1215/sitecrawl/internal/metrics"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/politeness"
	"github.com/nao1215/sitecrawl/internal/scope"
	"github.com/nao1215/sitecrawl/internal/session"
)

// Engine crawls one seed. It is single use: Generate may be called once.
type Engine struct {
	seed             string
	maxConcurrency   int
	workers          int
	idleTimeout      time.Duration
	totalTimeout     time.Duration
	fetchTimeout     time.Duration
	dequeueTimeout   time.Duration
	gracePeriod      time.Duration
	frontierCapacity int
	rules            *scope.Rules
	allowExternal    bool
	extractor        extract.Extractor
	transport        session.Transport
	primary          string
	fallbacks        []string
	gate             *politeness.Gate
	metrics          *metrics.Metrics
	logger           *slog.Logger

	filter   *scope.Filter
	frontier *frontier.Frontier
	throttle *semaphore.Weighted
	sessions *session.Manager

	started   atomic.Bool
	firstDone atomic.Bool
	emitted   chan struct{}
	done      chan struct{}

	fetched     atomic.Int64
	emits       atomic.Int64
	failed      atomic.Int64
	skipped     atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	reasonMu  sync.Mutex
	reason    model.StopReason
	reasonSet bool
}

// Stats is a snapshot of engine counters.
type Stats struct {
	// Fetched is the number of URLs whose source was read.
	Fetched int64
	// Emitted is the number of pages handed to the consumer.
	Emitted int64
	// Failed is the number of URLs abandoned after an error.
	Failed int64
	// Skipped is the number of dequeued URLs not fetched (already
	// claimed or disallowed).
	Skipped int64
	// Enqueued is the number of URLs admitted to the frontier.
	Enqueued int64
	// Visited is the size of the visited set.
	Visited int
	// Connects is the number of sessions opened.
	Connects int64
	// Reconnects is the number of lost sessions replaced.
	Reconnects int64
	// MaxInFlight is the highest number of concurrent fetches observed.
	MaxInFlight int64
}

// New creates an Engine for seed. Invalid seeds and scope patterns are
// reported here, before any work starts.
func New(seed string, opts ...Option) (*Engine, error) {
	seedURL, err := scope.ParseSeed(seed)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		maxConcurrency: DefaultMaxConcurrency,
		idleTimeout:    DefaultIdleTimeout,
		totalTimeout:   DefaultTotalTimeout,
		fetchTimeout:   DefaultFetchTimeout,
		dequeueTimeout: DefaultDequeueTimeout,
		gracePeriod:    DefaultGracePeriod,
		emitted:        make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.maxConcurrency <= 0 {
		e.maxConcurrency = DefaultMaxConcurrency
	}
	if e.workers <= 0 {
		e.workers = e.maxConcurrency
	}
	if e.fetchTimeout <= 0 {
		e.fetchTimeout = DefaultFetchTimeout
	}
	if e.dequeueTimeout <= 0 {
		e.dequeueTimeout = DefaultDequeueTimeout
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.extractor == nil {
		e.extractor = extract.New(extract.CrawlOptions())
	}
	if e.transport == nil {
		e.transport = session.NewWebDriverTransport()
	}

	if e.rules == nil {
		rules, err := scope.RulesForSeed(seed, e.allowExternal)
		if err != nil {
			return nil, err
		}
		e.rules = &rules
	}
	filter, err := scope.New(*e.rules)
	if err != nil {
		return nil, err
	}

	managerOpts := []session.ManagerOption{session.WithManagerLogger(e.logger)}
	if e.fallbacks != nil {
		managerOpts = append(managerOpts, session.WithFallbacks(e.fallbacks))
	}

	e.seed = scope.Normalize(seedURL.String())
	e.filter = filter
	e.frontier = frontier.New(e.frontierCapacity, frontier.NewVisited())
	e.throttle = semaphore.NewWeighted(int64(e.maxConcurrency))
	e.sessions = session.NewManager(e.transport, e.primary, managerOpts...)
	return e, nil
}

// Seed returns the normalized start URL.
func (e *Engine) Seed() string {
	return e.seed
}

// TransportName names the session transport in use.
func (e *Engine) TransportName() string {
	return e.transport.Name()
}

// Filter returns the compiled scope filter.
func (e *Engine) Filter() *scope.Filter {
	return e.filter
}

// Generate starts the crawl and returns the page stream. The stream is
// closed once every worker has finished. Cancelling ctx aborts the crawl;
// a cancel cause wrapping ErrEmit records StopEmitFailed.
//
// The caller must drain the stream or cancel ctx. Once the crawl has
// stopped on its own, a page not read within the fetch timeout is dropped
// so the stream still closes.
func (e *Engine) Generate(ctx context.Context) (<-chan *model.Page, error) {
	if !e.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	if _, err := e.frontier.Enqueue(ctx, e.seed); err != nil {
		close(e.done)
		return nil, fmt.Errorf("failed to seed frontier: %w", err)
	}
	e.metrics.URLEnqueued()

	out := make(chan *model.Page, e.workers)
	stopCtx, stop := context.WithCancel(ctx)
	completions := make(chan int, e.workers)

	e.logger.Info("crawl started",
		"seed", e.seed,
		"workers", e.workers,
		"max_concurrency", e.maxConcurrency,
		"transport", e.transport.Name(),
	)

	for id := range e.workers {
		w := newWorker(e, id)
		go w.run(ctx, stopCtx, out, completions)
	}
	go e.coordinate(ctx, stop, out, completions)

	return out, nil
}

// coordinate supervises the timeouts and closes out after the last
// worker completes.
func (e *Engine) coordinate(ctx context.Context, stop context.CancelFunc, out chan<- *model.Page, completions <-chan int) {
	defer close(e.done)
	defer stop()

	idle := newTimer(e.idleTimeout)
	total := newTimer(e.totalTimeout)
	grace := newTimer(e.gracePeriod)
	defer idle.stop()
	defer total.stop()
	defer grace.stop()

	ctxDone := ctx.Done()
	for remaining := e.workers; remaining > 0; {
		select {
		case id := <-completions:
			remaining--
			e.logger.Debug("worker completed", "worker", id, "remaining", remaining)
		case <-e.emitted:
			idle.reset(e.idleTimeout)
		case <-idle.c():
			idle.disarm()
			e.halt(stop, model.StopIdleTimeout)
		case <-total.c():
			total.disarm()
			e.halt(stop, model.StopTotalTimeout)
		case <-grace.c():
			grace.disarm()
			e.watchdog(stop)
		case <-ctxDone:
			ctxDone = nil
			e.halt(stop, cancelReason(ctx))
		}
	}

	e.setReason(model.StopDrained)
	close(out)

	s := e.Stats()
	e.logger.Info("crawl finished",
		"seed", e.seed,
		"reason", e.StopReason().String(),
		"emitted", s.Emitted,
		"failed", s.Failed,
		"visited", s.Visited,
	)
}

// watchdog ends the crawl when nothing is pending once the grace period
// has passed, which is the case when the seed yielded no crawlable links
// or could not be fetched.
func (e *Engine) watchdog(stop context.CancelFunc) {
	if e.frontier.Pending() > 0 {
		e.logger.Debug("watchdog: crawl in progress", "pending", e.frontier.Pending())
		return
	}
	if e.frontier.Enqueued() <= 1 {
		e.logger.Info("no links found from seed, stopping", "seed", e.seed, "first_page", e.firstDone.Load())
		e.halt(stop, model.StopNoLinks)
		return
	}
	e.halt(stop, model.StopDrained)
}

// cancelReason tells a consumer whose output broke, signalled by
// cancelling with an ErrEmit cause, from a plain cancellation.
func cancelReason(ctx context.Context) model.StopReason {
	if errors.Is(context.Cause(ctx), ErrEmit) {
		return model.StopEmitFailed
	}
	return model.StopCancelled
}

func (e *Engine) halt(stop context.CancelFunc, reason model.StopReason) {
	if e.setReason(reason) {
		e.logger.Info("stopping crawl", "reason", reason.String())
	}
	stop()
}

// setReason records reason unless one was recorded before.
func (e *Engine) setReason(reason model.StopReason) bool {
	e.reasonMu.Lock()
	defer e.reasonMu.Unlock()
	if e.reasonSet {
		return false
	}
	e.reason = reason
	e.reasonSet = true
	return true
}

// StopReason returns why the crawl ended. It is meaningful once the page
// stream is closed.
func (e *Engine) StopReason() model.StopReason {
	e.reasonMu.Lock()
	defer e.reasonMu.Unlock()
	return e.reason
}

// Done is closed after the page stream is closed.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Fetched:     e.fetched.Load(),
		Emitted:     e.emits.Load(),
		Failed:      e.failed.Load(),
		Skipped:     e.skipped.Load(),
		Enqueued:    e.frontier.Enqueued(),
		Visited:     e.frontier.Visited().Len(),
		Connects:    e.sessions.Connects(),
		Reconnects:  e.sessions.Reconnects(),
		MaxInFlight: e.maxInFlight.Load(),
	}
}

// noteEmitted wakes the idle timer without blocking.
func (e *Engine) noteEmitted() {
	e.emits.Add(1)
	e.metrics.PageEmitted()
	select {
	case e.emitted <- struct{}{}:
	default:
	}
}

// enterFetch records one more fetch in flight and returns the func that
// records its end.
func (e *Engine) enterFetch() func() {
	n := e.inFlight.Add(1)
	for {
		cur := e.maxInFlight.Load()
		if n <= cur || e.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	started := time.Now()
	observe := e.metrics.FetchStarted()
	return func() {
		e.inFlight.Add(-1)
		observe(time.Since(started).Seconds())
	}
}

// timer is a one-shot timer that may be disabled.
type timer struct {
	t *time.Timer
}

func newTimer(d time.Duration) *timer {
	if d <= 0 {
		return &timer{}
	}
	return &timer{t: time.NewTimer(d)}
}

// c returns the timer channel, or nil for a disabled timer so that a
// select never picks it.
func (t *timer) c() <-chan time.Time {
	if t.t == nil {
		return nil
	}
	return t.t.C
}

func (t *timer) reset(d time.Duration) {
	if t.t != nil {
		t.t.Reset(d)
	}
}

func (t *timer) disarm() {
	t.stop()
	t.t = nil
}

func (t *timer) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
