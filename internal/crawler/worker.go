package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/sitecrawl/internal/metrics"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/scope"
	"github.com/nao1215/sitecrawl/internal/session"
)

// worker owns one session and processes frontier URLs one at a time.
type worker struct {
	id      int
	engine  *Engine
	logger  *slog.Logger
	timeout time.Duration
	session session.Session
}

func newWorker(e *Engine, id int) *worker {
	return &worker{
		id:      id,
		engine:  e,
		logger:  e.logger.With("worker", id),
		timeout: dequeueTimeout(e.dequeueTimeout, id),
	}
}

// run is the worker's lifetime. The session is closed and completion is
// reported however the loop ends.
func (w *worker) run(ctx, stopCtx context.Context, out chan<- *model.Page, completions chan<- int) {
	w.engine.metrics.WorkerStarted()
	defer func() {
		w.closeSession(ctx)
		w.engine.metrics.WorkerStopped()
		completions <- w.id
	}()

	if err := w.loop(ctx, stopCtx, out); err != nil {
		w.logger.Warn("worker terminated", "error", err)
	}
}

func (w *worker) loop(ctx, stopCtx context.Context, out chan<- *model.Page) error {
	f := w.engine.frontier
	for {
		if stopCtx.Err() != nil {
			return nil
		}

		key, ok := f.Dequeue(stopCtx, w.timeout)
		if !ok {
			if stopCtx.Err() != nil {
				return nil
			}
			if f.Pending() > 0 {
				continue
			}
			w.logger.Debug("no work received, finishing", "timeout", w.timeout)
			return nil
		}

		err := w.process(ctx, stopCtx, key, out)
		f.Done()
		if err != nil {
			return err
		}
	}
}

// process runs the fetch pipeline for key. Only emission failures are
// returned; every other error abandons the URL.
func (w *worker) process(ctx, stopCtx context.Context, key string, out chan<- *model.Page) error {
	e := w.engine
	if !e.frontier.Visited().Claim(key) {
		e.skipped.Add(1)
		w.logger.Debug("skipping already visited URL", "url", key)
		return nil
	}

	target, err := url.Parse(key)
	if err != nil {
		e.failed.Add(1)
		w.logger.Warn("skipping unparsable URL", "url", key, "error", err)
		return nil
	}

	page, err := w.fetch(ctx, stopCtx, target)
	if err != nil {
		w.recordFailure(key, err)
		return nil
	}

	if err := w.emit(ctx, stopCtx, out, page); err != nil {
		if ctx.Err() != nil {
			e.setReason(cancelReason(ctx))
		}
		return err
	}

	w.enqueueLinks(stopCtx, page)

	if e.firstDone.CompareAndSwap(false, true) {
		w.logger.Debug("first page processed", "url", key, "links", len(page.Links))
	}
	return nil
}

func (w *worker) recordFailure(key string, err error) {
	e := w.engine
	if errors.Is(err, ErrDisallowed) {
		e.skipped.Add(1)
		e.metrics.FetchFailed(metrics.ReasonRobots)
		w.logger.Debug("skipping URL disallowed by robots.txt", "url", key)
		return
	}

	e.failed.Add(1)
	e.metrics.FetchFailed(failureReason(err))
	w.logger.Warn("failed to fetch page", "url", key, "error", err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrFetchTimeout):
		return metrics.ReasonTimeout
	case errors.Is(err, session.ErrNoEndpoint), session.IsSessionLost(err):
		return metrics.ReasonSession
	case errors.Is(err, session.ErrNavigate):
		return metrics.ReasonNavigate
	case errors.Is(err, session.ErrReadSource):
		return metrics.ReasonSource
	default:
		return metrics.ReasonExtract
	}
}

// emit hands page to the consumer. The send blocks under backpressure and
// fails when the caller's context ends. After the crawl has stopped the
// wait is bounded by the fetch timeout.
func (w *worker) emit(ctx, stopCtx context.Context, out chan<- *model.Page, page *model.Page) error {
	select {
	case out <- page:
		w.engine.noteEmitted()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrEmit, context.Cause(ctx))
	case <-stopCtx.Done():
	}

	timer := time.NewTimer(w.engine.fetchTimeout)
	defer timer.Stop()
	select {
	case out <- page:
		w.engine.noteEmitted()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrEmit, context.Cause(ctx))
	case <-timer.C:
		return fmt.Errorf("%w: consumer stopped reading", ErrEmit)
	}
}

// enqueueLinks admits in-scope links discovered on page. A full frontier
// blocks until space frees up or the crawl stops.
func (w *worker) enqueueLinks(stopCtx context.Context, page *model.Page) {
	e := w.engine
	for _, link := range page.Links {
		if !e.filter.ShouldCrawl(link) {
			w.logger.Debug("link out of scope", "url", link)
			continue
		}

		key := scope.Normalize(link)
		ok, err := e.frontier.Enqueue(stopCtx, key)
		if err != nil {
			w.logger.Debug("crawl stopping, dropping discovered links", "from", page.URL)
			return
		}
		if ok {
			e.metrics.URLEnqueued()
			w.logger.Debug("queued link", "url", key)
		}
	}
}

func (w *worker) closeSession(ctx context.Context) {
	if w.session == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
	defer cancel()
	w.engine.sessions.Close(closeCtx, w.session)
	w.session = nil
}
