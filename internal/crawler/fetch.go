package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/scope"
	"github.com/nao1215/sitecrawl/internal/session"
)

// fetch loads target and turns it into a Page. The whole sequence runs
// under the fetch deadline; the permit is released before extraction.
func (w *worker) fetch(ctx, stopCtx context.Context, target *url.URL) (*model.Page, error) {
	e := w.engine
	key := target.String()

	fetchCtx, cancel := context.WithTimeoutCause(ctx, e.fetchTimeout, ErrFetchTimeout)
	defer cancel()

	if !e.gate.Allow(fetchCtx, target) {
		return nil, ErrDisallowed
	}

	source, err := w.load(fetchCtx, stopCtx, target)
	if err != nil {
		if errors.Is(context.Cause(fetchCtx), ErrFetchTimeout) {
			return nil, fmt.Errorf("%w: %w", ErrFetchTimeout, err)
		}
		return nil, err
	}
	e.fetched.Add(1)

	kind := scope.Classify(key)
	res, err := e.extractor.Extract(source, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s content: %w", kind, err)
	}

	var links []string
	if scope.ShouldExtractLinks(key) {
		links = make([]string, 0, len(res.Links))
		for _, href := range res.Links {
			if abs, ok := scope.Resolve(target, href); ok {
				links = append(links, abs)
			}
		}
	}

	return model.NewPage(key, res.Title, res.Text, links, kind.String()), nil
}

// load waits for the host's turn and a permit, then navigates and reads the source. A lost
// session is replaced once and the URL retried once.
func (w *worker) load(fetchCtx, stopCtx context.Context, target *url.URL) (string, error) {
	e := w.engine

	if err := e.gate.Wait(fetchCtx, target); err != nil {
		return "", fmt.Errorf("waiting for host rate limit: %w", err)
	}

	acquireCtx, cancelAcquire := context.WithCancel(fetchCtx)
	defer cancelAcquire()
	stopAcquire := context.AfterFunc(stopCtx, cancelAcquire)
	defer stopAcquire()

	if err := e.throttle.Acquire(acquireCtx, 1); err != nil {
		return "", fmt.Errorf("waiting for fetch permit: %w", err)
	}
	defer e.throttle.Release(1)

	leave := e.enterFetch()
	defer leave()

	sess, err := e.sessions.Ensure(fetchCtx, w.session)
	if err != nil {
		return "", err
	}
	w.session = sess

	key := target.String()
	source, err := navigateAndRead(fetchCtx, sess, key)
	if err == nil || !session.IsSessionLost(err) {
		return source, err
	}

	w.logger.Info("session lost, reconnecting", "url", key, "error", err)
	e.metrics.Reconnected()
	sess, err = e.sessions.Reconnect(fetchCtx, w.session)
	w.session = sess
	if err != nil {
		return "", fmt.Errorf("failed to reconnect: %w", err)
	}

	source, err = navigateAndRead(fetchCtx, sess, key)
	if err != nil {
		return "", fmt.Errorf("retry after reconnect: %w", err)
	}
	return source, nil
}

func navigateAndRead(ctx context.Context, s session.Session, target string) (string, error) {
	if err := s.Navigate(ctx, target); err != nil {
		return "", err
	}
	return s.Source(ctx)
}
