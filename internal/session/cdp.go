package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/chromedp"
)

// CDPTransport opens tabs on a remote Chrome through the DevTools protocol.
// The endpoint may be an http URL (resolved through /json/version) or a
// ws:// debugger URL.
type CDPTransport struct{}

// NewCDPTransport creates a CDPTransport.
func NewCDPTransport() *CDPTransport {
	return &CDPTransport{}
}

// Name implements Transport.
func (t *CDPTransport) Name() string { return "cdp" }

// Connect implements Transport.
func (t *CDPTransport) Connect(ctx context.Context, endpoint string) (Session, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), endpoint)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run attaches the tab and must not carry a deadline, since
	// cancelling it tears the tab down. Bound it from the outside instead.
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			tabCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to attach to %s: %w", endpoint, err)
		}
	case <-ctx.Done():
		tabCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	return &cdpSession{tabCtx: tabCtx, tabCancel: tabCancel, allocCancel: allocCancel}, nil
}

type cdpSession struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

// run executes actions on the tab bounded by ctx.
func (s *cdpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.tabCtx.Err() != nil {
		return ErrSessionLost
	}
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, dl)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if s.tabCtx.Err() != nil || errors.Is(err, chromedp.ErrInvalidContext) {
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	}
	return err
}

// Navigate implements Session.
func (s *cdpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %w", ErrNavigate, err)
	}
	return nil
}

// Source implements Session.
func (s *cdpSession) Source(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrReadSource, err)
	}
	return html, nil
}

// Close implements Session.
func (s *cdpSession) Close(_ context.Context) error {
	err := chromedp.Cancel(s.tabCtx)
	s.tabCancel()
	s.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
