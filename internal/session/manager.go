package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// DefaultEndpoint is the primary WebDriver endpoint.
const DefaultEndpoint = "http://localhost:4444"

// DefaultFallbackEndpoints are tried in order after the primary fails:
// chromedriver, Appium, Chrome DevTools and Selenium on the loopback address.
var DefaultFallbackEndpoints = []string{
	"http://localhost:9515",
	"http://localhost:4723",
	"http://localhost:9222",
	"http://127.0.0.1:4444",
}

// Manager opens, replaces and closes sessions for workers.
// It is safe for concurrent use; the sessions it returns are not.
type Manager struct {
	transport  Transport
	primary    string
	fallbacks  []string
	logger     *slog.Logger
	connects   atomic.Int64
	reconnects atomic.Int64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFallbacks replaces the fallback endpoint list.
func WithFallbacks(endpoints []string) ManagerOption {
	return func(m *Manager) {
		m.fallbacks = append([]string(nil), endpoints...)
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager that connects through transport, trying
// primary first. An empty primary uses DefaultEndpoint.
func NewManager(transport Transport, primary string, opts ...ManagerOption) *Manager {
	if primary == "" {
		primary = DefaultEndpoint
	}
	m := &Manager{
		transport: transport,
		primary:   primary,
		fallbacks: append([]string(nil), DefaultFallbackEndpoints...),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Endpoints returns the connection order: the primary, then every
// fallback that differs from it.
func (m *Manager) Endpoints() []string {
	out := []string{m.primary}
	for _, ep := range m.fallbacks {
		if ep == m.primary {
			continue
		}
		out = append(out, ep)
	}
	return out
}

// Ensure returns existing when it is non-nil and otherwise opens a new
// session. Exhausting every endpoint returns ErrNoEndpoint; the caller
// skips its current URL and keeps running.
func (m *Manager) Ensure(ctx context.Context, existing Session) (Session, error) {
	if existing != nil {
		return existing, nil
	}
	return m.connect(ctx)
}

// Reconnect closes old and opens a replacement session.
func (m *Manager) Reconnect(ctx context.Context, old Session) (Session, error) {
	m.Close(ctx, old)
	m.reconnects.Add(1)
	return m.connect(ctx)
}

// Close closes s, logging failures. A nil session is ignored.
func (m *Manager) Close(ctx context.Context, s Session) {
	if s == nil {
		return
	}
	if err := s.Close(ctx); err != nil {
		m.logger.Debug("failed to close session", "transport", m.transport.Name(), "error", err)
	}
}

// Connects returns how many sessions were opened successfully.
func (m *Manager) Connects() int64 {
	return m.connects.Load()
}

// Reconnects returns how many times Reconnect was called.
func (m *Manager) Reconnects() int64 {
	return m.reconnects.Load()
}

func (m *Manager) connect(ctx context.Context) (Session, error) {
	var errs []error
	for i, ep := range m.Endpoints() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		s, err := m.transport.Connect(ctx, ep)
		if err == nil {
			m.connects.Add(1)
			if i > 0 {
				m.logger.Info("connected to fallback endpoint", "transport", m.transport.Name(), "endpoint", ep)
			}
			return s, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", ep, err))
		if i == 0 {
			m.logger.Warn("primary endpoint unavailable, trying fallbacks",
				"transport", m.transport.Name(), "endpoint", ep, "error", err)
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrNoEndpoint, errors.Join(errs...))
}
