package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
)

// SecureHandler wraps an slog.Handler and masks secrets before they reach
// it. Attributes named like a secret are masked outright. Other string,
// error and *url.URL values keep their shape: URL credentials and secret
// query parameters are replaced, so crawl URLs and endpoints stay readable.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a SecureHandler wrapping handler.
// A nil handler wraps slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the wrapped handler handles records at level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle redacts the message and attributes of r and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	msg, _ := redactString(r.Message)
	out := slog.NewRecord(r.Time, r.Level, msg, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

// WithAttrs redacts attrs once, when they are bound to the logger.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(redacted)}
}

// WithGroup returns a SecureHandler for the named group.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if isSecretName(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	var s string
	switch a.Value.Kind() {
	case slog.KindString:
		s = a.Value.String()
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			s = v.Error()
		case *url.URL:
			if v == nil {
				return a
			}
			s = v.String()
		default:
			return a
		}
	default:
		return a
	}

	if r, changed := redactString(s); changed {
		return slog.String(a.Key, r)
	}
	return a
}

// NewSecureLogger creates a text logger that masks secrets.
// verbose selects Debug level; otherwise Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output, for log aggregation.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
