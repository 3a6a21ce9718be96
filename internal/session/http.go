package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

const (
	// DefaultUserAgent is sent by the HTTP transport.
	DefaultUserAgent = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024
)

// HTTPTransport fetches pages directly over HTTP. Pages are not rendered,
// so script-built content is invisible to it. The endpoint passed to
// Connect is ignored.
type HTTPTransport struct {
	base        http.RoundTripper
	userAgent   string
	cookie      string
	headers     map[string]string
	maxBodySize int64
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithRoundTripper sets the base round tripper, e.g. a SOCKS5 transport.
func WithRoundTripper(rt http.RoundTripper) HTTPOption {
	return func(t *HTTPTransport) {
		t.base = rt
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(t *HTTPTransport) {
		t.userAgent = ua
	}
}

// WithCookie sets a raw cookie string sent with every request.
func WithCookie(cookie string) HTTPOption {
	return func(t *HTTPTransport) {
		t.cookie = cookie
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(t *HTTPTransport) {
		t.headers = headers
	}
}

// WithMaxBodySize caps the bytes read per response.
func WithMaxBodySize(n int64) HTTPOption {
	return func(t *HTTPTransport) {
		t.maxBodySize = n
	}
}

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		base:        http.DefaultTransport,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Transport.
func (t *HTTPTransport) Name() string { return "http" }

// Connect implements Transport. Each session gets its own cookie jar.
func (t *HTTPTransport) Connect(_ context.Context, _ string) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var rt http.RoundTripper = t.base
	if t.cookie != "" || len(t.headers) > 0 {
		rt = &headerInjectingTransport{base: rt, cookie: t.cookie, headers: t.headers}
	}

	return &httpSession{
		transport: t,
		client: &http.Client{
			Transport: rt,
			Jar:       jar,
			Timeout:   2 * time.Minute,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}, nil
}

type httpSession struct {
	transport *HTTPTransport
	client    *http.Client

	mu     sync.Mutex
	source string
	loaded bool
	closed bool
}

// Navigate implements Session.
func (s *httpSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: %w", ErrNavigate, ErrSessionLost)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNavigate, err)
	}
	req.Header.Set("User-Agent", s.transport.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNavigate, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: HTTP %d", ErrNavigate, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.transport.maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadSource, err)
	}

	body, err := decodeBody(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadSource, err)
	}

	s.mu.Lock()
	s.source = body
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// decodeBody converts raw to UTF-8 using the declared or sniffed charset.
func decodeBody(raw []byte, contentType string) (string, error) {
	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s body: %w", name, err)
	}
	return string(decoded), nil
}

// Source implements Session.
func (s *httpSession) Source(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("%w: %w", ErrReadSource, ErrSessionLost)
	}
	if !s.loaded {
		return "", fmt.Errorf("%w: no page loaded", ErrReadSource)
	}
	return s.source, nil
}

// Close implements Session.
func (s *httpSession) Close(_ context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.source = ""
	s.mu.Unlock()
	s.client.CloseIdleConnections()
	return nil
}

// headerInjectingTransport adds a cookie and fixed headers to every
// request, redirects included.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
