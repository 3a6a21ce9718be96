package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultChromeArgs are passed to headless Chrome sessions.
var DefaultChromeArgs = []string{
	"--headless=new",
	"--disable-gpu",
	"--no-sandbox",
	"--disable-dev-shm-usage",
}

// WebDriverTransport opens W3C WebDriver sessions.
type WebDriverTransport struct {
	client       *http.Client
	capabilities map[string]any
}

// WebDriverOption configures a WebDriverTransport.
type WebDriverOption func(*WebDriverTransport)

// WithWebDriverClient sets the HTTP client used for protocol calls.
func WithWebDriverClient(client *http.Client) WebDriverOption {
	return func(t *WebDriverTransport) {
		t.client = client
	}
}

// WithCapabilities replaces the alwaysMatch capabilities sent on connect.
func WithCapabilities(caps map[string]any) WebDriverOption {
	return func(t *WebDriverTransport) {
		t.capabilities = caps
	}
}

// NewWebDriverTransport creates a transport requesting headless Chrome.
func NewWebDriverTransport(opts ...WebDriverOption) *WebDriverTransport {
	t := &WebDriverTransport{
		client: &http.Client{Timeout: 60 * time.Second},
		capabilities: map[string]any{
			"browserName": "chrome",
			"goog:chromeOptions": map[string]any{
				"args": DefaultChromeArgs,
			},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Transport.
func (t *WebDriverTransport) Name() string { return "webdriver" }

// Connect implements Transport.
func (t *WebDriverTransport) Connect(ctx context.Context, endpoint string) (Session, error) {
	base := strings.TrimRight(endpoint, "/")
	payload := map[string]any{
		"capabilities": map[string]any{"alwaysMatch": t.capabilities},
	}

	var resp newSessionResponse
	if err := t.do(ctx, http.MethodPost, base+"/session", payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	id := resp.Value.SessionID
	if id == "" {
		id = resp.SessionID
	}
	if id == "" {
		return nil, errors.New("failed to create session: no session id in response")
	}
	return &webDriverSession{transport: t, base: base, id: id}, nil
}

type newSessionResponse struct {
	// Legacy JSON wire protocol servers put the id at the top level.
	SessionID string `json:"sessionId"`
	Value     struct {
		SessionID string `json:"sessionId"`
	} `json:"value"`
}

// wireError is the W3C error body: {"value": {"error": ..., "message": ...}}.
type wireError struct {
	Value struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"value"`
}

func (t *WebDriverTransport) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var we wireError
		if json.Unmarshal(data, &we) == nil && we.Value.Error != "" {
			return fmt.Errorf("%s: %s", we.Value.Error, we.Value.Message)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type webDriverSession struct {
	transport *WebDriverTransport
	base      string
	id        string
}

func (s *webDriverSession) url(suffix string) string {
	return s.base + "/session/" + s.id + suffix
}

// Navigate implements Session.
func (s *webDriverSession) Navigate(ctx context.Context, target string) error {
	err := s.transport.do(ctx, http.MethodPost, s.url("/url"), map[string]string{"url": target}, nil)
	if err != nil {
		return s.classify(ctx, ErrNavigate, err)
	}
	return nil
}

// Source implements Session.
func (s *webDriverSession) Source(ctx context.Context) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	if err := s.transport.do(ctx, http.MethodGet, s.url("/source"), nil, &resp); err != nil {
		return "", s.classify(ctx, ErrReadSource, err)
	}
	return resp.Value, nil
}

// Close implements Session.
func (s *webDriverSession) Close(ctx context.Context) error {
	return s.transport.do(ctx, http.MethodDelete, s.url(""), nil, nil)
}

// classify wraps err with kind, adding ErrSessionLost when the remote no
// longer knows the session or the connection broke outside ctx.
func (s *webDriverSession) classify(ctx context.Context, kind, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	if IsSessionLost(err) || strings.Contains(err.Error(), "no such window") || isConnectionError(err) {
		return fmt.Errorf("%w: %w: %w", kind, ErrSessionLost, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
