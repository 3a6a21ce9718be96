package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeWebDriver is a minimal W3C WebDriver server.
type fakeWebDriver struct {
	mu       sync.Mutex
	sessions map[string]string
	next     int
	legacy   bool
}

func newFakeWebDriver(t *testing.T, legacy bool) (*fakeWebDriver, *httptest.Server) {
	t.Helper()
	f := &fakeWebDriver{sessions: map[string]string{}, legacy: legacy}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeWebDriver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	if len(parts) == 1 && parts[0] == "session" && r.Method == http.MethodPost {
		f.next++
		id := "s" + string(rune('0'+f.next))
		f.sessions[id] = ""
		if f.legacy {
			_ = json.NewEncoder(w).Encode(map[string]any{"sessionId": id, "status": 0, "value": map[string]any{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"value": map[string]any{"sessionId": id}})
		return
	}

	if len(parts) < 2 {
		http.NotFound(w, r)
		return
	}
	id := parts[1]
	cur, ok := f.sessions[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"value": map[string]string{
			"error":   "invalid session id",
			"message": "Unable to find session with ID " + id,
		}})
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodDelete:
		delete(f.sessions, id)
		_ = json.NewEncoder(w).Encode(map[string]any{"value": nil})
	case len(parts) == 3 && parts[2] == "url" && r.Method == http.MethodPost:
		var body struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if strings.Contains(body.URL, "broken") {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"value": map[string]string{
				"error":   "unknown error",
				"message": "net::ERR_NAME_NOT_RESOLVED",
			}})
			return
		}
		f.sessions[id] = body.URL
		_ = json.NewEncoder(w).Encode(map[string]any{"value": nil})
	case len(parts) == 3 && parts[2] == "source" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"value": "<html><body>" + cur + "</body></html>"})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeWebDriver) drop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
}

func TestWebDriverTransport(t *testing.T) {
	t.Parallel()

	t.Run("navigate and read source", func(t *testing.T) {
		t.Parallel()

		_, srv := newFakeWebDriver(t, false)
		tr := NewWebDriverTransport()
		s, err := tr.Connect(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		if err := s.Navigate(context.Background(), "https://example.com/"); err != nil {
			t.Fatalf("Navigate() error = %v", err)
		}
		src, err := s.Source(context.Background())
		if err != nil {
			t.Fatalf("Source() error = %v", err)
		}
		if !strings.Contains(src, "https://example.com/") {
			t.Errorf("Source() = %q", src)
		}
		if err := s.Close(context.Background()); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	t.Run("legacy session id", func(t *testing.T) {
		t.Parallel()

		_, srv := newFakeWebDriver(t, true)
		s, err := NewWebDriverTransport().Connect(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if s.(*webDriverSession).id == "" {
			t.Error("expected a session id")
		}
	})

	t.Run("unknown session maps to ErrSessionLost", func(t *testing.T) {
		t.Parallel()

		f, srv := newFakeWebDriver(t, false)
		s, err := NewWebDriverTransport().Connect(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		f.drop(s.(*webDriverSession).id)

		err = s.Navigate(context.Background(), "https://example.com/")
		if !errors.Is(err, ErrSessionLost) || !errors.Is(err, ErrNavigate) {
			t.Errorf("Navigate() error = %v, expected ErrNavigate and ErrSessionLost", err)
		}
		_, err = s.Source(context.Background())
		if !errors.Is(err, ErrSessionLost) || !errors.Is(err, ErrReadSource) {
			t.Errorf("Source() error = %v, expected ErrReadSource and ErrSessionLost", err)
		}
	})

	t.Run("navigation error is not session loss", func(t *testing.T) {
		t.Parallel()

		_, srv := newFakeWebDriver(t, false)
		s, err := NewWebDriverTransport().Connect(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		err = s.Navigate(context.Background(), "https://broken.example/")
		if !errors.Is(err, ErrNavigate) {
			t.Errorf("expected ErrNavigate, got %v", err)
		}
		if IsSessionLost(err) {
			t.Errorf("did not expect session loss: %v", err)
		}
	})

	t.Run("connect fails on unreachable endpoint", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		if _, err := NewWebDriverTransport().Connect(context.Background(), url); err == nil {
			t.Error("expected error")
		}
	})
}
