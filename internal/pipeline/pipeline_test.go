package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/session"
)

// fakeSource emits a fixed list of pages until the consumer cancels, then
// closes the stream like the engine does.
type fakeSource struct {
	pages  []*model.Page
	reason model.StopReason
	ctx    context.Context
}

func (f *fakeSource) Seed() string          { return "https://example.com/" }
func (f *fakeSource) TransportName() string { return "fake" }
func (f *fakeSource) Stats() crawler.Stats {
	return crawler.Stats{Failed: 2, Skipped: 1, Reconnects: 1}
}

func (f *fakeSource) StopReason() model.StopReason {
	if f.ctx != nil && f.ctx.Err() != nil {
		if errors.Is(context.Cause(f.ctx), crawler.ErrEmit) {
			return model.StopEmitFailed
		}
		return model.StopCancelled
	}
	return f.reason
}

func (f *fakeSource) Generate(ctx context.Context) (<-chan *model.Page, error) {
	f.ctx = ctx
	out := make(chan *model.Page)
	go func() {
		defer close(out)
		for _, p := range f.pages {
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type recordingStep struct {
	name   string
	failAt int
	mu     sync.Mutex
	seen   []string
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Do(_ context.Context, page *model.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, page.URL)
	if s.failAt > 0 && len(s.seen) == s.failAt {
		return errors.New("disk full")
	}
	return nil
}

func pages(n int) []*model.Page {
	out := make([]*model.Page, n)
	for i := range out {
		out[i] = model.NewPage("https://example.com/p"+string(rune('a'+i)), "", "content "+string(rune('a'+i)), nil, "html")
	}
	return out
}

func TestPipeline_StepsRunInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	p := New()
	p.AddSteps(
		stepFunc("first", func() { order = append(order, "first") }),
		stepFunc("second", func() { order = append(order, "second") }),
	)

	if p.StepCount() != 2 {
		t.Errorf("StepCount() = %d", p.StepCount())
	}
	if got := strings.Join(p.StepNames(), ","); got != "first,second" {
		t.Errorf("StepNames() = %s", got)
	}
	if err := p.Execute(context.Background(), pages(1)[0]); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Join(order, ",") != "first,second" {
		t.Errorf("order = %v", order)
	}
}

type funcStep struct {
	name string
	fn   func()
}

func (s funcStep) Name() string { return s.name }
func (s funcStep) Do(context.Context, *model.Page) error {
	s.fn()
	return nil
}

func stepFunc(name string, fn func()) Step { return funcStep{name: name, fn: fn} }

func TestPipeline_Run(t *testing.T) {
	t.Parallel()

	t.Run("summary counts every page and takes engine counters", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{pages: pages(4), reason: model.StopDrained}
		step := &recordingStep{name: "record"}
		p := New()
		p.AddStep(step)

		summary, err := p.Run(context.Background(), src)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if summary.Pages != 4 || len(step.seen) != 4 {
			t.Errorf("pages = %d, seen = %d", summary.Pages, len(step.seen))
		}
		if summary.Reason != model.StopDrained || summary.Transport != "fake" {
			t.Errorf("reason = %v, transport = %q", summary.Reason, summary.Transport)
		}
		if summary.Failed != 2 || summary.Skipped != 1 || summary.Reconnects != 1 {
			t.Errorf("counters = %d %d %d", summary.Failed, summary.Skipped, summary.Reconnects)
		}
		if summary.FinishedAt.Before(summary.StartedAt) {
			t.Error("FinishedAt before StartedAt")
		}
	})

	t.Run("step failure cancels the crawl and is returned", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{pages: pages(10), reason: model.StopDrained}
		step := &recordingStep{name: "record", failAt: 2}
		p := New()
		p.AddStep(step)

		summary, err := p.Run(context.Background(), src)
		var stepErr *StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "record" {
			t.Fatalf("expected StepError from record, got %v", err)
		}
		if summary.Pages != 2 {
			t.Errorf("summary should stop at the failing page, got %d", summary.Pages)
		}
		if summary.Reason != model.StopEmitFailed {
			t.Errorf("reason = %v, want emit-failed", summary.Reason)
		}
		if !errors.Is(context.Cause(src.ctx), crawler.ErrEmit) {
			t.Errorf("cancel cause = %v, want ErrEmit", context.Cause(src.ctx))
		}
	})

	t.Run("step failure over a live engine reports emit-failed", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprintf(w, `<html><body><a href="%s1">next</a><a href="%s2">next</a></body></html>`,
				r.URL.Path, r.URL.Path)
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		engine, err := crawler.New(srv.URL+"/",
			crawler.WithTransport(session.NewHTTPTransport()),
			crawler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			crawler.WithDequeueTimeout(100*time.Millisecond),
			crawler.WithGracePeriod(time.Minute),
			crawler.WithIdleTimeout(0),
			crawler.WithTotalTimeout(0),
		)
		if err != nil {
			t.Fatalf("crawler.New() error = %v", err)
		}

		p := New()
		p.AddStep(&recordingStep{name: "write", failAt: 1})
		summary, err := p.Run(context.Background(), engine)
		if err == nil {
			t.Fatal("expected the step error")
		}
		if summary.Reason != model.StopEmitFailed {
			t.Errorf("reason = %v, want emit-failed", summary.Reason)
		}
	})

	t.Run("continue on error keeps consuming", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{pages: pages(5), reason: model.StopDrained}
		step := &recordingStep{name: "record", failAt: 2}
		p := New(WithContinueOnError(true))
		p.AddStep(step)

		summary, err := p.Run(context.Background(), src)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if summary.Pages != 5 {
			t.Errorf("pages = %d", summary.Pages)
		}
	})
}

func TestJSONLWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes one object per line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONLWriter(&buf)
		for _, p := range pages(3) {
			if err := w.Do(context.Background(), p); err != nil {
				t.Fatal(err)
			}
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 || w.Lines() != 3 {
			t.Fatalf("expected 3 lines, got %d (%d)", len(lines), w.Lines())
		}
		var page model.Page
		if err := json.Unmarshal([]byte(lines[0]), &page); err != nil {
			t.Fatalf("invalid line: %v", err)
		}
		if page.URL != "https://example.com/pa" || page.Links == nil {
			t.Errorf("decoded %+v", page)
		}
	})

	t.Run("html is not escaped", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONLWriter(&buf)
		p := model.NewPage("https://example.com/?a=1&b=2", "", "<b>", nil, "html")
		if err := w.Do(context.Background(), p); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "a=1&b=2") || !strings.Contains(buf.String(), "<b>") {
			t.Errorf("unexpected escaping: %s", buf.String())
		}
	})

	t.Run("concurrent writers never interleave", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONLWriter(&buf)
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for _, p := range pages(20) {
					_ = w.Do(context.Background(), p)
				}
			}()
		}
		wg.Wait()

		for i, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if !json.Valid([]byte(line)) {
				t.Fatalf("line %d is not valid JSON: %q", i, line)
			}
		}
		if w.Lines() != 160 {
			t.Errorf("Lines() = %d", w.Lines())
		}
	})

	t.Run("closed writer rejects pages", func(t *testing.T) {
		t.Parallel()

		w := NewJSONLWriter(&bytes.Buffer{})
		w.Close()
		if err := w.Do(context.Background(), pages(1)[0]); !errors.Is(err, ErrOutputClosed) {
			t.Errorf("expected ErrOutputClosed, got %v", err)
		}
	})
}

func TestLogStep(t *testing.T) {
	t.Parallel()

	step := NewLogStep(nil)
	if step.Name() != "log" {
		t.Errorf("Name() = %q", step.Name())
	}
	if err := step.Do(context.Background(), pages(1)[0]); err != nil {
		t.Errorf("Do() error = %v", err)
	}
}
