package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/nao1215/sitecrawl/internal/model"
)

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return "step " + e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ErrOutputClosed is returned by JSONLWriter after Close.
var ErrOutputClosed = errors.New("output closed")

// JSONLWriter writes each page as one JSON object per line.
// A single JSONLWriter may be shared by concurrent crawls; lines never
// interleave.
type JSONLWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	lines  int
	closed bool
}

// NewJSONLWriter creates a JSONLWriter on w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

// Name returns the step name.
func (j *JSONLWriter) Name() string {
	return "jsonl"
}

// Do writes page as one line.
func (j *JSONLWriter) Do(_ context.Context, page *model.Page) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrOutputClosed
	}
	if err := j.enc.Encode(page); err != nil {
		return err
	}
	j.lines++
	return nil
}

// Lines returns how many pages were written.
func (j *JSONLWriter) Lines() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lines
}

// Close rejects further writes. It does not close the underlying writer.
func (j *JSONLWriter) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
}

// LogStep logs every page at debug level.
type LogStep struct {
	logger *slog.Logger
}

// NewLogStep creates a LogStep. A nil logger uses slog.Default().
func NewLogStep(logger *slog.Logger) *LogStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogStep{logger: logger}
}

// Name returns the step name.
func (s *LogStep) Name() string {
	return "log"
}

// Do logs the page.
func (s *LogStep) Do(_ context.Context, page *model.Page) error {
	s.logger.Debug("page received",
		"url", page.URL,
		"kind", page.Kind,
		"title", page.Title,
		"links", len(page.Links),
		"bytes", len(page.Content),
	)
	return nil
}
