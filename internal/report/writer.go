package report

import (
	"io"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Writer outputs a crawl summary.
type Writer interface {
	// Write outputs the summary to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(summary *model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It exists because Writer writes summaries, not bytes, so io.MultiWriter
// does not apply.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Format selects a summary writer.
type Format int

const (
	// FormatSimple is the human-readable text summary.
	FormatSimple Format = iota
	// FormatJSON is an indented JSON object.
	FormatJSON
	// FormatMarkdown is GitHub flavored Markdown.
	FormatMarkdown
)

// New returns the Writer for the given format.
func New(format Format, output io.Writer) Writer {
	switch format {
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint())
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	default:
		return NewSimpleWriter(output)
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
