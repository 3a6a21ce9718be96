package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// DefaultTopHosts is how many hosts the simple summary lists unless verbose.
const DefaultTopHosts = 10

// SimpleWriter outputs human-readable text summaries for terminal display.
// Plain ASCII is used so the output can be piped to files unchanged.
type SimpleWriter struct {
	baseWriter

	// verbose lists every host instead of the top DefaultTopHosts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables listing every host.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounters(&sb, summary)
	w.writeBreakdown(&sb, "CONTENT KINDS", summary.SortedKinds(), 0)
	limit := DefaultTopHosts
	if w.verbose {
		limit = 0
	}
	w.writeBreakdown(&sb, "HOSTS", summary.SortedHosts(), limit)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         SITECRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Start URL:   %s\n", s.StartURL)
	if s.RunID != "" {
		fmt.Fprintf(sb, "Run ID:      %s\n", s.RunID)
	}
	if s.Transport != "" {
		fmt.Fprintf(sb, "Transport:   %s\n", s.Transport)
	}
	fmt.Fprintf(sb, "Started:     %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:     %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(sb, "Stopped by:  %s\n", s.Reason)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounters(sb *strings.Builder, s *model.Summary) {
	sectionHeader(sb, "COUNTERS")
	fmt.Fprintf(sb, "  PAGES:      %d\n", s.Pages)
	fmt.Fprintf(sb, "  DISTINCT:   %d\n", s.DistinctContent)
	fmt.Fprintf(sb, "  LINKS:      %d\n", s.Links)
	fmt.Fprintf(sb, "  FAILED:     %d\n", s.Failed)
	fmt.Fprintf(sb, "  SKIPPED:    %d\n", s.Skipped)
	fmt.Fprintf(sb, "  RECONNECTS: %d\n", s.Reconnects)
	sb.WriteString("\n")
}

// writeBreakdown writes name/count rows. limit <= 0 writes every row.
func (w *SimpleWriter) writeBreakdown(sb *strings.Builder, title string, counts []model.Count, limit int) {
	if len(counts) == 0 {
		return
	}
	sectionHeader(sb, title)

	shown := counts
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, c := range shown {
		fmt.Fprintf(sb, "  %6d  %s\n", c.Count, truncateString(c.Name, 58))
	}
	if rest := len(counts) - len(shown); rest > 0 {
		fmt.Fprintf(sb, "  ... and %d more\n", rest)
	}
	sb.WriteString("\n")
}

func sectionHeader(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Summary generated by sitecrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
