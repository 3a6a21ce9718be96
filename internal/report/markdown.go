package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecrawl/internal/model"
)

// MarkdownWriter outputs summaries in GitHub flavored Markdown, built with
// nao1215/markdown: tables, an alert for the stop reason and a mermaid pie
// chart of content kinds.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeAlert(md, summary)
	w.writeKinds(md, summary)
	w.writeHosts(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("Crawl Summary")
	md.PlainText("")

	rows := [][]string{
		{"Start URL", "`" + s.StartURL + "`"},
	}
	if s.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + s.RunID + "`"})
	}
	if s.Transport != "" {
		rows = append(rows, []string{"Transport", s.Transport})
	}
	rows = append(rows,
		[]string{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
		[]string{"Stop Reason", s.Reason.String()},
		[]string{"Pages", strconv.Itoa(s.Pages)},
		[]string{"Distinct Content", strconv.Itoa(s.DistinctContent)},
		[]string{"Links", strconv.Itoa(s.Links)},
		[]string{"Failed", strconv.Itoa(s.Failed)},
		[]string{"Skipped (robots.txt)", strconv.Itoa(s.Skipped)},
		[]string{"Session Reconnects", strconv.Itoa(s.Reconnects)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeAlert explains how the crawl ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.Summary) {
	switch s.Reason {
	case model.StopEmitFailed:
		md.Caution("The output stream failed; the page stream is incomplete.")
	case model.StopIdleTimeout:
		md.Warning("No page was produced within the idle timeout; the crawl was stopped.")
	case model.StopTotalTimeout:
		md.Warning("The total timeout was reached; the crawl may be incomplete.")
	case model.StopCancelled:
		md.Important("The crawl was cancelled before the frontier drained.")
	case model.StopNoLinks:
		md.Note("The start page produced no URLs to follow.")
	default:
		md.Tip("The frontier drained; every reachable in-scope URL was visited.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeKinds(md *markdown.Markdown, s *model.Summary) {
	md.H2("Content Kinds")
	md.PlainText("")

	kinds := s.SortedKinds()
	if len(kinds) == 0 {
		md.PlainText("No pages were produced.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by Content Kind"),
		piechart.WithShowData(true),
	)
	rows := make([][]string, 0, len(kinds))
	for _, k := range kinds {
		chart.LabelAndIntValue(k.Name, uint64(k.Count)) //nolint:gosec // counts are non-negative
		rows = append(rows, []string{k.Name, strconv.Itoa(k.Count)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, s *model.Summary) {
	hosts := s.SortedHosts()
	if len(hosts) == 0 {
		return
	}

	md.H2("Hosts")
	md.PlainText("")
	rows := make([][]string, 0, len(hosts))
	for _, h := range hosts {
		rows = append(rows, []string{"`" + truncateString(h.Name, 60) + "`", strconv.Itoa(h.Count)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Summary generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}
