package extract

import (
	"github.com/nao1215/sitecrawl/internal/scope"
)

// Result is the outcome of extracting one page.
type Result struct {
	// Title is the document title, empty for non-HTML resources.
	Title string

	// Text is the extracted text.
	Text string

	// Links are raw href values in document order, unresolved.
	Links []string
}

// Extractor turns a page source of a given kind into text and links.
type Extractor interface {
	Extract(content string, kind scope.Kind) (Result, error)
}

// Default is the Extractor used by the crawler.
type Default struct {
	opts Options
}

// New returns a Default extractor using opts for text resources.
func New(opts Options) *Default {
	return &Default{opts: opts}
}

// Extract dispatches on kind. Only HTML yields links; PDF sources carry
// no extractable text.
func (d *Default) Extract(content string, kind scope.Kind) (Result, error) {
	switch kind {
	case scope.KindHTML:
		if d.opts.MainContent {
			return Readable(content)
		}
		return HTML(content)
	case scope.KindPDF:
		return Result{}, nil
	default:
		if inner, ok := wrappedText(content); ok {
			content = inner
		}
		return Result{Text: Text(content, d.opts)}, nil
	}
}
