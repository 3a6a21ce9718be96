package scope

import "strings"

// Kind is the content classification of a fetched resource.
type Kind int

const (
	// KindHTML is a renderable document scanned for links.
	KindHTML Kind = iota

	// KindText is a plain-text or data file. Never scanned for links.
	KindText

	// KindPDF is a PDF document.
	KindPDF

	// KindOther is a static asset such as an image or stylesheet.
	KindOther
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindText:
		return "text"
	case KindPDF:
		return "pdf"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

var otherSuffixes = []string{".jpg", ".jpeg", ".png", ".gif", ".css", ".js"}

// Classify maps a URL to its content Kind. Rules are checked in order and
// the first match wins; anything unmatched is HTML.
func Classify(rawURL string) Kind {
	switch {
	case strings.HasSuffix(rawURL, ".txt"):
		return KindText
	case strings.HasSuffix(rawURL, ".yaml"), strings.HasSuffix(rawURL, ".yml"):
		return KindText
	case strings.HasSuffix(rawURL, ".pdf"):
		return KindPDF
	case strings.Contains(rawURL, "/_sources/"):
		return KindText
	}
	for _, suffix := range otherSuffixes {
		if strings.HasSuffix(rawURL, suffix) {
			return KindOther
		}
	}
	return KindHTML
}

// ShouldExtractLinks reports whether the body of rawURL is scanned for links.
func ShouldExtractLinks(rawURL string) bool {
	return Classify(rawURL) == KindHTML
}
