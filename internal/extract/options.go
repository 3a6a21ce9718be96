package extract

// Options controls text normalization.
type Options struct {
	// PreserveParagraphs separates paragraphs with a blank line instead of
	// a single space. Runs of blank lines always collapse to one.
	PreserveParagraphs bool `yaml:"preserve_paragraphs" json:"preserve_paragraphs"`

	// PreserveLineBreaks keeps single newlines inside a paragraph.
	PreserveLineBreaks bool `yaml:"preserve_line_breaks" json:"preserve_line_breaks"`

	// NormalizeWhitespace collapses runs of spaces and tabs.
	NormalizeWhitespace bool `yaml:"normalize_whitespace" json:"normalize_whitespace"`

	// DetectURLs keeps URL-like tokens intact. Normalization only ever
	// splits on whitespace, so URLs survive every mode unchanged.
	DetectURLs bool `yaml:"detect_urls" json:"detect_urls"`

	// MainContent extracts only the readable main content of HTML pages
	// instead of the whole body.
	MainContent bool `yaml:"main_content" json:"main_content"`
}

// DefaultOptions returns the parser defaults: flat text, normalized
// whitespace.
func DefaultOptions() Options {
	return Options{
		PreserveParagraphs:  false,
		PreserveLineBreaks:  false,
		NormalizeWhitespace: true,
		DetectURLs:          true,
	}
}

// CrawlOptions returns the options the crawler uses for text resources:
// paragraphs kept, line breaks folded.
func CrawlOptions() Options {
	o := DefaultOptions()
	o.PreserveParagraphs = true
	return o
}
