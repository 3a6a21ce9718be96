package extract

import "testing"

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		opts Options
		want string
	}{
		{
			name: "multiple blank lines collapse to one paragraph break",
			in:   "Paragraph 1.\n\n\n\nParagraph 2.",
			opts: CrawlOptions(),
			want: "Paragraph 1.\n\nParagraph 2.",
		},
		{
			name: "default options flatten everything",
			in:   "  Line one\nline two  \n\nSecond   paragraph\n",
			opts: DefaultOptions(),
			want: "Line one line two Second paragraph",
		},
		{
			name: "paragraph mode folds lines and collapses inner spaces",
			in:   "First  line\nsecond\tline\n\nNext",
			opts: CrawlOptions(),
			want: "First line second line\n\nNext",
		},
		{
			name: "line break mode keeps lines",
			in:   "a   b\nc\n\nd",
			opts: Options{PreserveLineBreaks: true, PreserveParagraphs: true, NormalizeWhitespace: true},
			want: "a b\nc\n\nd",
		},
		{
			name: "line breaks without paragraphs join paragraphs with a space",
			in:   "a\nb\n\nc",
			opts: Options{PreserveLineBreaks: true, NormalizeWhitespace: true},
			want: "a\nb c",
		},
		{
			name: "normalization disabled keeps inner whitespace",
			in:   "a    b\n\nc",
			opts: Options{PreserveParagraphs: true},
			want: "a    b\n\nc",
		},
		{
			name: "blank input yields empty text",
			in:   " \n\t\n ",
			opts: CrawlOptions(),
			want: "",
		},
		{
			name: "carriage returns are treated as line ends",
			in:   "one\r\ntwo\r\n\r\nthree",
			opts: CrawlOptions(),
			want: "one two\n\nthree",
		},
		{
			name: "urls survive normalization",
			in:   "see   https://example.com/a?b=c&d=e   now",
			opts: DefaultOptions(),
			want: "see https://example.com/a?b=c&d=e now",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Text(tt.in, tt.opts); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
