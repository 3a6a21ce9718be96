package extract

import "strings"

// Text normalizes plain text according to opts.
//
// Lines are trimmed, blank lines delimit paragraphs, and empty paragraphs
// are dropped. Lines of a paragraph are joined by "\n" or " " and
// paragraphs by "\n\n" or " " depending on opts.
func Text(text string, opts Options) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	paragraphs := splitParagraphs(text)

	lineSep := " "
	if opts.PreserveLineBreaks {
		lineSep = "\n"
	}
	joined := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		joined = append(joined, strings.Join(p, lineSep))
	}

	paraSep := " "
	if opts.PreserveParagraphs {
		paraSep = "\n\n"
	}
	return normalizeWhitespace(strings.Join(joined, paraSep), opts)
}

// splitParagraphs returns the trimmed, non-empty lines of text grouped by
// blank-line boundaries.
func splitParagraphs(text string) [][]string {
	var (
		paragraphs [][]string
		current    []string
	)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, current)
				current = nil
			}
			continue
		}
		current = append(current, trimmed)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, current)
	}
	return paragraphs
}

func normalizeWhitespace(text string, opts Options) string {
	if !opts.NormalizeWhitespace {
		return text
	}

	switch {
	case !opts.PreserveParagraphs && !opts.PreserveLineBreaks:
		return collapse(text)
	case opts.PreserveParagraphs && !opts.PreserveLineBreaks:
		paragraphs := strings.Split(text, "\n\n")
		for i, p := range paragraphs {
			paragraphs[i] = collapse(p)
		}
		return strings.Join(paragraphs, "\n\n")
	default:
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			if strings.TrimSpace(line) != "" {
				lines[i] = collapse(line)
			}
		}
		return strings.Join(lines, "\n")
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
