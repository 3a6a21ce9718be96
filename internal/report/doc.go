// Package report writes the crawl summary a consumer computes after the
// page stream closes.
//
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter: one JSON object for tool integration
//   - MarkdownWriter: GitHub flavored Markdown with a pie chart of content kinds
//
// Writers implement the Writer interface and can be combined with MultiWriter.
package report
