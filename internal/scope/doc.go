// Package scope decides which discovered URLs belong to a crawl and how
// fetched resources are classified for extraction.
//
// # Scope Filter
//
// A Filter is compiled once from Rules before the crawl starts and is then
// shared read-only by every worker. ShouldCrawl applies, in order:
//
//  1. the domain rule (exact host match, no subdomains) when external
//     domains are disallowed
//  2. the path rule (raw string prefix of the escaped path)
//  3. exclude patterns, which reject regardless of includes
//  4. include patterns, of which at least one must match when any are set
//
// Patterns are regular expressions matched against the full URL string.
//
// Normalize strips the fragment and leaves every other byte untouched. The
// normalized form is the dedup key of the frontier.
//
// # Content Classifier
//
// Classify maps a URL to a Kind by its suffix. Only KindHTML is scanned for
// outbound links.
package scope
