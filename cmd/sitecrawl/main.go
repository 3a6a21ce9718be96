// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls a website starting from a seed URL, rendering pages in a
// remote browser (WebDriver or Chrome DevTools) or fetching them over plain
// HTTP, and streams the extracted text of every page as JSON Lines.
//
// Usage:
//
//	sitecrawl crawl <url>
//	sitecrawl crawl --transport http --batch 2 <url> <url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
