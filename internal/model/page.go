package model

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Page is the immutable output unit of a crawl. One Page is produced for
// every successfully fetched URL and handed over to the output stream;
// nothing mutates it after emission.
type Page struct {
	// URL is the normalized (fragment-free) URL that was fetched.
	URL string `json:"url"`

	// Title is the document title for HTML pages.
	// Empty when the resource has no title or is not HTML.
	Title string `json:"title,omitempty"`

	// Content is the extracted text.
	Content string `json:"content"`

	// Links contains the absolute http(s) URLs discovered on the page,
	// in document order. Text-like resources never carry links.
	Links []string `json:"links"`

	// Kind is the content classification that selected the extractor
	// ("html", "text", "pdf" or "other").
	Kind string `json:"kind"`
}

// NewPage creates a Page. A nil links slice is replaced by an empty one so
// the JSON form always carries an array.
func NewPage(url, title, content string, links []string, kind string) *Page {
	if links == nil {
		links = []string{}
	}
	return &Page{
		URL:     url,
		Title:   title,
		Content: content,
		Links:   links,
		Kind:    kind,
	}
}

// Digest returns the hex encoded SHA3-256 of the extracted content.
// Pages served under different URLs with identical text share a digest.
func (p *Page) Digest() string {
	sum := sha3.Sum256([]byte(p.Content))
	return hex.EncodeToString(sum[:])
}
