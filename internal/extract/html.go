package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// skippedElements never contribute to page text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// HTML extracts the title, whitespace-joined body text and raw <a href>
// values of an HTML document.
func HTML(content string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return Result{
		Title: title(doc),
		Text:  bodyText(doc),
		Links: anchors(doc),
	}, nil
}

// Readable extracts only the main content of an HTML document. Title and
// links come from the full document; when no main content is detected the
// whole body text is used.
func Readable(content string) (Result, error) {
	res, err := HTML(content)
	if err != nil {
		return Result{}, err
	}

	extracted, err := trafilatura.Extract(strings.NewReader(content), trafilatura.Options{})
	if err != nil || extracted == nil {
		return res, nil //nolint:nilerr // fall back to full body text
	}
	if text := collapse(extracted.ContentText); text != "" {
		res.Text = text
	}
	if res.Title == "" {
		res.Title = strings.TrimSpace(extracted.Metadata.Title)
	}
	return res, nil
}

func title(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// bodyText joins every text node under <body> with a space and collapses
// whitespace, so adjacent block elements never run together.
func bodyText(doc *goquery.Document) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}
	return collapse(strings.Join(parts, " "))
}

func anchors(doc *goquery.Document) []string {
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, href)
		}
	})
	return links
}

// wrappedText returns the visible text of a browser-wrapped plain-text
// resource (<html><body><pre>...</pre></body></html>) with its line
// structure intact. ok is false when content is not an HTML wrapper.
func wrappedText(content string) (string, bool) {
	head := strings.ToLower(strings.TrimSpace(content))
	if !strings.HasPrefix(head, "<html") && !strings.HasPrefix(head, "<!doctype html") {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", false
	}
	return doc.Find("body").Text(), true
}
