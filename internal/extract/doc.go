// Package extract turns fetched page sources into text and outbound links.
//
// HTML documents are parsed with goquery: the text of <body> is collected
// node by node and whitespace-joined, links are the href values of <a>
// elements. An optional readable mode keeps only the main content using
// go-trafilatura.
//
// Plain-text resources go through the paragraph-aware text parser
// controlled by Options. They never yield links.
package extract
