// Package model defines the data structures shared by the crawl engine,
// its consumers and the report writers.
//
// This package contains the following main types:
//   - Page: one crawled page as delivered on the output stream
//   - Summary: statistics a consumer computes after the stream closes
//   - StopReason: why a crawl run ended
//
// The models are serializable to JSON for the page stream, the summary
// report and the run history database.
package model
