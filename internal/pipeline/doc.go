// Package pipeline is the consumer side of a crawl.
//
// A Pipeline reads the page stream produced by a crawler.Engine until the
// engine closes it, runs each page through its Steps (JSON Lines output,
// logging) and accumulates a model.Summary. Run ties the two together and
// fills the summary with the engine's stop reason and counters once the
// stream is closed.
//
// BatchCrawler crawls several seeds with bounded concurrency using errgroup.
// Every seed gets its own engine; steps such as JSONLWriter can be shared
// between them.
package pipeline
