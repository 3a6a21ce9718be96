// Package crawler is the crawl orchestration engine.
//
// An Engine seeds a shared frontier with the start URL and runs a pool of
// workers over it. Each worker loops: dequeue a URL, fetch it through its
// own lazily opened session while holding one fetch permit, extract text
// and links, emit a *model.Page, and enqueue the in-scope links it found.
//
// # Termination
//
// Work is produced by the same workers that consume it, so an empty
// frontier does not mean the crawl is over. A worker gives up when its
// dequeue times out and the frontier reports no pending work. Dequeue
// timeouts shrink with the worker index so the pool winds down in a
// staggered tail. A watchdog checks the frontier once after a grace
// period so a seed without links ends the crawl early.
//
// Idle and total timeouts, and cancellation of the caller's context,
// stop the pool cooperatively: fetches already in flight finish or hit
// their own deadline. The output channel is closed exactly once, after
// every worker has reported completion.
//
// # Usage
//
//	engine, err := crawler.New("https://example.com/docs/",
//		crawler.WithMaxConcurrency(4),
//		crawler.WithTransport(session.NewWebDriverTransport()),
//	)
//	if err != nil {
//		return err
//	}
//	pages, err := engine.Generate(ctx)
//	if err != nil {
//		return err
//	}
//	for page := range pages {
//		// consume
//	}
package crawler
