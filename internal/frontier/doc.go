// Package frontier holds the shared work queue of a crawl.
//
// The Frontier is a bounded channel gated by a Visited set: a URL enters
// the channel only if this call inserted it into the set, and the
// check-and-insert happens under one lock, so every normalized URL is
// queued at most once for the lifetime of a crawl. The set only grows.
//
// Enqueue blocks while the channel is full. Dequeue waits at most a
// caller-supplied timeout and reports "nothing seen recently", never
// "nothing will ever arrive".
//
// Pending counts URLs that were admitted but not yet marked Done by the
// worker that processed them. Workers consult it before giving up.
package frontier
