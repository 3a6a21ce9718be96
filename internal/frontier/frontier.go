package frontier

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the number of pending URLs the frontier absorbs
// before Enqueue blocks.
const DefaultCapacity = 10000

// Frontier is a bounded, dedup-gated queue of pending URLs.
type Frontier struct {
	items    chan string
	visited  *Visited
	enqueued atomic.Int64
	pending  atomic.Int64
}

// New creates a Frontier with the given capacity, gated by visited.
// A non-positive capacity uses DefaultCapacity.
func New(capacity int, visited *Visited) *Frontier {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if visited == nil {
		visited = NewVisited()
	}
	return &Frontier{
		items:   make(chan string, capacity),
		visited: visited,
	}
}

// Visited returns the set gating the frontier.
func (f *Frontier) Visited() *Visited {
	return f.visited
}

// Enqueue adds key unless it was seen before. A duplicate is not an
// error: ok is false and err is nil. When the queue is full Enqueue
// blocks until space frees up or ctx is done.
func (f *Frontier) Enqueue(ctx context.Context, key string) (bool, error) {
	if !f.visited.Add(key) {
		return false, nil
	}

	f.pending.Add(1)
	select {
	case f.items <- key:
		f.enqueued.Add(1)
		return true, nil
	case <-ctx.Done():
		f.pending.Add(-1)
		return false, ctx.Err()
	}
}

// Done marks one dequeued URL as fully processed, including the
// enqueueing of everything discovered on it.
func (f *Frontier) Done() {
	f.pending.Add(-1)
}

// Pending returns the number of URLs queued or dequeued but not yet Done.
// Zero means no worker can produce further work.
func (f *Frontier) Pending() int64 {
	return f.pending.Load()
}

// Dequeue waits up to timeout for the next URL. ok is false when the
// timeout elapses or ctx is done first.
func (f *Frontier) Dequeue(ctx context.Context, timeout time.Duration) (string, bool) {
	select {
	case key := <-f.items:
		return key, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case key := <-f.items:
		return key, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

// Len returns the number of URLs waiting in the queue.
func (f *Frontier) Len() int {
	return len(f.items)
}

// Enqueued returns the total number of URLs accepted so far.
func (f *Frontier) Enqueued() int64 {
	return f.enqueued.Load()
}
