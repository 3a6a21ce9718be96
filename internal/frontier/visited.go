package frontier

import "sync"

type mark uint8

const (
	markQueued mark = iota + 1
	markClaimed
)

// Visited is the set of normalized URLs already queued or fetched.
// It is safe for concurrent use.
type Visited struct {
	mu   sync.Mutex
	seen map[string]mark
}

// NewVisited creates an empty set.
func NewVisited() *Visited {
	return &Visited{seen: make(map[string]mark)}
}

// Add inserts key and reports whether this call inserted it.
// Exactly one of any number of concurrent Add calls for the same key
// returns true.
func (v *Visited) Add(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.seen[key]; ok {
		return false
	}
	v.seen[key] = markQueued
	return true
}

// Claim marks key as taken by a worker for fetching and reports whether
// this call claimed it. A key that was never added is added and claimed.
func (v *Visited) Claim(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.seen[key] == markClaimed {
		return false
	}
	v.seen[key] = markClaimed
	return true
}

// Contains reports whether key has been added or claimed.
func (v *Visited) Contains(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, ok := v.seen[key]
	return ok
}

// Len returns the number of known URLs.
func (v *Visited) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return len(v.seen)
}
