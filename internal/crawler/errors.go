package crawler

import "errors"

var (
	// ErrEmit is returned by a worker that could not hand a page to the
	// consumer. It ends that worker.
	ErrEmit = errors.New("failed to emit page")

	// ErrFetchTimeout is the cause recorded when a fetch exceeds its
	// deadline.
	ErrFetchTimeout = errors.New("fetch deadline exceeded")

	// ErrDisallowed is returned for URLs rejected by the politeness gate.
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrAlreadyStarted is returned when Generate is called twice.
	ErrAlreadyStarted = errors.New("engine already started")
)
