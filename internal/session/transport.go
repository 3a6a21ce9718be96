package session

import "context"

// Session is a handle to one remote rendering connection.
type Session interface {
	// Navigate loads url in the session.
	Navigate(ctx context.Context, url string) error

	// Source returns the current page source.
	Source(ctx context.Context) (string, error)

	// Close releases the remote session.
	Close(ctx context.Context) error
}

// Transport opens sessions against an endpoint.
type Transport interface {
	// Connect opens a new session at endpoint.
	Connect(ctx context.Context, endpoint string) (Session, error)

	// Name identifies the transport in logs.
	Name() string
}
