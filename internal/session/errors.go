package session

import (
	"errors"
	"strings"
)

var (
	// ErrSessionLost is returned when the remote side no longer knows the
	// session or the connection to it is gone. Callers reconnect once and
	// retry.
	ErrSessionLost = errors.New("session lost")

	// ErrNoEndpoint is returned when neither the primary endpoint nor any
	// fallback accepted a new session.
	ErrNoEndpoint = errors.New("no rendering endpoint available")

	// ErrNavigate is returned when the remote side rejects a navigation.
	ErrNavigate = errors.New("navigation failed")

	// ErrReadSource is returned when the page source cannot be read.
	ErrReadSource = errors.New("failed to read page source")
)

// lostSignatures are error messages remote ends use for unknown sessions.
var lostSignatures = []string{
	"Unable to find session",
	"invalid session id",
	"no such session",
}

// IsSessionLost reports whether err means the session must be replaced.
func IsSessionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionLost) {
		return true
	}
	msg := err.Error()
	for _, sig := range lostSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
