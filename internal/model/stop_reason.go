package model

import "fmt"

// StopReason records which termination path ended a crawl run.
type StopReason int

const (
	// StopDrained means every worker timed out waiting for new URLs.
	StopDrained StopReason = iota

	// StopNoLinks means the zero-link watchdog fired because the seed page
	// had not been processed within the grace period.
	StopNoLinks

	// StopIdleTimeout means no page was emitted for the configured idle window.
	StopIdleTimeout

	// StopTotalTimeout means the crawl hit its wall-clock cap.
	StopTotalTimeout

	// StopCancelled means the caller cancelled the crawl context.
	StopCancelled

	// StopEmitFailed means the output stream became unusable.
	StopEmitFailed
)

// String returns the stable name used in logs, reports and the history database.
func (r StopReason) String() string {
	switch r {
	case StopDrained:
		return "drained"
	case StopNoLinks:
		return "no-links"
	case StopIdleTimeout:
		return "idle-timeout"
	case StopTotalTimeout:
		return "total-timeout"
	case StopCancelled:
		return "cancelled"
	case StopEmitFailed:
		return "emit-failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r StopReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *StopReason) UnmarshalText(text []byte) error {
	parsed, ok := ParseStopReason(string(text))
	if !ok {
		return fmt.Errorf("unknown stop reason %q", text)
	}
	*r = parsed
	return nil
}

// ParseStopReason converts a name produced by String back into a StopReason.
// Unknown names map to StopDrained and ok is false.
func ParseStopReason(s string) (StopReason, bool) {
	for r := StopDrained; r <= StopEmitFailed; r++ {
		if r.String() == s {
			return r, true
		}
	}
	return StopDrained, false
}
