package config

import "errors"

// Configuration errors.
// Callers can match them with errors.Is; Validate returns them unwrapped and
// the file loader wraps them with the offending path or value.
var (
	// ErrNoTarget is returned when no seed URL is given on the command line
	// or in the config file.
	ErrNoTarget = errors.New("no target specified: provide a start URL or set start_url in the config file")

	// ErrInvalidConcurrency is returned when the permit count, worker count
	// or batch size is out of range.
	ErrInvalidConcurrency = errors.New("invalid concurrency: max concurrency and batch size must be positive")

	// ErrInvalidTimeout is returned when a timeout is negative, or when a
	// timeout that cannot be disabled is zero.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidTransport is returned for an unknown transport name.
	ErrInvalidTransport = errors.New("invalid transport: must be webdriver, cdp or http")

	// ErrUnsupportedSource is returned when a config file describes a
	// source other than a web crawl (git, filesystem, s3).
	ErrUnsupportedSource = errors.New("unsupported source type: only web sources can be crawled")

	// ErrConflictingReportFormats is returned when both --json-summary and
	// --markdown-summary are specified.
	ErrConflictingReportFormats = errors.New("conflicting summary formats: --json-summary and --markdown-summary cannot be used together")

	// ErrConflictingProxy is returned when both --tor and --proxy are specified.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --tor and --proxy cannot be used together")

	// ErrInvalidRateLimit is returned when the per-host rate is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConfigNotFound is returned when an explicitly requested config
	// file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
