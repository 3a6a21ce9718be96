package scope

import "errors"

var (
	// ErrInvalidPattern is returned when an include or exclude pattern is not
	// a valid regular expression.
	ErrInvalidPattern = errors.New("invalid URL pattern")

	// ErrInvalidSeed is returned when the start URL cannot be parsed or is not
	// an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid start URL: must be an absolute http or https URL")
)
