package calendar

import "errors"

// Validation errors. Both are fatal: a retrieval fails before any request is made.
var (
	// ErrInvalidRange is returned when date_from is after date_to or a date cannot be parsed.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrInvalidConfig is returned for out-of-range retrieval settings (e.g. days_per_chunk < 1).
	ErrInvalidConfig = errors.New("invalid retrieval config")
)
