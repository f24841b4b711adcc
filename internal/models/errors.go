package models

import "errors"

// Domain error classes. Store and service operations wrap these with %w so
// callers can classify failures with errors.Is without string matching.
var (
	// ErrValidation marks malformed input: non-numeric or negative price,
	// unknown status value, invalid user reference. The operation aborts
	// with no partial write.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a reference to an id that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks an underlying persistence I/O failure. The core does
	// not retry; retry policy belongs to the caller.
	ErrStorage = errors.New("storage error")
)
