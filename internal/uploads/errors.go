package uploads

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks uploads rejected before any network call.
	ErrValidation = errors.New("invalid upload")
	// ErrNoDocument is returned when the session has no document to show.
	ErrNoDocument = errors.New("no document available")
	// ErrFileNotFound is returned when neither the backend nor the fallback
	// list knows a file.
	ErrFileNotFound = errors.New("file not found")
	// ErrStorage wraps failures of the session cache itself.
	ErrStorage = errors.New("cache storage failure")
)

// ValidationError lists every problem found with an upload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
