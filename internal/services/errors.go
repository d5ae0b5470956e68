package services

import (
	"errors"
	"fmt"
)

// Deterministic content errors. Retrying these repeats the same failure, so
// the orchestrator fails the entity on first occurrence.
var (
	// ErrUnsupportedFormat is returned for file extensions the extractor
	// does not recognize at all.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrLegacyDocFormat is returned for legacy .doc files: recognized, but
	// deliberately rejected.
	ErrLegacyDocFormat = errors.New("legacy .doc format is not supported, please convert to .docx or .pdf")

	// ErrEmptyExtraction signals a document with no extractable text,
	// typically a scanned-image PDF.
	ErrEmptyExtraction = errors.New("no text could be extracted from this document, the file may be a scanned image")

	// ErrMalformedResponse signals an inference response that was reachable
	// but did not match the required schema.
	ErrMalformedResponse = errors.New("malformed inference response")

	// ErrQuotaExceeded is the synchronous admission rejection. It never
	// reaches a candidate record.
	ErrQuotaExceeded = errors.New("monthly candidate quota exceeded")
)

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as retryable: a network or timeout failure against
// an external dependency that may succeed on a later attempt.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transientf is Transient over a formatted, wrapped error.
func Transientf(format string, args ...interface{}) error {
	return Transient(fmt.Errorf(format, args...))
}

// IsRetryable reports whether err carries a transient marker anywhere in its
// chain. Everything else is treated as deterministic.
func IsRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
