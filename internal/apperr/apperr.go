// Package apperr holds the error kinds shared by the achievement engine.
// Callers match kinds with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown achievement or id mapping.
	ErrNotFound = errors.New("not found")
	// ErrDataUnavailable marks a failed statistics or persistence read.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrTransaction marks a failed award commit. Retryable.
	ErrTransaction = errors.New("transaction failure")
)

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.err)
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.err}
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// New formats a message and tags it with kind.
func New(kind error, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: fmt.Errorf(format, args...)}
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrValidation) && !errors.Is(err, ErrNotFound)
}
