package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidPrompt     = errors.New("invalid prompt")
)

// ErrorKind classifies a collaborator failure for the retry decision.
type ErrorKind string

const (
	// KindTransient marks network/timeout failures worth re-attempting.
	KindTransient ErrorKind = "transient"
	// KindFatal marks failures that permanently fail the job: malformed
	// input, an explicit external failure, or a protocol violation.
	KindFatal ErrorKind = "fatal"
)

// Error is a classified collaborator failure. Op names the failing stage
// (submission, external generation, download, storage, timeout, internal)
// and ends up verbatim in the job's error message.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure of the named stage.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Fatal wraps err as a permanent failure of the named stage.
func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// IsTransient reports whether err is classified retryable. Unclassified
// errors are not transient; callers must classify at the boundary.
func IsTransient(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindTransient
}

// IsFatal reports whether err is classified as permanently failing the job.
func IsFatal(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindFatal
}

func invalidTransition(from, to JobStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
