package music

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can decide between retrying,
// reporting, or aborting. The orchestrator's retry policy keys off this.
type ErrorKind int

const (
	// KindValidation marks bad input shape or an invariant violation. Never retried.
	KindValidation ErrorKind = iota
	// KindNotFound marks a missing album, track, or object.
	KindNotFound
	// KindTransient marks network or timeout failures against the object
	// store or database. Retryable with backoff.
	KindTransient
	// KindProcess marks a non-zero exit from an external encoder process.
	KindProcess
	// KindConsistency marks a write that would break a cross-document
	// invariant, such as orphaning a track. Never swallowed.
	KindConsistency
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindProcess:
		return "process"
	case KindConsistency:
		return "consistency"
	}
	return "unknown"
}

// Error is the domain error type. It wraps an underlying cause and carries
// the kind used for retry and reporting decisions.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a domain error. The message form takes a format string.
func E(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a domain error from a format string.
func Errorf(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or KindTransient if err is not a domain
// error. Unknown failures from infra clients are treated as retryable once
// rather than surfaced as validation noise.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// IsNotFound reports whether err marks a missing record or object.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsValidation reports whether err marks invalid input.
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return IsKind(err, KindTransient) }
