package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the error classes the ingestion core reports to callers.
// The API layer maps kinds to transport codes; inside the core they drive
// retry/abort decisions (see Retryable and BatchFatal).
type Kind string

const (
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindIsolationViolation    Kind = "isolation_violation"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindCorruption            Kind = "corruption"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Msg: msg, Err: cause}
}

func IsolationViolation(format string, args ...any) *Error {
	return &Error{Kind: KindIsolationViolation, Msg: fmt.Sprintf(format, args...)}
}

func DependencyUnavailable(msg string, cause error) *Error {
	return &Error{Kind: KindDependencyUnavailable, Msg: msg, Err: cause}
}

// Corruption marks internal index state that contradicts itself, e.g. a
// dedup record pointing at a document that no longer exists. Like isolation
// violations it aborts the batch.
func Corruption(format string, args ...any) *Error {
	return &Error{Kind: KindCorruption, Msg: fmt.Sprintf(format, args...)}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool         { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool           { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool           { return KindOf(err) == KindConflict }
func IsIsolationViolation(err error) bool { return KindOf(err) == KindIsolationViolation }
func IsDependencyUnavailable(err error) bool {
	return KindOf(err) == KindDependencyUnavailable
}
func IsCorruption(err error) bool { return KindOf(err) == KindCorruption }

// Retryable reports whether the failure is worth retrying with backoff.
// Conflicts are retryable because the expected dedup race resolves on
// re-check; dependency outages are retryable by definition.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindDependencyUnavailable:
		return true
	}
	return false
}

// BatchFatal reports whether the failure must abort sibling documents in the
// same production batch. Isolation violations and index corruption indicate
// the core invariant is broken; continuing could leak data across cases.
func BatchFatal(err error) bool {
	switch KindOf(err) {
	case KindIsolationViolation, KindCorruption:
		return true
	}
	return false
}
