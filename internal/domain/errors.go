package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies invocation faults.
type ErrorKind string

const (
	KindMissingParameter       ErrorKind = "missing_required_parameter"
	KindInvalidParameter       ErrorKind = "invalid_parameter"
	KindUnsupportedMethod      ErrorKind = "unsupported_method"
	KindUnsupportedContentType ErrorKind = "unsupported_content_type"
	KindSerialization          ErrorKind = "serialization_error"
	KindTransport              ErrorKind = "transport_error"
	KindReflection             ErrorKind = "reflection_error"
	KindCredential             ErrorKind = "credential_error"
)

// Error is the single fault type surfaced to the work item host.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and the failing operation.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
