// Package apperrors defines the error taxonomy shared by every component.
//
// Each error carries a machine-readable Code; every Code belongs to one Kind.
// Callers branch on kinds with errors.Is against the Err* sentinels and on
// codes with errors.Is against a New(code, "") value.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the coarse class of a failure
type Kind string

const (
	KindInvalidInput Kind = "invalid_input" // Malformed payload, rejected before any state change
	KindNotFound     Kind = "not_found"     // Unknown claim, reviewer, case or fact
	KindUnauthorized Kind = "unauthorized"  // Wrong phase, wrong rank, wrong assignment
	KindConflict     Kind = "conflict"      // Duplicate registration, non-monotonic version, double vote
	KindUnavailable  Kind = "unavailable"   // No eligible reviewer yet; retried in the background
	KindInternal     Kind = "internal"
)

// Sentinels for errors.Is checks by kind.
var (
	ErrInvalidInput = &Error{kind: KindInvalidInput, Message: "invalid input"}
	ErrNotFound     = &Error{kind: KindNotFound, Message: "not found"}
	ErrUnauthorized = &Error{kind: KindUnauthorized, Message: "unauthorized"}
	ErrConflict     = &Error{kind: KindConflict, Message: "conflict"}
	ErrUnavailable  = &Error{kind: KindUnavailable, Message: "unavailable"}
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Identifiers involved in the failure
	Cause    error             // Wrapped underlying error

	kind Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Kind returns the class of the error.
func (e *Error) Kind() Kind {
	if e.kind != "" {
		return e.kind
	}
	return e.Code.Kind()
}

// Is matches by code when the target has one, by kind otherwise.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Kind() == t.Kind()
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates a domain error carrying the identifiers involved.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// KindOf returns the kind of the first domain error in err's chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInternal
}

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
