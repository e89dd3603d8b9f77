// SPDX-License-Identifier: MIT

// Package errs defines the coded error type shared by the session core.
//
// Configuration and usage errors are fatal: they indicate a defect in the
// calling code and are never swallowed by the failure boundary. Everything
// else is an ordinary error value.
package errs

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error classification.
type Code string

const (
	// CodeConfiguration marks conflicting registrations and invalid startup configuration.
	CodeConfiguration Code = "CONFIGURATION"
	// CodeUsage marks lifecycle calls made out of order.
	CodeUsage Code = "USAGE"
	// CodeInvalidMode marks a recognised mode whose arguments failed to parse.
	CodeInvalidMode Code = "INVALID_MODE"
	// CodeModeNotFound marks an unknown mode name.
	CodeModeNotFound Code = "MODE_NOT_FOUND"
	// CodeBehavior marks a listener or handler failure caught by the boundary.
	CodeBehavior Code = "BEHAVIOR_FAILURE"
	// CodeNotFound marks a missing entity such as a player or command.
	CodeNotFound Code = "NOT_FOUND"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
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

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Fatal reports whether the error must never be recovered from.
func (e *Error) Fatal() bool {
	return e.Code == CodeConfiguration || e.Code == CodeUsage
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithMetadata creates a domain error carrying extra context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Usage builds a usage error. Lifecycle methods panic with it.
func Usage(format string, args ...any) *Error {
	return Newf(CodeUsage, format, args...)
}

// Configuration builds a configuration error.
func Configuration(format string, args ...any) *Error {
	return Newf(CodeConfiguration, format, args...)
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsFatal reports whether v (typically a recovered panic value) is a
// configuration or usage error.
func IsFatal(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal()
	}
	return false
}
