// Package errors provides structured errors for the lacpd daemon.
//
// Every error carries a Code identifying the failure and a Category that
// decides how the daemon reacts: fatal errors terminate the process,
// recoverable errors are logged and retried (or dropped) locally, and
// terminal errors tell a caller that a resource will never produce again.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Error is the structured error type used across the daemon.
type Error struct {
	code      Code
	category  Category
	message   string
	cause     error
	timestamp time.Time
	component string // originating component, if known
}

// Ensure Error implements error and json.Marshaler.
var (
	_ error          = (*Error)(nil)
	_ json.Marshaler = (*Error)(nil)
)

// New creates a structured error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		code:      code,
		category:  CategoryOf(code),
		message:   message,
		timestamp: time.Now().UTC(),
	}
}

// Newf creates a structured error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context while preserving the chain.
// If err is nil, Wrap returns nil. If err is already an *Error, its code
// and category are preserved; otherwise the error is classified internal.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	var derr *Error
	if errors.As(err, &derr) {
		return &Error{
			code:      derr.code,
			category:  derr.category,
			message:   message,
			cause:     err,
			timestamp: time.Now().UTC(),
			component: derr.component,
		}
	}
	return &Error{
		code:      CodeInternal,
		category:  CategoryOf(CodeInternal),
		message:   message,
		cause:     err,
		timestamp: time.Now().UTC(),
	}
}

// WrapWithCode wraps an error under a specific code.
func WrapWithCode(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.cause = err
	return e
}

// WithComponent returns a copy of the error tagged with the component name.
func (e *Error) WithComponent(component string) *Error {
	clone := *e
	clone.component = component
	return &clone
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() Category {
	return e.category
}

// Fatal returns true if this error must terminate the process.
func (e *Error) Fatal() bool {
	return e.category.Fatal()
}

// Component returns the originating component, if set.
func (e *Error) Component() string {
	return e.component
}

// Timestamp returns when the error was created.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is supports errors.Is matching against another *Error by code.
func (e *Error) Is(target error) bool {
	var terr *Error
	if errors.As(target, &terr) {
		return e.code == terr.code
	}
	return false
}

// errorJSON is the wire representation used by the appctl surface.
type errorJSON struct {
	Code      Code     `json:"code"`
	Category  Category `json:"category"`
	Message   string   `json:"message"`
	Cause     string   `json:"cause,omitempty"`
	Component string   `json:"component,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// MarshalJSON serializes the error for the appctl surface.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:      e.code,
		Category:  e.category,
		Message:   e.message,
		Component: e.component,
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if !e.timestamp.IsZero() {
		j.Timestamp = e.timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(j)
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.code == code
	}
	return false
}

// IsFatal reports whether err is classified fatal.
func IsFatal(err error) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Fatal()
	}
	return false
}
