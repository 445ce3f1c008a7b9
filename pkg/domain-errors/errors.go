// Package domainerrors carries typed error codes from services to transports.
//
// Services return *Error values built with New or Wrap. Transports (HTTP
// handlers, the command dispatcher) translate the code into a status or a
// failure report without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeBadRequest covers malformed arguments (usage errors). No state changes.
	CodeBadRequest Code = "bad_request"
	// CodeValidation covers values that parse but violate a rule (e.g. an invalid pattern).
	CodeValidation Code = "validation_error"
	CodeNotFound   Code = "not_found"
	// CodeConflict signals an already existing entry.
	CodeConflict  Code = "conflict"
	CodeForbidden Code = "forbidden"
	// CodeInvalidRequest marks stale, unknown or already consumed tokens.
	CodeInvalidRequest Code = "invalid_request"
	// CodeRateLimited rejects an issuer sending commands too fast.
	CodeRateLimited Code = "rate_limited"
	// CodeUnavailable is a transient transport or storage failure.
	CodeUnavailable Code = "unavailable"
	CodeTimeout     Code = "timeout"
	CodeInternal    Code = "internal_error"
)

// Error is a coded domain error. Err, when set, is the wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost domain message, or a generic one.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
