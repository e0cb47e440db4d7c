// Package dErrors defines code-carrying domain errors for API boundaries.
// Stores return sentinel errors (pkg/platform/sentinel); services translate
// them into these before they reach a handler.
package dErrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error for transport mapping and tests.
type Code string

const (
	CodeInvalidInput  Code = "invalid_input"
	CodeBadRequest    Code = "bad_request"
	CodeUnauthorized  Code = "unauthorized"
	CodeForbidden     Code = "forbidden"
	CodeNotFound      Code = "not_found"
	CodeConflict      Code = "conflict"
	CodeInvalidState  Code = "invalid_state"
	CodeQuarantined   Code = "quarantined"
	CodeDuplicate     Code = "duplicate"
	CodeUnprocessable Code = "unprocessable"
	CodeInternal      Code = "internal"
)

// DomainError is an error with a stable machine-readable code.
type DomainError struct {
	Code    Code
	Message string
	wrapped error
}

func (e *DomainError) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.wrapped }

// New creates a domain error with the given code and message.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a convenience alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status used by the JSON envelope.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicate, CodeInvalidState:
		return http.StatusConflict
	case CodeQuarantined, CodeUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
