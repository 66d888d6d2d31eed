// Package domainerrors provides coded domain errors. Services create them at
// the point where an infrastructure fact (a sentinel error) or a validation
// failure becomes a business outcome; the transport layer maps codes to HTTP
// statuses without inspecting message text.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Codes are part of the API contract and are
// returned verbatim in error envelopes.
type Code string

const (
	// Generic codes shared by all modules.
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"

	// Ledger-specific codes.
	CodeInvalidAmount          Code = "invalid_amount"
	CodeSameAccount            Code = "same_account"
	CodeAccountNotFound        Code = "account_not_found"
	CodeAccountBlocked         Code = "account_blocked"
	CodeInsufficientFunds      Code = "insufficient_funds"
	CodeInvalidState           Code = "invalid_state"
	CodeDestinationUnavailable Code = "destination_unavailable"
	CodeStorageFailure         Code = "storage_failure"
)

// Error is a coded domain error. It optionally wraps an underlying cause so
// errors.Is/As still see infrastructure sentinels through it.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost message carried by err, or a generic one.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a domain code to the HTTP status the transport layer
// should answer with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidation, CodeInvalidAmount, CodeSameAccount:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeAccountNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidState, CodeInvariantViolation:
		return http.StatusConflict
	case CodeAccountBlocked, CodeInsufficientFunds, CodeDestinationUnavailable:
		return http.StatusUnprocessableEntity
	case CodeStorageFailure, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
