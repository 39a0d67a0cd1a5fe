// Package domainerrors carries coded errors across service boundaries.
//
// A Code names the failure category a transport maps to a status and a wire
// error string. Internal failures keep their cause for logging but never leak
// it to callers.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a domain error category. Its string form is the wire value.
type Code string

const (
	CodeInternal            Code = "internal_error"
	CodeInvariantViolation  Code = "invariant_violation"
	CodeValidation          Code = "validation_error"
	CodeBadRequest          Code = "bad_request"
	CodeInvalidInput        Code = "invalid_input"
	CodeInvalidRequest      Code = "invalid_request"
	CodeUnauthorized        Code = "unauthorized"
	CodeForbidden           Code = "forbidden"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeTimeout             Code = "timeout"
	CodeMissingParameter    Code = "missing_parameter"
	CodeInvalidParameter    Code = "invalid_parameter"
	CodeClientNotFound      Code = "client_not_found"
	CodeInvalidRedirectURI  Code = "invalid_redirect_uri"
	CodeInvalidScope        Code = "invalid_scope"
	CodeFlowNotFound        Code = "flow_not_found"
	CodeInvalidToken        Code = "invalid_token"
	CodeInvalidID           Code = "invalid_id"
	CodeInteractionRequired Code = "interaction_required"
)

// Error is a coded domain error.
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

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the outermost coded error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Is reports whether the outermost coded error in err's chain carries code.
func Is(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// HasCode reports whether any coded error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		if de, ok := err.(*Error); ok && de.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal when err is uncoded.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}
