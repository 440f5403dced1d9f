package pipeline

import (
	"errors"
	"fmt"
)

// Code classifies every failure a pipeline can surface. The set is closed:
// callers switch on it to decide how to present the failure.
type Code string

const (
	CodeAuthenticationRequired Code = "authentication_required"
	CodeInvalidInput           Code = "invalid_input"
	CodeNotFound               Code = "not_found"
	CodeNotAuthorized          Code = "not_authorized"
	CodeInvalidTransition      Code = "invalid_transition"
	CodeMutationFailed         Code = "mutation_failed"
	CodeMalformedResult        Code = "malformed_result"
)

// Error is the structured error every pipeline returns. Data carries
// machine-readable details (entity kind, legal transitions, violated fields).
type Error struct {
	Code    Code
	Message string
	Data    map[string]any
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) WithData(data map[string]any) *Error {
	e.Data = data
	return e
}

func AuthenticationRequired() *Error {
	return NewError(CodeAuthenticationRequired, "no acting user in context")
}

func InvalidInput(fields ...string) *Error {
	err := NewError(CodeInvalidInput, "input validation failed")
	if len(fields) > 0 {
		err.Message = fmt.Sprintf("input validation failed: %v", fields)
		err.Data = map[string]any{"fields": fields}
	}
	return err
}

func NotFound(entity string, id any) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", entity, id),
		Data:    map[string]any{"entity": entity, "id": id},
	}
}

func NotAuthorized(message string) *Error {
	return NewError(CodeNotAuthorized, message)
}

func MutationFailed(err error) *Error {
	return &Error{
		Code:    CodeMutationFailed,
		Message: "backend mutation rejected the operation",
		wrapped: err,
	}
}

func MalformedResult(pipeline string, err error) *Error {
	return &Error{
		Code:    CodeMalformedResult,
		Message: fmt.Sprintf("pipeline %s returned an unusable result", pipeline),
		wrapped: err,
	}
}

// AsError extracts a structured Error; ok is false for plain errors.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ensure wraps an arbitrary error into a structured one. Errors coming out of
// guards and mutations that are already structured pass through untouched;
// anything else is the backend speaking, so it becomes MutationFailed.
func ensure(err error) *Error {
	if pe, ok := AsError(err); ok {
		return pe
	}
	return MutationFailed(err)
}
