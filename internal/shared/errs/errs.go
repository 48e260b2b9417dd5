package errs

import (
	"errors"
	"fmt"
)

// Code classifies a capability failure.
type Code string

const (
	CodeValidation        Code = "validation"
	CodePermissionDenied  Code = "permission_denied"
	CodeRateLimited       Code = "rate_limited"
	CodeTimeout           Code = "timeout"
	CodeExecution         Code = "execution"
	CodeOverloaded        Code = "overloaded"
	CodeResourceExhausted Code = "resource_exhausted"
	CodeAlreadyExists     Code = "already_exists"
	CodeShuttingDown      Code = "shutting_down"
)

// Error is a classified capability error carrying operation and isolate
// context. Handlers never let a raw error cross this boundary.
type Error struct {
	Code      Code
	Operation string
	IsolateID string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s (op=%s isolate=%s)", e.Code, msg, e.Operation, e.IsolateID)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(code Code, op, isolateID, message string) *Error {
	return &Error{Code: code, Operation: op, IsolateID: isolateID, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, op, isolateID, format string, args ...interface{}) *Error {
	return &Error{Code: code, Operation: op, IsolateID: isolateID, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(code Code, op, isolateID string, err error) *Error {
	return &Error{Code: code, Operation: op, IsolateID: isolateID, Err: err}
}

// Validation is shorthand for a validation failure.
func Validation(op, isolateID, message string) *Error {
	return New(CodeValidation, op, isolateID, message)
}

// Denied is shorthand for a permission denial.
func Denied(op, isolateID, reason string) *Error {
	return New(CodePermissionDenied, op, isolateID, reason)
}

// Execution wraps a handler-internal failure.
func Execution(op, isolateID string, err error) *Error {
	return Wrap(CodeExecution, op, isolateID, err)
}

// CodeOf extracts the classification from an error chain. Unclassified
// errors report as execution failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeExecution
}

// Retryable reports whether the failure is a capacity denial the caller
// may retry, as opposed to a security or validation denial.
func Retryable(code Code) bool {
	switch code {
	case CodeRateLimited, CodeOverloaded, CodeResourceExhausted, CodeTimeout:
		return true
	}
	return false
}
