package errors

import (
	"errors"
	"fmt"
)

// Re-exported standard library helpers so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// ErrorCode is a stable identifier for a class of failure.
type ErrorCode string

// Error is a domain error carrying a code and an optional cause.
type Error struct {
	code    ErrorCode
	message string
	err     error
}

func (e *Error) Error() string {
	msg := e.message
	if msg == "" {
		msg = messageFor(e.code)
	}

	if e.err != nil {
		return fmt.Sprintf("%s: %v", msg, e.err)
	}

	return msg
}

func (e *Error) Code() ErrorCode {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// New creates an error for the given code.
func New(code ErrorCode) *Error {
	return &Error{code: code}
}

// Wrap creates an error for the given code with an underlying cause.
func Wrap(code ErrorCode, err error) *Error {
	return &Error{code: code, err: err}
}

// WithMessage creates an error for the given code with a custom message.
func WithMessage(code ErrorCode, msg string) *Error {
	return &Error{code: code, message: msg}
}

// CodeOf returns the code of err, or ErrInternal if err carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}

	return ErrInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err is a transient sensor failure that the
// monitor loop may retry before escalating to an alert.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrSensorUnavailable, ErrSensorFault:
		return true
	default:
		return false
	}
}
