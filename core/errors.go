package core

import (
	"errors"
	"fmt"
)

// Code classifies an Error. Callers branch on codes, never on messages.
type Code string

const (
	CodeValidation Code = "VALIDATION"
	CodeNotFound   Code = "NOT_FOUND"
	CodeTransient  Code = "TRANSIENT"
	CodePermission Code = "PERMISSION"
	CodeSizeLimit  Code = "SIZE_LIMIT"
	CodeConflict   Code = "CONFLICT"
	CodeInternal   Code = "INTERNAL"
)

var (
	// ErrEmptyPayload is returned when an upload carries no content.
	ErrEmptyPayload = &Error{Code: CodeValidation, Message: "payload is empty"}

	// ErrVersionMismatch is wrapped by stores when a conditional write loses.
	ErrVersionMismatch = &Error{Code: CodeConflict, Message: "document version mismatch"}
)

// Error is the error type returned across package boundaries.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by code and message so that wrapped copies of
// ErrEmptyPayload and ErrVersionMismatch still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// CodeOf returns the code of the first Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Retryable reports whether a whole read-modify-write cycle may be retried
// after err.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeTransient:
		return true
	}
	return false
}

func Validation(format string, args ...any) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func SizeLimit(size, limit int64) error {
	return &Error{Code: CodeSizeLimit, Message: fmt.Sprintf("payload of %d bytes exceeds limit of %d bytes", size, limit)}
}

func Conflict(key string, err error) error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf("conflicting write to %s", key), Err: err}
}

func Transient(msg string, err error) error {
	return &Error{Code: CodeTransient, Message: msg, Err: err}
}

func Permission(msg string, err error) error {
	return &Error{Code: CodePermission, Message: msg, Err: err}
}

func Internal(msg string, err error) error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}
