package alarm

import (
	"errors"
	"fmt"
)

// Code classifies an application error.
type Code string

const (
	ErrInternal   Code = "internal"
	ErrValidation Code = "validation"
	ErrStorage    Code = "storage"
	ErrScheduling Code = "scheduling"
	ErrNotFound   Code = "not_found"
	ErrResource   Code = "resource"
)

// Error is an application error.
type Error struct {
	// Code is a machine-readable error code.
	Code Code

	// Description is a human-readable description of the error.
	Description string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return "alarm: " + string(e.Code) + ": " + e.Description + ": " + e.Err.Error()
	}
	return "alarm: " + string(e.Code) + ": " + e.Description
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Errorf(code Code, format string, args ...any) error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and description to err. It returns nil if err is nil.
func Wrap(code Code, err error, description string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Description: description, Err: err}
}

// ErrorCode returns the error code associated with err, or ErrInternal if err
// isn't an application error.
func ErrorCode(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return ErrInternal
}

// ErrorDescription returns a human-readable description of the error, or
// "internal error" if err isn't an application error.
func ErrorDescription(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Description != "" {
		return e.Description
	}
	return "internal error"
}

// IsNotFound reports whether err carries the ErrNotFound code.
func IsNotFound(err error) bool {
	return ErrorCode(err) == ErrNotFound
}
