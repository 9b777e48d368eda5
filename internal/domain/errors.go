package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorValidation         ErrorCode = "VALIDATION_ERROR"
	ErrorNotFound           ErrorCode = "NOT_FOUND"
	ErrorAmbiguousReference ErrorCode = "AMBIGUOUS_REFERENCE"
	ErrorCollaborator       ErrorCode = "COLLABORATOR_ERROR"
	ErrorInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error carries a machine code, a log reason and a Message that is safe to
// send back over SMS. Err is for logs only.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}

// UserMessage returns the user-safe text of err, or fallback when err is not
// a *Error or has no message.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
