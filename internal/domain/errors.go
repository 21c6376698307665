package domain

import "errors"

// Error is a failure with an HTTP-like status class attached. Services return
// these for every expected failure; handlers translate them without guessing.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func ErrValidation(message string) *Error { return NewError(400, message) }
func ErrConflict(message string) *Error   { return NewError(400, message) }
func ErrForbidden(message string) *Error  { return NewError(403, message) }
func ErrNotFound(message string) *Error   { return NewError(404, message) }
func ErrInternal(message string) *Error   { return NewError(500, message) }

// ErrorCode extracts the status class from an error chain; anything untyped
// counts as an internal failure.
func ErrorCode(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return 500
}
