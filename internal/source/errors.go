package source

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes document load failures.
type ErrorCode string

const (
	// CodeNotFound indicates the document is missing or could not be read.
	CodeNotFound ErrorCode = "SOURCE_NOT_FOUND"

	// CodeInvalid indicates the document was read but is not valid JSON.
	CodeInvalid ErrorCode = "SOURCE_INVALID"
)

// Error is returned by Load and Parse.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Name is the document name as requested (not the resolved path).
	Name string

	// Message is a human-readable description suitable for clients.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates an Error for a document that could not be read.
func NewNotFoundError(name string, err error) *Error {
	return &Error{
		Code:    CodeNotFound,
		Name:    name,
		Message: fmt.Sprintf("could not load %s file", name),
		Err:     err,
	}
}

// NewInvalidError creates an Error for a document that failed to parse.
func NewInvalidError(name string, err error) *Error {
	return &Error{
		Code:    CodeInvalid,
		Name:    name,
		Message: fmt.Sprintf("could not parse %s file", name),
		Err:     err,
	}
}

// IsNotFound reports whether err is (or wraps) a CodeNotFound error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsInvalid reports whether err is (or wraps) a CodeInvalid error.
func IsInvalid(err error) bool {
	return hasCode(err, CodeInvalid)
}

// Message returns the client-facing message for err. Errors that did not
// come from this package are described by their Error text.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
