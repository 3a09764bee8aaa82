package board

import (
	"errors"
	"fmt"
)

// Code is the machine-readable validation failure code sent on the wire.
type Code string

// Validation failure codes.
const (
	CodeColourNotSupported Code = "COLOUR_NOT_SUPPORTED"
	CodeOutOfBounds        Code = "OUT_OF_BOUNDS"
	CodeOverlap            Code = "OVERLAP_ERROR"
	CodeNoNoteAtCoordinate Code = "NO_NOTE_AT_COORDINATE"
	CodePinNotFound        Code = "PIN_NOT_FOUND"
)

// Error is a recoverable validation failure reported by a board operation.
// The connection that caused it keeps being served.
type Error struct {
	Code        Code
	Description string
}

// Error implements the error interface as "<CODE> <description>".
func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s %s", e.Code, e.Description)
}

// Is matches any *Error carrying the same code, so callers can compare
// against the sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors for use with errors.Is.
var (
	ErrColourNotSupported = &Error{Code: CodeColourNotSupported}
	ErrOutOfBounds        = &Error{Code: CodeOutOfBounds}
	ErrOverlap            = &Error{Code: CodeOverlap}
	ErrNoNoteAtCoordinate = &Error{Code: CodeNoNoteAtCoordinate}
	ErrPinNotFound        = &Error{Code: CodePinNotFound}
)

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// AsError extracts a board validation error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
