package protocol

import (
	"errors"
	"fmt"
)

// Format failure codes produced by the parser.
const (
	CodeInvalidFormat = "INVALID_FORMAT"
	CodeInvalidInt    = "INVALID_INT"
)

// ParseError reports a request line that could not be turned into a Command.
type ParseError struct {
	Code        string
	Description string
}

// Error implements the error interface as "<CODE> <description>".
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %s", e.Code, e.Description)
}

func formatError(format string, args ...any) *ParseError {
	return &ParseError{Code: CodeInvalidFormat, Description: fmt.Sprintf(format, args...)}
}

func intError(s string) *ParseError {
	return &ParseError{Code: CodeInvalidInt, Description: fmt.Sprintf("'%s' is not a valid integer.", s)}
}

// ErrMalformedResponse is wrapped by every error ReadResponse and
// ParseHandshake return for lines that do not follow the grammar.
var ErrMalformedResponse = errors.New("malformed response")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
