package spec

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes import errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
	LimitError      ErrorCode = "LimitError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

func newSpecError(code ErrorCode, cause error, format string, args ...any) *SpecError {
	return &SpecError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsCode reports whether err is a *SpecError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var se *SpecError
	return errors.As(err, &se) && se.Code == code
}
