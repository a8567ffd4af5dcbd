package midi

import (
	"errors"
	"fmt"
)

// ErrorKind classifies argument errors raised by the core.
type ErrorKind string

const (
	// ErrorOutOfRange is raised for indices or channels outside their domain.
	ErrorOutOfRange ErrorKind = "OUT_OF_RANGE"
	// ErrorInvalidArgument is raised for values that can never be encoded.
	ErrorInvalidArgument ErrorKind = "INVALID_ARGUMENT"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrOutOfRange      = errors.New("out of range")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error is an invalid-argument condition. It is fatal to the call that
// returned it and never to the object the call was made on.
//
// Malformed input is not an Error: readers report it through ParseResult and
// decoders through a Reporter.
type Error struct {
	Kind    ErrorKind
	Op      string // operation that rejected the argument
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Is lets errors.Is match the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrOutOfRange:
		return e.Kind == ErrorOutOfRange
	case ErrInvalidArgument:
		return e.Kind == ErrorInvalidArgument
	}
	return false
}

// NewOutOfRangeError creates an out-of-range error for value outside [min, max].
func NewOutOfRangeError(op, what string, value, min, max int) *Error {
	return &Error{
		Kind:    ErrorOutOfRange,
		Op:      op,
		Message: fmt.Sprintf("%s %d out of range [%d, %d]", what, value, min, max),
	}
}

// NewInvalidArgumentError creates an invalid-argument error.
func NewInvalidArgumentError(op, format string, args ...any) *Error {
	return &Error{
		Kind:    ErrorInvalidArgument,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}
