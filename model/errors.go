package model

import (
	"errors"
	"fmt"
)

// NotFound is the id returned when a search inspects no candidate.
const NotFound = -1

var (
	// ErrIO is returned when a file cannot be opened, read, written or mapped.
	ErrIO = errors.New("io error")
	// ErrCorruptFormat is returned for malformed or size-inconsistent files.
	ErrCorruptFormat = errors.New("corrupt format")
	// ErrDimensionMismatch is returned when vector dimensions disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidOperation is returned when an operation is not allowed in the current state.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrIndexOutOfRange is returned for vector ids outside [0, count).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidArgument is returned for invalid parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// DimensionMismatchError indicates a vector/query/index dimensionality mismatch.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// IndexOutOfRangeError indicates a vector id outside [0, Count).
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index out of range: %d not in [0, %d)", e.Index, e.Count)
}

// Is reports whether target is ErrIndexOutOfRange.
func (e *IndexOutOfRangeError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// Errorf wraps kind with a formatted message so that errors.Is(err, kind) holds.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// WrapIO wraps an OS-level error as ErrIO, keeping the cause inspectable.
func WrapIO(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
