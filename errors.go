package velox

import (
	"errors"
	"fmt"

	"github.com/hupe1980/velox/model"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrIO                = model.ErrIO
	ErrCorruptFormat     = model.ErrCorruptFormat
	ErrDimensionMismatch = model.ErrDimensionMismatch
	ErrInvalidOperation  = model.ErrInvalidOperation
	ErrIndexOutOfRange   = model.ErrIndexOutOfRange
	ErrInvalidArgument   = model.ErrInvalidArgument
)

// ErrClosed is returned by operations on a closed DB.
var ErrClosed = fmt.Errorf("%w: database is closed", model.ErrInvalidOperation)

// DimensionMismatchError indicates a vector/query/index dimensionality mismatch.
type DimensionMismatchError = model.DimensionMismatchError

// IndexOutOfRangeError indicates a vector id outside [0, Len).
type IndexOutOfRangeError = model.IndexOutOfRangeError

// ErrorKind returns the kind sentinel err matches, or nil.
func ErrorKind(err error) error {
	for _, kind := range []error{
		ErrIO,
		ErrCorruptFormat,
		ErrDimensionMismatch,
		ErrInvalidOperation,
		ErrIndexOutOfRange,
		ErrInvalidArgument,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
