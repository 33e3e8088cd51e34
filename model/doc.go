// Package model defines the types and error kinds shared by every Velox package.
//
// # Identity
//
// Vectors are addressed by their position in the store (an int in [0, count)).
// NotFound (-1) is returned by searches that inspect no candidate.
//
// # Error Kinds
//
// All packages report failures as one of six kinds, matched with errors.Is:
//
//   - ErrIO: open, read, write or map failure
//   - ErrCorruptFormat: malformed header or size-inconsistent file
//   - ErrDimensionMismatch: vector, query or index dimension disagreement
//   - ErrInvalidOperation: mutating a mapped store, saving an unbuilt index, empty store
//   - ErrIndexOutOfRange: vector id outside [0, count)
//   - ErrInvalidArgument: bad build parameters or metric names
//
// Typed errors (DimensionMismatchError, IndexOutOfRangeError) carry details and
// match their sentinel:
//
//	var dm *model.DimensionMismatchError
//	if errors.As(err, &dm) {
//	    fmt.Println(dm.Expected, dm.Actual)
//	}
package model
