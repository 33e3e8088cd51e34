package conv

import (
	"fmt"
	"math"
)

// IntToInt32 converts int to int32 safely.
func IntToInt32(v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int32", v)
	}
	return int32(v), nil
}

// CountToInt32 converts a non-negative count (length, dimension, list size)
// to the int32 used by on-disk headers.
func CountToInt32(v int) (int32, error) {
	if v < 0 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int32 count (negative)", v)
	}
	return IntToInt32(v)
}

// Int32ToCount converts an on-disk int32 count to int, rejecting negatives.
func Int32ToCount(v int32) (int, error) {
	if v < 0 {
		return 0, fmt.Errorf("invalid count: %d is negative", v)
	}
	return int(v), nil
}

// Int64ToInt converts int64 to int safely.
func Int64ToInt(v int64) (int, error) {
	if int64(int(v)) != v {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int", v)
	}
	return int(v), nil
}

