// Package distance provides public API for vector distance calculations.
// The lane kernels come from internal/simd; the scalar reference is always
// available and is selected per call.
package distance

import (
	"fmt"
	"strings"

	"github.com/hupe1980/velox/internal/simd"
	"github.com/hupe1980/velox/model"
)

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors
// using the lane kernel. The square root is omitted: nearest-neighbor ranking
// is invariant under it.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return simd.SquaredL2(a, b)
}

// Cosine calculates 1 - cos(a, b) using the lane kernel.
// Returns exactly 1 when either vector has zero norm.
func Cosine(a, b []float32) float32 {
	return simd.Cosine(a, b)
}

// SquaredL2Scalar is the scalar reference of SquaredL2.
func SquaredL2Scalar(a, b []float32) float32 {
	return simd.SquaredL2Generic(a, b)
}

// CosineScalar is the scalar reference of Cosine.
func CosineScalar(a, b []float32) float32 {
	return simd.CosineGeneric(a, b)
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	// MetricL2 is the squared Euclidean distance (default).
	MetricL2 Metric = iota
	// MetricCosine is the cosine distance.
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Name returns the short wire name of the metric ("eucl" or "cos").
func (m Metric) Name() string {
	switch m {
	case MetricL2:
		return "eucl"
	case MetricCosine:
		return "cos"
	default:
		return m.String()
	}
}

// ParseMetric parses a metric name as used by the service and CLI.
// The empty string selects MetricL2.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "eucl", "euclidean", "l2", "sql2":
		return MetricL2, nil
	case "cos", "cosine":
		return MetricCosine, nil
	default:
		return 0, model.Errorf(model.ErrInvalidArgument, "unknown metric %q", name)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
// useSIMD selects the lane kernel; it is ignored when VELOX_SIMD=generic.
func Provider(m Metric, useSIMD bool) (Func, error) {
	lanes := useSIMD && simd.Enabled()
	switch m {
	case MetricL2:
		if lanes {
			return SquaredL2, nil
		}
		return SquaredL2Scalar, nil
	case MetricCosine:
		if lanes {
			return Cosine, nil
		}
		return CosineScalar, nil
	default:
		return nil, model.Errorf(model.ErrInvalidArgument, "unsupported metric: %v", m)
	}
}
