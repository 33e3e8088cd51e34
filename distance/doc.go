// Package distance provides vector distance calculations.
//
// # Supported Metrics
//
//   - MetricL2: Squared Euclidean distance (default, not square-rooted)
//   - MetricCosine: 1 - cosine similarity; 1.0 when either vector is zero
//
// # Usage
//
//	fn, err := distance.Provider(distance.MetricCosine, true)
//	d := fn(a, b)
//
// Provider(m, false) returns the scalar reference implementation, which is
// numerically consistent with the lane kernels within 1e-4 relative tolerance.
package distance
