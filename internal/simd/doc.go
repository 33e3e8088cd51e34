// Package simd provides the distance kernels used by the distance package.
//
// Every kernel exists twice:
//
//   - a scalar reference implementation (SquaredL2Generic, CosineGeneric)
//   - a lane implementation (SquaredL2, Cosine) that keeps 8 independent float32
//     accumulators, the layout of a 256-bit register, and folds the final
//     n mod 8 elements in a scalar tail
//
// Both implementations honour the same contract; results differ only by
// summation order, well within 1e-4 relative tolerance.
//
// # Capability Detection
//
// The host ISA is detected at init via golang.org/x/sys/cpu. Setting
// VELOX_SIMD=generic disables the lane kernels process-wide, which is useful
// when comparing against the scalar reference.
package simd
