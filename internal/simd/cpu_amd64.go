//go:build amd64

package simd

import "golang.org/x/sys/cpu"

// The 8-lane kernels map onto one YMM register; FMA keeps the
// multiply-add fused.
func detectCPU() (avx2, asimd bool) {
	return cpu.X86.HasAVX2 && cpu.X86.HasFMA, false
}
