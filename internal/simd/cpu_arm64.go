//go:build arm64

package simd

import "golang.org/x/sys/cpu"

func detectCPU() (avx2, asimd bool) {
	return false, cpu.ARM64.HasASIMD
}
