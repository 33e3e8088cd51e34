//go:build !amd64 && !arm64

package simd

func detectCPU() (avx2, asimd bool) { return false, false }
