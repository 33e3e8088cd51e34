package simd

import (
	"os"
	"runtime"
	"strings"
)

// ISA represents a SIMD instruction set architecture.
type ISA uint8

const (
	// Generic represents the scalar implementation.
	Generic ISA = iota
	// NEON represents ARM64 NEON (128-bit, two registers per 8 lanes).
	NEON
	// AVX2 represents x86-64 AVX2 (256-bit, one register per 8 lanes).
	AVX2
)

// String returns the string representation of an ISA.
func (i ISA) String() string {
	switch i {
	case Generic:
		return "generic"
	case NEON:
		return "neon"
	case AVX2:
		return "avx2"
	default:
		return "unknown"
	}
}

// ParseISA parses a string into an ISA value.
func ParseISA(s string) (ISA, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "neon":
		return NEON, true
	case "avx2":
		return AVX2, true
	default:
		return Generic, false
	}
}

// Set once by init; read-only afterwards.
var (
	activeISA   ISA
	hasOverride bool

	hasASIMD bool
	hasAVX2  bool
)

func init() {
	hasAVX2, hasASIMD = detectCPU()
	initCapabilities()
}

func initCapabilities() {
	if override := os.Getenv("VELOX_SIMD"); override != "" {
		if isa, ok := ParseISA(override); ok && isISAAvailable(isa) {
			hasOverride = true
			activeISA = isa
			return
		}
	}
	activeISA = selectBestISA()
}

func isISAAvailable(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case NEON:
		return hasASIMD
	case AVX2:
		return hasAVX2
	default:
		return false
	}
}

func selectBestISA() ISA {
	switch runtime.GOARCH {
	case "arm64":
		if hasASIMD {
			return NEON
		}
	case "amd64":
		if hasAVX2 {
			return AVX2
		}
	}
	return Generic
}

// ActiveISA returns the currently active ISA.
func ActiveISA() ISA {
	return activeISA
}

// IsOverridden returns true if VELOX_SIMD was set to a valid, available ISA.
func IsOverridden() bool {
	return hasOverride
}

// Enabled reports whether the lane kernels may be used.
// Only an explicit VELOX_SIMD=generic override disables them: the lane layout
// is portable Go and is correct on every target.
func Enabled() bool {
	return !(hasOverride && activeISA == Generic)
}

// HasAVX2 returns true if x86-64 AVX2+FMA is available.
func HasAVX2() bool {
	return hasAVX2
}

// HasASIMD returns true if ARM64 NEON is available.
func HasASIMD() bool {
	return hasASIMD
}
