// Package mmap provides read-only memory-mapped file access.
//
// # Usage
//
//	m, err := mmap.Open("vectors.fvecs")
//	if err != nil { ... }
//	defer m.Close()
//
//	dim, err := m.Int32At(0)
//	row := make([]float32, dim)
//	err = m.ReadFloat32s(row, 4)
//
// # Safety
//
// A Mapping is owned by exactly one holder and released exactly once:
// Close is idempotent and guarded by an atomic flag. Typed reads never hand
// out views into the mapped region; Int32At and ReadFloat32s validate offset
// and length against the mapping size before copying out.
//
// Values are decoded in host-native byte order.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) access hints
//   - Windows: CreateFileMapping/MapViewOfFile (Advise is a no-op)
package mmap
