// Package hash provides the CRC32-Castagnoli checksums used to verify
// snapshot blobs and S3 uploads.
//
// For one-shot checksums:
//
//	sum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	_, _ = io.Copy(h, r)
//	sum := h.Sum32()
//
// Go's hash/crc32 uses SSE4.2 or the ARM CRC extension when available.
package hash
