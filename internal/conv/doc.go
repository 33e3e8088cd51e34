// Package conv converts between Go's int and the int32 fields of the fvecs
// and IVF file formats with explicit bounds checks.
//
// Values read from disk are untrusted: a negative or oversized header must
// surface as an error, never wrap silently. Loop indices and other values
// bounded by construction use plain casts.
package conv
