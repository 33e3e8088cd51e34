package mmap

import "errors"

// AccessPattern is an madvise hint for a mapping.
type AccessPattern int

const (
	// AccessNormal clears any previous hint.
	AccessNormal AccessPattern = iota
	// AccessSequential suits whole-file copies such as blob uploads.
	AccessSequential
	// AccessRandom suits per-record lookups during search.
	AccessRandom
)

var (
	ErrClosed        = errors.New("mmap: mapping is closed")
	ErrInvalidSize   = errors.New("mmap: file too large to map")
	ErrOutOfBounds   = errors.New("mmap: read past end of mapping")
	ErrInvalidOffset = errors.New("mmap: negative offset or length")
)
