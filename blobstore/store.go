package blobstore

import (
	"context"
	"errors"
	"io"
	"mime"
	"os"
	"path"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrExists is returned by PutIfAbsent when the blob already exists.
var ErrExists = os.ErrExist

// ErrAborted is returned by a WritableBlob after Abort.
var ErrAborted = errors.New("blobstore: write aborted")

// Store is an abstraction over a flat namespace of immutable blobs.
// Snapshots of vector files and IVF indexes are published through it.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts a streaming write. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// ReadRange returns a reader over [off, off+length), clipped to the blob size.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob under construction.
type WritableBlob interface {
	io.Writer
	// Close commits the blob.
	Close() error
	// Abort discards everything written so far. It is a no-op after Close.
	Abort(ctx context.Context) error
}

// ReadAll reads the whole blob into memory.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	size := b.Size()
	if size == 0 {
		return []byte{}, nil
	}
	rc, err := b.ReadRange(ctx, 0, size)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := make([]byte, size)
	if _, err := io.ReadFull(rc, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Get opens name and reads it fully.
func Get(ctx context.Context, s Store, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return ReadAll(ctx, b)
}

// Exists reports whether name can be opened.
func Exists(ctx context.Context, s Store, name string) (bool, error) {
	b, err := s.Open(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, b.Close()
}

// ExclusivePutter is implemented by stores that can refuse to overwrite a
// blob in a single request.
type ExclusivePutter interface {
	PutIfAbsent(ctx context.Context, name string, data []byte) error
}

// PutIfAbsent writes name only if it does not exist yet, and returns
// ErrExists otherwise. Stores without ExclusivePutter get a check followed by
// a Put, which a concurrent writer can still race.
func PutIfAbsent(ctx context.Context, s Store, name string, data []byte) error {
	if ep, ok := s.(ExclusivePutter); ok {
		return ep.PutIfAbsent(ctx, name, data)
	}
	exists, err := Exists(ctx, s, name)
	if err != nil {
		return err
	}
	if exists {
		return ErrExists
	}
	return s.Put(ctx, name, data)
}

// ContentType returns the MIME type remote stores attach to name.
func ContentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
