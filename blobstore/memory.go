package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in a map. Besides serving tests as a Store it
// records the order in which writes become visible and can fail writes of
// chosen names, so snapshot publish ordering can be observed.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	written []string
	faults  map[string]error
}

var _ Store = (*MemoryStore)(nil)
var _ ExclusivePutter = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:  make(map[string][]byte),
		faults: make(map[string]error),
	}
}

// FailWrites makes every later Put, PutIfAbsent or Close of a streamed blob
// named name fail with err. A nil err clears the fault.
func (m *MemoryStore) FailWrites(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, name)
		return
	}
	m.faults[name] = err
}

// Written returns the names of successful writes in the order they became
// visible. A name written twice appears twice.
func (m *MemoryStore) Written() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.written)
}

func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	// Stored slices are replaced, never mutated.
	return NewBytesBlob(data), nil
}

func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWriter{store: m, name: name}, nil
}

func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	return m.commit(name, data, false)
}

// PutIfAbsent writes name unless it already exists.
func (m *MemoryStore) PutIfAbsent(_ context.Context, name string, data []byte) error {
	return m.commit(name, data, true)
}

func (m *MemoryStore) commit(name string, data []byte, exclusive bool) error {
	blob := append([]byte{}, data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.faults[name]; err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	if _, ok := m.blobs[name]; ok && exclusive {
		return ErrExists
	}
	m.blobs[name] = blob
	m.written = append(m.written, name)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

type bytesBlob []byte

// NewBytesBlob serves data as a read-only Blob. data must not be modified
// while the blob is in use.
func NewBytesBlob(data []byte) Blob { return bytesBlob(data) }

func (b bytesBlob) Size() int64  { return int64(len(b)) }
func (b bytesBlob) Close() error { return nil }

func (b bytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	size := b.Size()
	switch {
	case off < 0 || length < 0:
		return nil, fmt.Errorf("blobstore: invalid range %d+%d", off, length)
	case off >= size:
		return nil, io.EOF
	}
	return io.NopCloser(bytes.NewReader(b[off:min(off+length, size)])), nil
}

// memoryWriter buffers a streamed blob until Close. It is used by one
// goroutine at a time.
type memoryWriter struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
	done  bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrAborted
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.store.commit(w.name, w.buf.Bytes(), false)
}

func (w *memoryWriter) Abort(context.Context) error {
	w.done = true
	w.buf.Reset()
	return nil
}
