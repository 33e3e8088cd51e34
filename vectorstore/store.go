package vectorstore

import (
	"io"
	"os"

	"github.com/hupe1980/velox/internal/fs"
	"github.com/hupe1980/velox/model"
)

// Mode is the storage mode of a Store.
type Mode int

const (
	// ModeHeap is an append-only in-memory store.
	ModeHeap Mode = iota
	// ModeMapped is a read-only store backed by a memory-mapped fvecs file.
	ModeMapped
)

func (m Mode) String() string {
	switch m {
	case ModeHeap:
		return "heap"
	case ModeMapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// Option configures a Store.
type Option func(*Store)

// WithFileSystem sets the file system used by Export and Import.
// Mapped loads always go through the operating system.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(s *Store) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// Store holds fixed-dimension float32 vectors.
type Store struct {
	fs   fs.FileSystem
	mode Mode
	dim  int

	rows   [][]float32 // heap mode
	mapped *mappedFile // mapped mode
}

// New returns an empty heap store.
func New(opts ...Option) *Store {
	s := &Store{fs: fs.Default}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the current storage mode.
func (s *Store) Mode() Mode { return s.mode }

// Dim returns the vector dimension, or 0 if the store is empty.
func (s *Store) Dim() int { return s.dim }

// Len returns the number of vectors.
func (s *Store) Len() int {
	if s.mode == ModeMapped {
		return s.mapped.count
	}
	return len(s.rows)
}

// Add appends a copy of vec. The first vector fixes the dimension.
func (s *Store) Add(vec []float32) error {
	if s.mode == ModeMapped {
		return model.Errorf(model.ErrInvalidOperation, "cannot add to a mapped store")
	}
	if len(vec) == 0 {
		return model.Errorf(model.ErrInvalidArgument, "empty vector")
	}
	if len(s.rows) > 0 && len(vec) != s.dim {
		return &model.DimensionMismatchError{Expected: s.dim, Actual: len(vec)}
	}

	row := make([]float32, len(vec))
	copy(row, vec)
	s.rows = append(s.rows, row)
	s.dim = len(vec)
	return nil
}

// Import appends every record of an fvecs stream to a heap store.
// The stream is parsed completely before anything is appended.
func (s *Store) Import(r io.Reader) (int, error) {
	return s.importFrom(r, -1)
}

func (s *Store) importFrom(r io.Reader, size int64) (int, error) {
	if s.mode == ModeMapped {
		return 0, model.Errorf(model.ErrInvalidOperation, "cannot import into a mapped store")
	}
	rows, dim, err := readFvecs(r, size)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if len(s.rows) > 0 && dim != s.dim {
		return 0, &model.DimensionMismatchError{Expected: s.dim, Actual: dim}
	}
	s.rows = append(s.rows, rows...)
	s.dim = dim
	return len(rows), nil
}

// ImportFile is Import for the fvecs file at path.
func (s *Store) ImportFile(path string) (int, error) {
	f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return 0, model.WrapIO("open", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, model.WrapIO("stat", path, err)
	}
	return s.importFrom(f, info.Size())
}

// Load memory-maps the fvecs file at path and switches the store to mapped
// mode. Any previous contents are discarded, and a previously held mapping is
// released. On failure the store is left unchanged.
func (s *Store) Load(path string) error {
	staged, err := openMapped(path)
	if err != nil {
		return err
	}

	prev := s.mapped
	s.mapped = staged
	s.mode = ModeMapped
	s.dim = staged.dim
	s.rows = nil

	if prev != nil {
		_ = prev.close()
	}
	return nil
}

// Get returns a copy of vector i.
func (s *Store) Get(i int) ([]float32, error) {
	if err := s.checkIndex(i); err != nil {
		return nil, err
	}
	dst := make([]float32, s.dim)
	if err := s.read(i, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// ReadInto copies vector i into dst, which must have length Dim.
func (s *Store) ReadInto(i int, dst []float32) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	if len(dst) != s.dim {
		return &model.DimensionMismatchError{Expected: s.dim, Actual: len(dst)}
	}
	return s.read(i, dst)
}

func (s *Store) checkIndex(i int) error {
	if n := s.Len(); i < 0 || i >= n {
		return &model.IndexOutOfRangeError{Index: i, Count: n}
	}
	return nil
}

func (s *Store) read(i int, dst []float32) error {
	if s.mode == ModeMapped {
		return s.mapped.read(i, dst)
	}
	copy(dst, s.rows[i])
	return nil
}

// Export writes a heap store to path as fvecs. The file is replaced
// atomically; a failed export leaves any existing file intact.
func (s *Store) Export(path string) error {
	if s.mode == ModeMapped {
		return model.Errorf(model.ErrInvalidOperation, "cannot export a mapped store")
	}
	if len(s.rows) == 0 {
		return model.Errorf(model.ErrInvalidOperation, "cannot export an empty store")
	}
	err := fs.WriteAtomic(s.fs, path, func(w io.Writer) error {
		return WriteFvecs(w, s.rows)
	})
	if err != nil {
		return model.WrapIO("export", path, err)
	}
	return nil
}

// VerifyHeaders checks that every record header of a mapped store declares
// the store dimension. Load only inspects the first header.
func (s *Store) VerifyHeaders() error {
	if s.mode != ModeMapped {
		return nil
	}
	return s.mapped.verifyHeaders()
}

// Close releases the mapping, if any, and resets the store to an empty heap
// store. It is idempotent.
func (s *Store) Close() error {
	var err error
	if s.mapped != nil {
		err = s.mapped.close()
		s.mapped = nil
	}
	s.mode = ModeHeap
	s.dim = 0
	s.rows = nil
	return err
}
