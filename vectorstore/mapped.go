package vectorstore

import (
	"github.com/hupe1980/velox/internal/mmap"
	"github.com/hupe1980/velox/model"
)

// mappedFile is a validated fvecs file mapped into memory.
type mappedFile struct {
	path    string
	m       *mmap.Mapping
	dim     int
	count   int
	rowSize int64
}

func openMapped(path string) (*mappedFile, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, model.WrapIO("map", path, err)
	}

	mf, err := validateMapped(path, m)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	_ = m.Advise(mmap.AccessRandom)
	return mf, nil
}

func validateMapped(path string, m *mmap.Mapping) (*mappedFile, error) {
	size := int64(m.Size())
	if size < HeaderSize {
		return nil, model.Errorf(model.ErrCorruptFormat, "%s: %d bytes is shorter than a record header", path, size)
	}
	d, err := m.Int32At(0)
	if err != nil {
		return nil, model.WrapIO("read", path, err)
	}
	if d <= 0 {
		return nil, model.Errorf(model.ErrCorruptFormat, "%s: first record declares dimension %d", path, d)
	}
	rowSize := RowSize(int(d))
	if size%rowSize != 0 {
		return nil, model.Errorf(model.ErrCorruptFormat, "%s: size %d is not a multiple of record size %d", path, size, rowSize)
	}
	return &mappedFile{
		path:    path,
		m:       m,
		dim:     int(d),
		count:   int(size / rowSize),
		rowSize: rowSize,
	}, nil
}

func (f *mappedFile) read(i int, dst []float32) error {
	off := int64(i)*f.rowSize + HeaderSize
	if err := f.m.ReadFloat32s(dst, int(off)); err != nil {
		return model.WrapIO("read", f.path, err)
	}
	return nil
}

func (f *mappedFile) verifyHeaders() error {
	for i := 0; i < f.count; i++ {
		d, err := f.m.Int32At(int(int64(i) * f.rowSize))
		if err != nil {
			return model.WrapIO("read", f.path, err)
		}
		if int(d) != f.dim {
			return model.Errorf(model.ErrCorruptFormat, "%s: record %d declares dimension %d, expected %d", f.path, i, d, f.dim)
		}
	}
	return nil
}

func (f *mappedFile) close() error {
	if err := f.m.Close(); err != nil {
		return model.WrapIO("unmap", f.path, err)
	}
	return nil
}
