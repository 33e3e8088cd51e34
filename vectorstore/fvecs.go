package vectorstore

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/hupe1980/velox/internal/conv"
	"github.com/hupe1980/velox/model"
)

// HeaderSize is the size of the int32 dimension prefix of each fvecs record.
const HeaderSize = 4

// RowSize returns the byte size of one fvecs record of dimension dim.
func RowSize(dim int) int64 {
	return HeaderSize + 4*int64(dim)
}

// WriteFvecs writes rows as consecutive fvecs records.
// All rows must share the dimension of the first one.
func WriteFvecs(w io.Writer, rows [][]float32) error {
	if len(rows) == 0 {
		return nil
	}
	dim := len(rows[0])
	if dim == 0 {
		return model.Errorf(model.ErrInvalidArgument, "fvecs: zero-dimension record")
	}
	hdr, err := conv.CountToInt32(dim)
	if err != nil {
		return model.Errorf(model.ErrInvalidArgument, "fvecs: %v", err)
	}

	buf := make([]byte, RowSize(dim))
	binary.NativeEndian.PutUint32(buf, uint32(hdr))
	for _, row := range rows {
		if len(row) != dim {
			return &model.DimensionMismatchError{Expected: dim, Actual: len(row)}
		}
		for j, v := range row {
			binary.NativeEndian.PutUint32(buf[HeaderSize+4*j:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// readChunk caps the bytes buffered per read, so a corrupt header claiming a
// huge dimension costs memory only for the bytes actually present.
const readChunk = 64 << 10

// ReadFvecs reads fvecs records until EOF and returns them with their
// dimension. An empty stream yields no rows and dim 0.
// A record whose header is not positive, differs from the first header, or is
// cut short is reported as ErrCorruptFormat.
func ReadFvecs(r io.Reader) ([][]float32, int, error) {
	return readFvecs(r, -1)
}

// readFvecs is ReadFvecs for a stream of known size, or -1 when unknown.
// With a known size the first header is checked against it before any
// record body is read.
func readFvecs(r io.Reader, size int64) ([][]float32, int, error) {
	var (
		rows [][]float32
		dim  int
		hdr  [HeaderSize]byte
		buf  []byte
	)
	for rec := 0; ; rec++ {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return rows, dim, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, 0, model.Errorf(model.ErrCorruptFormat, "fvecs: record %d: truncated header", rec)
			}
			return nil, 0, err
		}

		d := int32(binary.NativeEndian.Uint32(hdr[:]))
		if d <= 0 {
			return nil, 0, model.Errorf(model.ErrCorruptFormat, "fvecs: record %d: dimension %d", rec, d)
		}
		if rec == 0 {
			dim = int(d)
			if size >= 0 && size%RowSize(dim) != 0 {
				return nil, 0, model.Errorf(model.ErrCorruptFormat,
					"fvecs: size %d is not a multiple of record size %d", size, RowSize(dim))
			}
			buf = make([]byte, min(4*int64(dim), readChunk))
		} else if int(d) != dim {
			return nil, 0, model.Errorf(model.ErrCorruptFormat, "fvecs: record %d: dimension %d, expected %d", rec, d, dim)
		}

		row, err := readRow(r, dim, buf, len(rows) == 0)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, 0, model.Errorf(model.ErrCorruptFormat, "fvecs: record %d: truncated body", rec)
			}
			return nil, 0, err
		}
		rows = append(rows, row)
	}
}

// readRow decodes one record body of dim floats through buf. The first row
// grows with the data read; later rows are allocated whole, since the first
// one proved the dimension is backed by real bytes.
func readRow(r io.Reader, dim int, buf []byte, first bool) ([]float32, error) {
	var row []float32
	if first {
		row = make([]float32, 0, len(buf)/4)
	} else {
		row = make([]float32, 0, dim)
	}
	for len(row) < dim {
		n := min(4*(dim-len(row)), len(buf))
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return nil, err
		}
		for j := 0; j < n; j += 4 {
			row = append(row, math.Float32frombits(binary.NativeEndian.Uint32(buf[j:])))
		}
	}
	return row, nil
}
