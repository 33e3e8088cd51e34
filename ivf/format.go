package ivf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hupe1980/velox/internal/conv"
	"github.com/hupe1980/velox/internal/fs"
	"github.com/hupe1980/velox/model"
)

// idChunk bounds a single allocation while reading a list whose declared size
// has not been confirmed by the remaining data.
const idChunk = 1 << 16

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// WriteTo serializes the index. It implements io.WriterTo.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	if !ix.built {
		return 0, model.Errorf(model.ErrInvalidOperation, "ivf: no index to save")
	}
	cw := &countingWriter{w: w}

	k, err := conv.CountToInt32(len(ix.lists))
	if err != nil {
		return 0, model.Errorf(model.ErrInvalidArgument, "ivf: %v", err)
	}
	d, err := conv.CountToInt32(ix.dim)
	if err != nil {
		return 0, model.Errorf(model.ErrInvalidArgument, "ivf: %v", err)
	}

	var word [4]byte
	putInt32 := func(v int32) error {
		binary.NativeEndian.PutUint32(word[:], uint32(v))
		_, err := cw.Write(word[:])
		return err
	}

	if err := putInt32(k); err != nil {
		return cw.n, err
	}
	if err := putInt32(d); err != nil {
		return cw.n, err
	}

	buf := make([]byte, 4*len(ix.centroids))
	for i, v := range ix.centroids {
		binary.NativeEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	if _, err := cw.Write(buf); err != nil {
		return cw.n, err
	}

	for c, l := range ix.lists {
		size, err := conv.CountToInt32(len(l))
		if err != nil {
			return cw.n, model.Errorf(model.ErrInvalidArgument, "ivf: list %d: %v", c, err)
		}
		if err := putInt32(size); err != nil {
			return cw.n, err
		}
		buf = buf[:0]
		for _, id := range l {
			v, err := conv.IntToInt32(id)
			if err != nil {
				return cw.n, model.Errorf(model.ErrInvalidArgument, "ivf: list %d: %v", c, err)
			}
			buf = binary.NativeEndian.AppendUint32(buf, uint32(v))
		}
		if _, err := cw.Write(buf); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

// Save writes the index to path atomically.
func (ix *Index) Save(path string) error {
	return ix.SaveFS(fs.Default, path)
}

// SaveFS is Save on an explicit file system.
func (ix *Index) SaveFS(fsys fs.FileSystem, path string) error {
	if !ix.built {
		return model.Errorf(model.ErrInvalidOperation, "ivf: no index to save")
	}
	err := fs.WriteAtomic(fsys, path, func(w io.Writer) error {
		_, err := ix.WriteTo(w)
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidArgument) {
			return err
		}
		return model.WrapIO("save", path, err)
	}
	return nil
}

// Read parses an index whose dimension must equal expectedDim.
func Read(r io.Reader, expectedDim int) (*Index, error) {
	br := bufio.NewReaderSize(r, 1<<16)

	var word [4]byte
	readInt32 := func(what string) (int32, error) {
		if _, err := io.ReadFull(br, word[:]); err != nil {
			return 0, truncated(what, err)
		}
		return int32(binary.NativeEndian.Uint32(word[:])), nil
	}

	rawK, err := readInt32("header")
	if err != nil {
		return nil, err
	}
	rawDim, err := readInt32("header")
	if err != nil {
		return nil, err
	}
	if rawDim == 0 {
		return nil, model.Errorf(model.ErrCorruptFormat, "ivf: zero dimension")
	}
	k, err := conv.Int32ToCount(rawK)
	if err != nil {
		return nil, model.Errorf(model.ErrCorruptFormat, "ivf: cluster count: %v", err)
	}
	dim, err := conv.Int32ToCount(rawDim)
	if err != nil {
		return nil, model.Errorf(model.ErrCorruptFormat, "ivf: dimension: %v", err)
	}
	if dim != expectedDim {
		return nil, &model.DimensionMismatchError{Expected: expectedDim, Actual: dim}
	}

	ix := &Index{dim: dim, lists: make([][]int, 0, min(k, idChunk))}

	row := make([]byte, 4*dim)
	for c := 0; c < k; c++ {
		if _, err := io.ReadFull(br, row); err != nil {
			return nil, truncated("centroids", err)
		}
		for d := 0; d < dim; d++ {
			ix.centroids = append(ix.centroids, math.Float32frombits(binary.NativeEndian.Uint32(row[4*d:])))
		}
	}

	chunk := make([]byte, 4*idChunk)
	for c := 0; c < k; c++ {
		rawSize, err := readInt32("list header")
		if err != nil {
			return nil, err
		}
		size, err := conv.Int32ToCount(rawSize)
		if err != nil {
			return nil, model.Errorf(model.ErrCorruptFormat, "ivf: list %d size: %v", c, err)
		}
		list := make([]int, 0, min(size, idChunk))
		for remaining := size; remaining > 0; {
			n := min(remaining, idChunk)
			if _, err := io.ReadFull(br, chunk[:4*n]); err != nil {
				return nil, truncated("list", err)
			}
			for j := 0; j < n; j++ {
				list = append(list, int(int32(binary.NativeEndian.Uint32(chunk[4*j:]))))
			}
			remaining -= n
		}
		ix.lists = append(ix.lists, list)
	}

	ix.built = true
	return ix, nil
}

// Open reads the index file at path.
func Open(path string, expectedDim int) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, model.WrapIO("open", path, err)
	}
	defer f.Close()
	return Read(f, expectedDim)
}

// Load replaces the receiver with the index stored at path. On any error the
// receiver is left unchanged.
func (ix *Index) Load(path string, expectedDim int) error {
	staged, err := Open(path, expectedDim)
	if err != nil {
		return err
	}
	*ix = *staged
	return nil
}

func truncated(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return model.Errorf(model.ErrCorruptFormat, "ivf: truncated %s", what)
	}
	return fmt.Errorf("%w: ivf: read %s: %w", model.ErrIO, what, err)
}
