package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hupe1980/velox/blobstore"
	"github.com/hupe1980/velox/internal/fs"
	"github.com/hupe1980/velox/internal/hash"
	"github.com/hupe1980/velox/internal/resource"
	"github.com/hupe1980/velox/model"
	"golang.org/x/sync/errgroup"
)

// FetchOptions configures Fetch.
type FetchOptions struct {
	// Name of the snapshot to fetch. Empty resolves CURRENT.
	Name string
	// Controller limits concurrent transfers and bandwidth. Nil means unlimited.
	Controller *resource.Controller
	// FileSystem used to write local files. Nil means the OS.
	FileSystem fs.FileSystem
}

// Fetched lists the local files written by Fetch.
type Fetched struct {
	Manifest    *Manifest
	VectorsPath string
	// IndexPath is empty when the snapshot has no index.
	IndexPath string
}

// Fetch downloads a snapshot into dir. Every file is decompressed, checked
// against its manifest size and CRC32C, and renamed into place only when it
// verifies; a failed fetch leaves existing files in dir untouched.
func Fetch(ctx context.Context, store blobstore.Store, dir string, opts FetchOptions) (*Fetched, error) {
	m, err := Load(ctx, store, opts.Name)
	if err != nil {
		return nil, err
	}
	if _, ok := m.File(KindVectors); !ok {
		return nil, model.Errorf(model.ErrCorruptFormat, "snapshot %s has no vectors file", m.Name)
	}

	fsys := opts.FileSystem
	if fsys == nil {
		fsys = fs.Default
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, model.WrapIO("mkdir", dir, err)
	}

	out := &Fetched{Manifest: m}
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range m.Files {
		f := f
		dst := filepath.Join(dir, localName(m.Name, f))
		switch f.Kind {
		case KindVectors:
			out.VectorsPath = dst
		case KindIndex:
			out.IndexPath = dst
		default:
			continue
		}
		g.Go(func() error {
			return download(gctx, store, f, dst, fsys, opts.Controller)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// localName maps a blob to "<snapshot>-<base>" with the codec suffix removed.
func localName(snapshot string, f FileInfo) string {
	base := strings.TrimSuffix(filepath.Base(filepath.FromSlash(f.Blob)), f.Compression.Ext())
	return snapshot + "-" + base
}

func download(ctx context.Context, store blobstore.Store, f FileInfo, dst string, fsys fs.FileSystem, rc *resource.Controller) error {
	if err := rc.AcquireTransfer(ctx); err != nil {
		return err
	}
	defer rc.ReleaseTransfer()

	b, err := store.Open(ctx, f.Blob)
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: missing blob %s", ErrNoSnapshot, f.Blob)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Blob, err)
	}
	defer b.Close()

	if b.Size() != f.StoredSize {
		return fmt.Errorf("%w: %s is %d bytes, manifest says %d", ErrChecksumMismatch, f.Blob, b.Size(), f.StoredSize)
	}

	var src io.Reader = strings.NewReader("")
	if b.Size() > 0 {
		body, err := b.ReadRange(ctx, 0, b.Size())
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Blob, err)
		}
		defer body.Close()
		src = body
	}
	tr := &trackingReader{r: resource.NewRateLimitedReader(ctx, src, rc)}

	err = fs.WriteAtomic(fsys, dst, func(w io.Writer) error {
		dec, err := decompressor(tr, f.Compression)
		if err != nil {
			return err
		}
		defer dec.Close()

		h := hash.NewCRC32C()
		n, err := io.Copy(io.MultiWriter(w, h), dec)
		if err != nil {
			if tr.err != nil {
				return fmt.Errorf("read %s: %w", f.Blob, tr.err)
			}
			return fmt.Errorf("%w: %s: %v", ErrChecksumMismatch, f.Blob, err)
		}
		if n != f.Size {
			return fmt.Errorf("%w: %s decoded to %d bytes, manifest says %d", ErrChecksumMismatch, f.Blob, n, f.Size)
		}
		if sum := h.Sum32(); sum != f.CRC32C {
			return fmt.Errorf("%w: %s crc32c %08x, manifest says %08x", ErrChecksumMismatch, f.Blob, sum, f.CRC32C)
		}
		return nil
	})
	if err != nil && !errors.Is(err, model.ErrCorruptFormat) && tr.err == nil {
		return model.WrapIO("write", dst, err)
	}
	return err
}

// trackingReader remembers the first non-EOF error of the source so that
// transport failures are not reported as corrupt data.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
