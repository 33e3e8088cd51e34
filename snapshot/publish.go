package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/hupe1980/velox/blobstore"
	"github.com/hupe1980/velox/internal/fs"
	"github.com/hupe1980/velox/internal/hash"
	"github.com/hupe1980/velox/internal/resource"
	"github.com/hupe1980/velox/model"
	"github.com/hupe1980/velox/vectorstore"
	"golang.org/x/sync/errgroup"
)

// Files names the local files of a snapshot. Index is optional.
type Files struct {
	Vectors string
	Index   string
}

// Options configures Publish.
type Options struct {
	// Name of the snapshot. Defaults to a time-ordered "snap-<unixnano>".
	Name string
	// Compression applied to every blob.
	Compression Compression
	// Controller limits concurrent transfers and bandwidth. Nil means unlimited.
	Controller *resource.Controller
	// FileSystem used to read local files. Nil means the OS.
	FileSystem fs.FileSystem

	// Metadata recorded in the manifest. Dim and Count are derived from the
	// vectors file when zero.
	Dim      int
	Count    int
	Clusters int
	Metric   string

	now func() time.Time
}

func blobBase(kind string) string {
	if kind == KindIndex {
		return "index.ivf"
	}
	return "vectors.fvecs"
}

// Publish uploads files as a new snapshot and points CURRENT at it.
// Blobs are uploaded concurrently; the manifest and CURRENT are written
// only after every upload succeeded.
func Publish(ctx context.Context, store blobstore.Store, files Files, opts Options) (*Manifest, error) {
	if files.Vectors == "" {
		return nil, model.Errorf(model.ErrInvalidArgument, "snapshot needs a vectors file")
	}
	probe, err := compressor(io.Discard, opts.Compression)
	if err != nil {
		return nil, err
	}
	_ = probe.Close()
	now := time.Now
	if opts.now != nil {
		now = opts.now
	}
	created := now().UTC()

	name := opts.Name
	if name == "" {
		name = "snap-" + strconv.FormatInt(created.UnixNano(), 10)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	exists, err := blobstore.Exists(ctx, store, manifestBlob(name))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.Errorf(model.ErrInvalidOperation, "snapshot %s already exists", name)
	}

	if opts.Dim == 0 || opts.Count == 0 {
		dim, count, err := describeVectors(opts.FileSystem, files.Vectors)
		if err != nil {
			return nil, err
		}
		if opts.Dim == 0 {
			opts.Dim = dim
		}
		if opts.Count == 0 {
			opts.Count = count
		}
	}

	type job struct{ kind, path string }
	jobs := []job{{KindVectors, files.Vectors}}
	if files.Index != "" {
		jobs = append(jobs, job{KindIndex, files.Index})
	}

	infos := make([]FileInfo, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			info, err := upload(gctx, store, name, j.kind, j.path, opts)
			infos[i] = info
			return err
		})
	}
	if err := g.Wait(); err != nil {
		for _, info := range infos {
			if info.Blob != "" {
				_ = store.Delete(context.WithoutCancel(ctx), info.Blob)
			}
		}
		return nil, err
	}

	m := &Manifest{
		Version:   FormatVersion,
		Name:      name,
		CreatedAt: created,
		Dim:       opts.Dim,
		Count:     opts.Count,
		Clusters:  opts.Clusters,
		Metric:    opts.Metric,
		Files:     infos,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := blobstore.PutIfAbsent(ctx, store, manifestBlob(name), data); err != nil {
		if errors.Is(err, blobstore.ErrExists) {
			return nil, model.Errorf(model.ErrInvalidOperation, "snapshot %s already exists", name)
		}
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := store.Put(ctx, CurrentName, []byte(name)); err != nil {
		return nil, fmt.Errorf("commit %s: %w", CurrentName, err)
	}
	return m, nil
}

func upload(ctx context.Context, store blobstore.Store, name, kind, local string, opts Options) (info FileInfo, err error) {
	rc := opts.Controller
	if err := rc.AcquireTransfer(ctx); err != nil {
		return info, err
	}
	defer rc.ReleaseTransfer()

	fsys := opts.FileSystem
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(local, os.O_RDONLY, 0)
	if err != nil {
		return info, model.WrapIO("open", local, err)
	}
	defer f.Close()

	blobName := path.Join(name, blobBase(kind)+opts.Compression.Ext())
	w, err := store.Create(ctx, blobName)
	if err != nil {
		return info, fmt.Errorf("create %s: %w", blobName, err)
	}
	defer func() {
		if err != nil {
			_ = w.Abort(context.WithoutCancel(ctx))
		}
	}()

	stored := &countingWriter{w: resource.NewRateLimitedWriter(ctx, w, rc)}
	cw, err := compressor(stored, opts.Compression)
	if err != nil {
		return info, err
	}
	h := hash.NewCRC32C()
	n, err := io.Copy(io.MultiWriter(cw, h), f)
	if err != nil {
		return info, fmt.Errorf("upload %s: %w", blobName, err)
	}
	if err = cw.Close(); err != nil {
		return info, fmt.Errorf("upload %s: %w", blobName, err)
	}
	if err = w.Close(); err != nil {
		return info, fmt.Errorf("upload %s: %w", blobName, err)
	}

	return FileInfo{
		Kind:        kind,
		Blob:        blobName,
		Size:        n,
		StoredSize:  stored.n,
		Compression: opts.Compression,
		CRC32C:      h.Sum32(),
	}, nil
}

// describeVectors reads the first record header of an fvecs file and
// derives the row count from the file size.
func describeVectors(fsys fs.FileSystem, local string) (dim, count int, err error) {
	if fsys == nil {
		fsys = fs.Default
	}
	st, err := fsys.Stat(local)
	if err != nil {
		return 0, 0, model.WrapIO("stat", local, err)
	}
	if st.Size() == 0 {
		return 0, 0, nil
	}
	f, err := fsys.OpenFile(local, os.O_RDONLY, 0)
	if err != nil {
		return 0, 0, model.WrapIO("open", local, err)
	}
	defer f.Close()

	var hdr [vectorstore.HeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, 0, model.Errorf(model.ErrCorruptFormat, "%s: truncated header", local)
		}
		return 0, 0, model.WrapIO("read", local, err)
	}
	dim = int(int32(binary.NativeEndian.Uint32(hdr[:])))
	if dim <= 0 {
		return 0, 0, model.Errorf(model.ErrCorruptFormat, "%s: invalid dimension %d", local, dim)
	}
	row := vectorstore.RowSize(dim)
	if st.Size()%row != 0 {
		return 0, 0, model.Errorf(model.ErrCorruptFormat, "%s: size %d is not a multiple of %d", local, st.Size(), row)
	}
	return dim, int(st.Size() / row), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
