package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/velox/blobstore"
	"github.com/minio/minio-go/v7"
)

// DefaultPartSize is the part size of streamed snapshot uploads.
const DefaultPartSize = 16 << 20

// Store implements blobstore.Store for MinIO and other S3-compatible
// services.
type Store struct {
	client   *minio.Client
	bucket   string
	prefix   string
	partSize uint64
}

var _ blobstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPartSize sets the part size of streamed uploads in bytes.
func WithPartSize(n uint64) Option {
	return func(s *Store) {
		if n > 0 {
			s.partSize = n
		}
	}
}

// NewStore returns a store for the objects under rootPrefix in bucket.
func NewStore(client *minio.Client, bucket, rootPrefix string, opts ...Option) *Store {
	s := &Store{
		client:   client,
		bucket:   bucket,
		prefix:   rootPrefix,
		partSize: DefaultPartSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// name is the inverse of key.
func (s *Store) name(key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
}

// putOptions tags each object with its content type. Small blobs carry an
// MD5 so a torn manifest or CURRENT write is rejected by the server.
func (s *Store) putOptions(name string, small bool) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{ContentType: blobstore.ContentType(name)}
	if small {
		opts.SendContentMd5 = true
		opts.DisableMultipart = true
	} else {
		opts.PartSize = s.partSize
	}
	return opts
}

// Open stats the object and returns a ranged reader.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapErr(err)
	}
	return &object{client: s.client, bucket: s.bucket, key: key, size: info.Size}, nil
}

// Put writes a small blob in one request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), s.putOptions(name, true))
	return err
}

// Create streams a blob of unknown size. The object appears when Close
// returns nil.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(ctx)
	w := &streamWriter{pw: pw, cancel: cancel, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1, s.putOptions(name, false))
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// Delete removes a blob. Missing blobs are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err = mapErr(err); errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	return err
}

// List returns the sorted names under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if name := s.name(obj.Key); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// mapErr turns missing-object responses into blobstore.ErrNotFound.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return blobstore.ErrNotFound
	}
	return err
}

type object struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= o.size {
		return nil, io.EOF
	}
	var opts minio.GetObjectOptions
	if err := opts.SetRange(off, min(off+length, o.size)-1); err != nil {
		return nil, err
	}
	return o.client.GetObject(ctx, o.bucket, o.key, opts)
}

// streamWriter pipes writes into a background PutObject. minio-go removes
// an incomplete multipart upload when the request fails.
type streamWriter struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan error

	once sync.Once
	err  error
	shut bool
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if w.shut {
		return 0, blobstore.ErrAborted
	}
	return w.pw.Write(p)
}

func (w *streamWriter) Close() error {
	w.once.Do(func() {
		w.shut = true
		defer w.cancel()
		_ = w.pw.Close()
		w.err = <-w.done
	})
	return w.err
}

func (w *streamWriter) Abort(context.Context) error {
	w.once.Do(func() {
		w.shut = true
		w.err = blobstore.ErrAborted
		_ = w.pw.CloseWithError(blobstore.ErrAborted)
		w.cancel()
		<-w.done
	})
	return nil
}
