package s3

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/velox/blobstore"
)

// DefaultPartSize is the multipart part size. Snapshot blobs smaller than
// one part are sent with a single PutObject.
const DefaultPartSize = 8 << 20

func newUploader(client Client, partSize int64, concurrency int) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = max(partSize, manager.MinUploadPartSize)
		if concurrency > 0 {
			u.Concurrency = concurrency
		}
	})
}

// pipeUpload feeds a background manager.Uploader through an io.Pipe, so a
// snapshot blob is compressed and uploaded without being staged. The object
// exists only once Close returns nil. It is written by one goroutine.
type pipeUpload struct {
	client Client
	bucket string
	key    string

	pw     *io.PipeWriter
	cancel context.CancelFunc
	result chan uploadResult

	finished atomic.Bool
	once     sync.Once
	err      error
}

type uploadResult struct {
	uploadID string // set when a multipart upload failed part way
	err      error
}

func (s *Store) startUpload(ctx context.Context, key string) *pipeUpload {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(ctx)

	u := &pipeUpload{
		client: s.client,
		bucket: s.bucket,
		key:    key,
		pw:     pw,
		cancel: cancel,
		result: make(chan uploadResult, 1),
	}

	input := &s3.PutObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		Body:              pr,
		ContentType:       aws.String(blobstore.ContentType(key)),
		ChecksumAlgorithm: types.ChecksumAlgorithmCrc32c,
	}
	go func() {
		_, err := s.uploader.Upload(ctx, input)
		res := uploadResult{err: err}
		var mf manager.MultiUploadFailure
		if errors.As(err, &mf) {
			res.uploadID = mf.UploadID()
		}
		// Unblocks a writer stuck on a failed upload.
		_ = pr.CloseWithError(err)
		u.result <- res
	}()
	return u
}

func (u *pipeUpload) Write(p []byte) (int, error) {
	if u.finished.Load() {
		return 0, blobstore.ErrAborted
	}
	return u.pw.Write(p)
}

// Close ends the stream and waits for the upload.
func (u *pipeUpload) Close() error {
	u.once.Do(func() {
		u.finished.Store(true)
		defer u.cancel()
		_ = u.pw.Close()
		u.err = (<-u.result).err
	})
	return u.err
}

// Abort cancels the upload. Parts a failed multipart upload left behind are
// removed with AbortMultipartUpload.
func (u *pipeUpload) Abort(ctx context.Context) error {
	var cleanup error
	u.once.Do(func() {
		u.finished.Store(true)
		u.err = blobstore.ErrAborted
		_ = u.pw.CloseWithError(blobstore.ErrAborted)
		u.cancel()

		res := <-u.result
		if res.uploadID == "" {
			return
		}
		_, cleanup = u.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(u.bucket),
			Key:      aws.String(u.key),
			UploadId: aws.String(res.uploadID),
		})
	})
	return cleanup
}
