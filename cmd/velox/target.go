package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/velox"
	"github.com/hupe1980/velox/blobstore"
	"github.com/hupe1980/velox/blobstore/minio"
	"github.com/hupe1980/velox/blobstore/s3"
)

// target is a parsed snapshot location.
type target struct {
	Scheme string // "file", "s3" or "minio"
	Bucket string
	Prefix string
	Path   string // local root for "file"
}

// parseTarget accepts file:///dir, a plain path, s3://bucket/prefix and
// minio://bucket/prefix.
func parseTarget(raw string) (target, error) {
	if raw == "" {
		return target{}, fmt.Errorf("%w: empty target", velox.ErrInvalidArgument)
	}
	if !strings.Contains(raw, "://") {
		return target{Scheme: "file", Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("%w: target %q: %v", velox.ErrInvalidArgument, raw, err)
	}

	switch u.Scheme {
	case "file":
		p := u.Path
		if u.Host != "" {
			p = u.Host + p
		}
		if p == "" {
			return target{}, fmt.Errorf("%w: target %q has no path", velox.ErrInvalidArgument, raw)
		}
		return target{Scheme: "file", Path: p}, nil
	case "s3", "minio":
		if u.Host == "" {
			return target{}, fmt.Errorf("%w: target %q has no bucket", velox.ErrInvalidArgument, raw)
		}
		return target{
			Scheme: u.Scheme,
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		}, nil
	default:
		return target{}, fmt.Errorf("%w: unsupported target scheme %q", velox.ErrInvalidArgument, u.Scheme)
	}
}

func (t target) String() string {
	if t.Scheme == "file" {
		return "file://" + t.Path
	}
	if t.Prefix == "" {
		return t.Scheme + "://" + t.Bucket
	}
	return t.Scheme + "://" + t.Bucket + "/" + t.Prefix
}

// openStore connects to the blob store behind t.
func openStore(ctx context.Context, t target, cfg Config) (blobstore.Store, error) {
	switch t.Scheme {
	case "file":
		return blobstore.NewLocalStore(t.Path), nil
	case "s3":
		return openS3(ctx, t, cfg.S3, cfg.Snapshot.PartSize)
	case "minio":
		return openMinio(t, cfg.Minio, cfg.Snapshot.PartSize)
	default:
		return nil, fmt.Errorf("%w: unsupported target scheme %q", velox.ErrInvalidArgument, t.Scheme)
	}
}

func openS3(ctx context.Context, t target, cfg S3Config, partSize int64) (blobstore.Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	store := s3.NewStore(client, t.Bucket, t.Prefix, s3.WithPartSize(partSize))
	if cfg.CommitTable == "" {
		return store, nil
	}
	return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.CommitTable, t.String()), nil
}

func openMinio(t target, cfg MinioConfig, partSize int64) (blobstore.Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return minio.NewStore(client, t.Bucket, t.Prefix, minio.WithPartSize(uint64(max(partSize, 0)))), nil
}
