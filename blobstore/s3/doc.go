// Package s3 provides Amazon S3 implementations of blobstore.Store.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := awss3.NewFromConfig(cfg)
//	store := s3.NewStore(client, "my-bucket", "velox/")
//
// Concurrent publishers can serialize CURRENT through DynamoDB. The commit
// store refuses to point CURRENT at a snapshot without a manifest and keeps
// every commit as history:
//
//	commits := s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), "velox-commits", "s3://my-bucket/velox")
//
// Vector and index blobs stream as multipart uploads with CRC32C checksums.
// Manifests are created with If-None-Match, so two publishers cannot claim
// the same snapshot name.
package s3
