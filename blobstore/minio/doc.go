// Package minio provides a blobstore.Store implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible services (Ceph, Garage,
// SeaweedFS) without pulling in the AWS SDK at the call site.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "velox/")
//	_, err = snapshot.Publish(ctx, store, snapshot.Files{Vectors: "base.fvecs"}, snapshot.Options{})
//
// Manifests and CURRENT go up in one request with a Content-MD5; vector and
// index blobs stream as multipart uploads.
package minio
