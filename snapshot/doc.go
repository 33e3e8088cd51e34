// Package snapshot publishes a vector file and its IVF index to a
// blobstore.Store and fetches them back.
//
// A snapshot is a directory-like group of blobs:
//
//	<name>/vectors.fvecs[.lz4|.zst]
//	<name>/index.ivf[.lz4|.zst]      (optional)
//	<name>/MANIFEST.json
//	CURRENT                          (holds <name>)
//
// Blobs are streamed through an optional lz4 or zstd compressor and
// checksummed with CRC32C over the uncompressed bytes. MANIFEST.json is
// written after every blob, and CURRENT is committed last, so readers
// never observe a partial snapshot.
//
//	m, err := snapshot.Publish(ctx, store, snapshot.Files{
//	    Vectors: "base.fvecs",
//	    Index:   "base.ivf",
//	}, snapshot.Options{Compression: snapshot.CompressionZstd})
//
//	f, err := snapshot.Fetch(ctx, store, "/var/lib/velox", snapshot.FetchOptions{})
//	err = db.LoadVectors(f.VectorsPath)
//	err = db.LoadIndex(f.IndexPath)
package snapshot
