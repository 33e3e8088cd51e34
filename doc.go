// Package velox provides an embeddable IVF vector search engine for Go.
//
// Velox stores fixed-dimension float32 vectors and answers nearest-neighbor
// queries either exactly (flat scan) or approximately through an inverted
// file (IVF) index built with k-means. Vectors and the index persist in
// simple binary formats, and a vector file can be served zero-copy from a
// memory mapping.
//
// # Quick Start
//
//	db := velox.New(velox.WithLogLevel(slog.LevelInfo), velox.WithSeed(42))
//	defer db.Close()
//
//	for _, v := range vectors {
//	    if _, err := db.Add(v); err != nil { ... }
//	}
//
//	id, err := db.Search(query, velox.MetricL2)   // exact flat scan
//
//	err = db.BuildIndex(16, 25, velox.MetricL2)   // 16 clusters, 25 epochs
//	id, err = db.Search(query, velox.MetricL2)    // probes one cluster
//
// # Persistence
//
//	db.ExportVectors("vectors.fvecs")  // fvecs: int32 dim + dim float32 per record
//	db.SaveIndex("index.ivf")
//
//	db2 := velox.New()
//	db2.LoadVectors("vectors.fvecs")   // memory-mapped, read-only
//	db2.LoadIndex("index.ivf")
//
// Files use host-native byte order and are not portable across endianness.
// Saves go through a temporary file and rename; failed loads leave the DB
// unchanged.
//
// # Index Lifecycle
//
// The index references vectors by position. Adding or loading vectors drops
// the index (logged at warn level) and search falls back to a flat scan until
// the index is rebuilt. There is no incremental maintenance.
//
// # Errors
//
// All errors match one of [ErrIO], [ErrCorruptFormat], [ErrDimensionMismatch],
// [ErrInvalidOperation], [ErrIndexOutOfRange] or [ErrInvalidArgument] with
// errors.Is.
//
// # SIMD
//
// Distance kernels run in 8 independent float32 lanes when enabled (the
// default) and agree with the scalar kernels within 1e-4 relative error.
// [DB.SetSIMD] toggles them per DB; VELOX_SIMD=generic disables them globally.
//
// # Remote Snapshots
//
// The snapshot package publishes a vectors file and its index to a
// blobstore.Store (local, S3, MinIO) and fetches them back for LoadVectors
// and LoadIndex. The server package exposes a DB over HTTP.
package velox
