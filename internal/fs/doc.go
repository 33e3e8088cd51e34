// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read/write/sync capabilities
//   - [FileSystem]: filesystem operations (open, remove, rename, stat)
//
// [WriteAtomic] is the single write path for every persisted artifact
// (fvecs exports, index files, local blobs): data lands in a sibling
// temporary file, is fsynced, and only then renamed over the target.
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility for fault injection
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("index.ivf", fs.Fault{FailAfterBytes: 16})
//	err := ivf.SaveFS(ffs, path, idx) // target file is untouched
//
// This package intentionally does NOT include context.Context parameters.
// Local filesystem calls are not interruptible at the syscall level; slow
// remote transfers go through the blobstore package instead.
package fs
