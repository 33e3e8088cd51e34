// Package ivf implements an inverted file (IVF) index over a vector store.
//
// An [Index] pairs k centroids with k inverted lists. [Build] clusters the
// store with k-means and files every vector id under its final centroid, so
// the lists partition [0, N) exactly. Ids are positions in the store that
// existed at build time; the index is not maintained incrementally.
//
// # File Format
//
// All fields are int32 or float32 in host-native byte order:
//
//	num_clusters | dim | centroids (num_clusters * dim floats) |
//	for each list: list_size | ids (list_size ints)
//
// [Index.Save] writes through a temporary file and rename. [Index.Load] parses
// into a fresh index and replaces the receiver only when the whole file is
// valid.
package ivf
