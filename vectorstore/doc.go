// Package vectorstore holds the raw vectors of a database.
//
// A [Store] is in exactly one of two modes:
//
//   - [ModeHeap]: an append-only, owned collection built with [Store.Add].
//   - [ModeMapped]: an immutable memory-mapped fvecs file opened with
//     [Store.Load]. A mapped store accepts no appends.
//
// Vectors are addressed by their 0-based position in insertion (or file)
// order. Every read copies out of the store; callers never receive a slice
// that aliases heap rows or mapped memory.
//
// # fvecs
//
// The on-disk format is a sequence of records, each an int32 dimension
// followed by that many float32 values, in host-native byte order.
// [WriteFvecs] and [ReadFvecs] stream the format; [Store.Export] persists a
// heap store through a temporary file and rename.
//
// A Store is not safe for concurrent mutation. Concurrent reads are safe as
// long as no Add, Load, Import or Close runs at the same time.
package vectorstore
