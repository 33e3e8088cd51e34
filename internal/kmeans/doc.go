// Package kmeans implements Lloyd's k-means clustering for IVF index builds.
//
// Training always runs exactly the requested number of epochs. Assignment
// uses a strict less-than comparison so that equidistant centroids resolve to
// the lowest index, and a cluster that loses all members keeps its previous
// centroid. With a seeded *rand.Rand the result is fully deterministic.
package kmeans
