// Package search answers nearest-neighbor queries against a vector store.
//
// [Flat] scans every vector and is exact. [IVF] probes only the inverted list
// of the centroid nearest to the query, so it is approximate by construction.
// Both return the single nearest vector; ties resolve to the lowest id.
package search

import (
	"math"

	"github.com/hupe1980/velox/distance"
	"github.com/hupe1980/velox/internal/kmeans"
	"github.com/hupe1980/velox/ivf"
	"github.com/hupe1980/velox/model"
)

// NotFound is the id of a result that inspected no candidate.
const NotFound = model.NotFound

// Store is the read-only view of the vectors being searched.
type Store interface {
	Len() int
	Dim() int
	ReadInto(i int, dst []float32) error
}

// Result is the nearest vector found for a query.
type Result struct {
	ID       int     `json:"id"`
	Distance float32 `json:"distance"`
}

// Found reports whether the result names a vector.
func (r Result) Found() bool { return r.ID != NotFound }

func notFound() Result {
	return Result{ID: NotFound, Distance: float32(math.Inf(1))}
}

// Flat returns the vector in vs closest to query.
// The query length is checked only once the store has a dimension: an empty
// store has none, so any query yields NotFound without error.
func Flat(vs Store, query []float32, dist distance.Func) (Result, error) {
	if dim := vs.Dim(); dim > 0 {
		if err := checkDim(dim, query); err != nil {
			return notFound(), err
		}
	}
	n := vs.Len()
	if n == 0 {
		return notFound(), nil
	}

	buf := make([]float32, vs.Dim())
	best := notFound()
	for i := 0; i < n; i++ {
		if err := vs.ReadInto(i, buf); err != nil {
			return notFound(), err
		}
		if d := dist(query, buf); best.ID == NotFound || d < best.Distance {
			best = Result{ID: i, Distance: d}
		}
	}
	return best, nil
}

// IVF finds the centroid of ix nearest to query and returns the closest
// member of its inverted list. An index without clusters, or a nearest
// centroid with an empty list, yields NotFound without error.
func IVF(vs Store, ix *ivf.Index, query []float32, dist distance.Func) (Result, error) {
	if ix == nil || !ix.Built() {
		return notFound(), model.Errorf(model.ErrInvalidOperation, "search: index not built")
	}
	if vs.Len() == 0 {
		return notFound(), nil
	}
	if err := checkDim(vs.Dim(), query); err != nil {
		return notFound(), err
	}
	if err := checkDim(ix.Dim(), query); err != nil {
		return notFound(), err
	}
	if ix.NumClusters() == 0 {
		return notFound(), nil
	}

	c, _ := kmeans.Nearest(query, ix.Centroids(), ix.Dim(), dist)
	members, err := ix.List(c)
	if err != nil {
		return notFound(), err
	}

	buf := make([]float32, vs.Dim())
	best := notFound()
	for _, id := range members {
		if err := vs.ReadInto(id, buf); err != nil {
			return notFound(), err
		}
		if d := dist(query, buf); best.ID == NotFound || d < best.Distance {
			best = Result{ID: id, Distance: d}
		}
	}
	return best, nil
}

func checkDim(dim int, query []float32) error {
	if len(query) != dim {
		return &model.DimensionMismatchError{Expected: dim, Actual: len(query)}
	}
	return nil
}
