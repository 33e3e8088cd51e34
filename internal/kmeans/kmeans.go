package kmeans

import (
	"math/rand"
	"time"

	"github.com/hupe1980/velox/distance"
	"github.com/hupe1980/velox/model"
)

// Source is the read-only view of the vectors being clustered.
type Source interface {
	Len() int
	Dim() int
	ReadInto(i int, dst []float32) error
}

// Options tunes a training run.
type Options struct {
	// Rand drives the initial centroid selection. Defaults to a time-seeded source.
	Rand *rand.Rand
	// OnEpoch, if set, is called after each assignment pass with the number of
	// vectors whose cluster changed.
	OnEpoch func(epoch, changed int)
}

// Result holds trained centroids and the final assignment of every vector.
type Result struct {
	K           int
	Dim         int
	Centroids   []float32 // K * Dim, row-major
	Assignments []int     // len == source Len
}

// Centroid returns a view of centroid j.
func (r *Result) Centroid(j int) []float32 {
	return r.Centroids[j*r.Dim : (j+1)*r.Dim : (j+1)*r.Dim]
}

// Train clusters src into k centroids using exactly maxIter epochs.
func Train(src Source, k, maxIter int, dist distance.Func, opts Options) (*Result, error) {
	n := src.Len()
	if n == 0 {
		return nil, model.Errorf(model.ErrInvalidOperation, "kmeans: no vectors to cluster")
	}
	if k < 1 || k > n {
		return nil, model.Errorf(model.ErrInvalidArgument, "kmeans: k=%d must be in [1, %d]", k, n)
	}
	if maxIter < 1 {
		return nil, model.Errorf(model.ErrInvalidArgument, "kmeans: maxIter=%d must be positive", maxIter)
	}
	if dist == nil {
		return nil, model.Errorf(model.ErrInvalidArgument, "kmeans: nil distance function")
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}

	dim := src.Dim()
	res := &Result{
		K:           k,
		Dim:         dim,
		Centroids:   make([]float32, k*dim),
		Assignments: make([]int, n),
	}

	// Initialize centroids from a random permutation of the data points.
	perm := rng.Perm(n)
	for j := 0; j < k; j++ {
		if err := src.ReadInto(perm[j], res.Centroid(j)); err != nil {
			return nil, err
		}
	}
	for i := range res.Assignments {
		res.Assignments[i] = -1
	}

	vec := make([]float32, dim)
	sums := make([]float64, k*dim)
	counts := make([]int, k)

	for epoch := 0; epoch < maxIter; epoch++ {
		// Assignment step
		changed := 0
		for i := 0; i < n; i++ {
			if err := src.ReadInto(i, vec); err != nil {
				return nil, err
			}
			best, _ := Nearest(vec, res.Centroids, dim, dist)
			if res.Assignments[i] != best {
				res.Assignments[i] = best
				changed++
			}
		}
		if opts.OnEpoch != nil {
			opts.OnEpoch(epoch, changed)
		}

		// Update step
		clear(sums)
		clear(counts)
		for i := 0; i < n; i++ {
			if err := src.ReadInto(i, vec); err != nil {
				return nil, err
			}
			c := res.Assignments[i]
			row := sums[c*dim : (c+1)*dim]
			for d, v := range vec {
				row[d] += float64(v)
			}
			counts[c]++
		}
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				continue // empty cluster keeps its centroid
			}
			inv := 1 / float64(counts[j])
			center := res.Centroid(j)
			for d := range center {
				center[d] = float32(sums[j*dim+d] * inv)
			}
		}
	}

	return res, nil
}

// Nearest returns the index of the centroid closest to vec and its distance.
// Ties resolve to the lowest index. It returns model.NotFound when centroids
// is empty.
func Nearest(vec, centroids []float32, dim int, dist distance.Func) (int, float32) {
	if dim <= 0 || len(centroids) < dim {
		return model.NotFound, 0
	}
	k := len(centroids) / dim
	best := 0
	bestDist := dist(vec, centroids[:dim])
	for j := 1; j < k; j++ {
		if d := dist(vec, centroids[j*dim:(j+1)*dim]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}
