package ivf

import (
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/velox/distance"
	"github.com/hupe1980/velox/internal/kmeans"
	"github.com/hupe1980/velox/model"
)

// Source is the read-only view of the vectors being indexed.
type Source = kmeans.Source

// Config controls an index build.
type Config struct {
	NumClusters int
	MaxIter     int
	Metric      distance.Metric
	// SIMD selects the 8-lane distance kernels when the host supports them.
	SIMD bool
	// Rand seeds the initial centroid selection. Defaults to a time-seeded source.
	Rand *rand.Rand
	// OnEpoch receives k-means progress.
	OnEpoch func(epoch, changed int)
}

// Index is a set of centroids with one inverted list of vector ids each.
type Index struct {
	dim       int
	centroids []float32 // numClusters * dim, row-major
	lists     [][]int
	built     bool
}

// New returns an empty, unbuilt index.
func New() *Index {
	return &Index{}
}

// Build clusters src and groups vector ids by their final centroid.
// Within a list ids appear in increasing order.
func Build(src Source, cfg Config) (*Index, error) {
	dist, err := distance.Provider(cfg.Metric, cfg.SIMD)
	if err != nil {
		return nil, err
	}

	res, err := kmeans.Train(src, cfg.NumClusters, cfg.MaxIter, dist, kmeans.Options{
		Rand:    cfg.Rand,
		OnEpoch: cfg.OnEpoch,
	})
	if err != nil {
		return nil, err
	}

	lists := make([][]int, res.K)
	for id, c := range res.Assignments {
		lists[c] = append(lists[c], id)
	}

	return &Index{
		dim:       res.Dim,
		centroids: res.Centroids,
		lists:     lists,
		built:     true,
	}, nil
}

// Built reports whether the index was built or loaded.
func (ix *Index) Built() bool { return ix.built }

// Dim returns the centroid dimension.
func (ix *Index) Dim() int { return ix.dim }

// NumClusters returns the number of centroids.
func (ix *Index) NumClusters() int { return len(ix.lists) }

// Centroids returns the row-major centroid matrix. The slice aliases the
// index and must not be modified.
func (ix *Index) Centroids() []float32 { return ix.centroids }

// Centroid returns a copy of centroid i.
func (ix *Index) Centroid(i int) ([]float32, error) {
	if i < 0 || i >= len(ix.lists) {
		return nil, &model.IndexOutOfRangeError{Index: i, Count: len(ix.lists)}
	}
	c := make([]float32, ix.dim)
	copy(c, ix.centroids[i*ix.dim:(i+1)*ix.dim])
	return c, nil
}

// List returns the ids filed under centroid i. The slice aliases the index
// and must not be modified.
func (ix *Index) List(i int) ([]int, error) {
	if i < 0 || i >= len(ix.lists) {
		return nil, &model.IndexOutOfRangeError{Index: i, Count: len(ix.lists)}
	}
	return ix.lists[i], nil
}

// Stats summarizes the inverted list sizes.
type Stats struct {
	NumClusters int     `json:"num_clusters"`
	Dim         int     `json:"dim"`
	Vectors     int     `json:"vectors"`
	EmptyLists  int     `json:"empty_lists"`
	MinList     int     `json:"min_list"`
	MaxList     int     `json:"max_list"`
	MeanList    float64 `json:"mean_list"`
}

// Stats returns list size statistics.
func (ix *Index) Stats() Stats {
	s := Stats{NumClusters: len(ix.lists), Dim: ix.dim}
	for i, l := range ix.lists {
		n := len(l)
		s.Vectors += n
		if n == 0 {
			s.EmptyLists++
		}
		if i == 0 || n < s.MinList {
			s.MinList = n
		}
		if n > s.MaxList {
			s.MaxList = n
		}
	}
	if s.NumClusters > 0 {
		s.MeanList = float64(s.Vectors) / float64(s.NumClusters)
	}
	return s
}

// Validate checks that the inverted lists partition [0, n): every id is in
// range and appears exactly once.
func (ix *Index) Validate(n int) error {
	if !ix.built {
		return model.Errorf(model.ErrInvalidOperation, "ivf: index not built")
	}
	seen := roaring.New()
	for c, l := range ix.lists {
		for _, id := range l {
			if id < 0 || id >= n {
				return model.Errorf(model.ErrCorruptFormat, "ivf: list %d holds id %d outside [0, %d)", c, id, n)
			}
			if !seen.CheckedAdd(uint32(id)) {
				return model.Errorf(model.ErrCorruptFormat, "ivf: id %d appears more than once (list %d)", id, c)
			}
		}
	}
	if card := seen.GetCardinality(); card != uint64(n) {
		return model.Errorf(model.ErrCorruptFormat, "ivf: lists cover %d of %d ids", card, n)
	}
	return nil
}
