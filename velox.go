package velox

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/velox/distance"
	"github.com/hupe1980/velox/internal/simd"
	"github.com/hupe1980/velox/ivf"
	"github.com/hupe1980/velox/model"
	"github.com/hupe1980/velox/search"
	"github.com/hupe1980/velox/vectorstore"
)

// NotFound is the id returned by Search when no candidate was inspected.
const NotFound = model.NotFound

// Metric selects the distance function of a build or search.
type Metric = distance.Metric

const (
	// MetricL2 is the squared Euclidean distance.
	MetricL2 = distance.MetricL2
	// MetricCosine is the cosine distance.
	MetricCosine = distance.MetricCosine
)

// ParseMetric parses "eucl"/"l2" or "cos"/"cosine".
func ParseMetric(name string) (Metric, error) { return distance.ParseMetric(name) }

// Result is the nearest vector found for a query.
type Result = search.Result

// DB pairs a vector store with an optional IVF index.
//
// Mutations (Add, LoadVectors, ImportVectors, BuildIndex, LoadIndex, Close)
// are serialized against each other and against reads. Reads (Vector, the
// Search family, SaveIndex, ExportVectors) may run concurrently.
//
// Any mutation of the vector set drops the index, and search falls back to a
// flat scan until BuildIndex or LoadIndex is called again.
type DB struct {
	mu     sync.RWMutex
	store  *vectorstore.Store
	index  *ivf.Index // nil when no index is active
	rng    *rand.Rand
	closed bool

	simd    atomic.Bool
	logger  *Logger
	metrics MetricsCollector
}

// New returns an empty DB.
func New(optFns ...Option) *DB {
	o := applyOptions(optFns)
	db := &DB{
		store:   vectorstore.New(),
		logger:  o.logger,
		metrics: o.metricsCollector,
	}
	if o.seed != nil {
		db.rng = rand.New(rand.NewSource(*o.seed)) //nolint:gosec
	}
	db.simd.Store(o.simd)
	return db
}

// Add appends a copy of vec and returns its id. The first vector fixes the
// dimension.
func (db *DB) Add(vec []float32) (int, error) {
	start := time.Now()
	db.mu.Lock()
	defer db.mu.Unlock()

	id, err := db.add(vec)
	db.metrics.RecordAdd(time.Since(start), err)
	db.logger.LogAdd(context.Background(), id, len(vec), err)
	return id, err
}

func (db *DB) add(vec []float32) (int, error) {
	if db.closed {
		return NotFound, ErrClosed
	}
	if err := db.store.Add(vec); err != nil {
		return NotFound, err
	}
	db.invalidate("add")
	return db.store.Len() - 1, nil
}

// LoadVectors memory-maps the fvecs file at path, replacing all vectors.
// The store becomes read-only. On failure the previous vectors are kept.
func (db *DB) LoadVectors(path string) error {
	start := time.Now()
	db.mu.Lock()
	defer db.mu.Unlock()

	err := db.loadVectors(path)
	db.metrics.RecordLoad(db.store.Len(), time.Since(start), err)
	db.logger.LogLoad(context.Background(), "vectors", path, db.store.Len(), err)
	return err
}

func (db *DB) loadVectors(path string) error {
	if db.closed {
		return ErrClosed
	}
	if err := db.store.Load(path); err != nil {
		return err
	}
	db.invalidate("load vectors")
	return nil
}

// ImportVectors appends the records of the fvecs file at path to an in-memory
// store. Unlike LoadVectors the store stays writable.
func (db *DB) ImportVectors(path string) (int, error) {
	start := time.Now()
	db.mu.Lock()
	defer db.mu.Unlock()

	n, err := db.importVectors(path)
	db.metrics.RecordLoad(n, time.Since(start), err)
	db.logger.LogLoad(context.Background(), "import", path, n, err)
	return n, err
}

func (db *DB) importVectors(path string) (int, error) {
	if db.closed {
		return 0, ErrClosed
	}
	n, err := db.store.ImportFile(path)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		db.invalidate("import vectors")
	}
	return n, nil
}

// invalidate drops the index after the vector set changed. Caller holds mu.
func (db *DB) invalidate(reason string) {
	if db.index == nil {
		return
	}
	db.logger.LogInvalidate(context.Background(), reason, db.index.NumClusters())
	db.index = nil
}

// DropIndex discards the active index. Search falls back to a flat scan.
func (db *DB) DropIndex() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.invalidate("drop")
}

// Vector returns a copy of vector i.
func (db *DB) Vector(i int) ([]float32, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	return db.store.Get(i)
}

// BuildIndex clusters the current vectors into numClusters lists using
// exactly maxIter k-means epochs, replacing any previous index. On failure the
// previous index is kept.
func (db *DB) BuildIndex(numClusters, maxIter int, metric Metric) error {
	start := time.Now()
	db.mu.Lock()
	defer db.mu.Unlock()

	err := db.buildIndex(numClusters, maxIter, metric)
	d := time.Since(start)
	db.metrics.RecordBuild(numClusters, d, err)
	db.logger.LogBuild(context.Background(), numClusters, maxIter, metric.Name(), d, err)
	return err
}

func (db *DB) buildIndex(numClusters, maxIter int, metric Metric) error {
	if db.closed {
		return ErrClosed
	}
	ix, err := ivf.Build(db.store, ivf.Config{
		NumClusters: numClusters,
		MaxIter:     maxIter,
		Metric:      metric,
		SIMD:        db.simd.Load(),
		Rand:        db.rng,
		OnEpoch: func(epoch, changed int) {
			db.logger.LogEpoch(context.Background(), epoch, changed)
		},
	})
	if err != nil {
		return err
	}
	db.index = ix
	return nil
}

// SetSIMD toggles the 8-lane distance kernels for subsequent builds and searches.
func (db *DB) SetSIMD(enabled bool) { db.simd.Store(enabled) }

// SIMD reports whether the 8-lane kernels are requested.
func (db *DB) SIMD() bool { return db.simd.Load() }

// Search returns the id of the vector nearest to query, or NotFound.
// With an index it probes the nearest cluster only; without one it scans
// every vector.
func (db *DB) Search(query []float32, metric Metric) (int, error) {
	res, err := db.SearchResult(query, metric)
	if err != nil {
		return NotFound, err
	}
	return res.ID, nil
}

// SearchResult is Search returning the distance as well.
func (db *DB) SearchResult(query []float32, metric Metric) (Result, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.searchLocked(context.Background(), query, metric)
}

// SearchBatch answers queries concurrently. Results are in query order.
// The first error cancels the remaining queries.
func (db *DB) SearchBatch(ctx context.Context, queries [][]float32, metric Metric) ([]Result, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	results := make([]Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := db.searchLocked(gctx, q, metric)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// searchLocked runs one query. Caller holds mu for reading.
func (db *DB) searchLocked(ctx context.Context, query []float32, metric Metric) (Result, error) {
	start := time.Now()
	mode := SearchFlat
	if db.index != nil {
		mode = SearchIVF
	}

	res, err := db.runSearch(query, metric)
	db.metrics.RecordSearch(mode, time.Since(start), err)
	db.logger.LogSearch(ctx, string(mode), res.ID, err)
	return res, err
}

func (db *DB) runSearch(query []float32, metric Metric) (Result, error) {
	if db.closed {
		return Result{ID: NotFound}, ErrClosed
	}
	dist, err := distance.Provider(metric, db.simd.Load())
	if err != nil {
		return Result{ID: NotFound}, err
	}
	if db.index != nil {
		return search.IVF(db.store, db.index, query, dist)
	}
	return search.Flat(db.store, query, dist)
}

// SaveIndex writes the active index to path atomically.
func (db *DB) SaveIndex(path string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	err := db.saveIndex(path)
	db.logger.LogSave(context.Background(), "index", path, err)
	return err
}

func (db *DB) saveIndex(path string) error {
	if db.closed {
		return ErrClosed
	}
	if db.index == nil {
		return model.Errorf(model.ErrInvalidOperation, "no index to save")
	}
	return db.index.Save(path)
}

// LoadIndex reads the index file at path. Its dimension must match the
// vectors. Ids are trusted: use VerifyIndex to check them against the store.
// On failure the previous index is kept.
func (db *DB) LoadIndex(path string) error {
	start := time.Now()
	db.mu.Lock()
	defer db.mu.Unlock()

	n, err := db.loadIndex(path)
	db.metrics.RecordLoad(n, time.Since(start), err)
	db.logger.LogLoad(context.Background(), "index", path, n, err)
	return err
}

func (db *DB) loadIndex(path string) (int, error) {
	if db.closed {
		return 0, ErrClosed
	}
	ix, err := ivf.Open(path, db.store.Dim())
	if err != nil {
		return 0, err
	}
	db.index = ix
	return ix.NumClusters(), nil
}

// ExportVectors writes the in-memory vectors to path as fvecs.
// A memory-mapped store cannot be exported; its file already exists.
func (db *DB) ExportVectors(path string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	err := db.exportVectors(path)
	db.logger.LogSave(context.Background(), "vectors", path, err)
	return err
}

func (db *DB) exportVectors(path string) error {
	if db.closed {
		return ErrClosed
	}
	return db.store.Export(path)
}

// VerifyIndex checks every mapped record header and, if an index is active,
// that its lists partition the current vector ids.
func (db *DB) VerifyIndex() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	if err := db.store.VerifyHeaders(); err != nil {
		return err
	}
	if db.index == nil {
		return nil
	}
	return db.index.Validate(db.store.Len())
}

// Len returns the number of vectors.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.store.Len()
}

// Dim returns the vector dimension, or 0 when empty.
func (db *DB) Dim() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.store.Dim()
}

// Indexed reports whether an index is active.
func (db *DB) Indexed() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.index != nil
}

// Stats describes the state of a DB.
type Stats struct {
	Vectors int        `json:"vectors"`
	Dim     int        `json:"dim"`
	Mode    string     `json:"mode"`
	SIMD    bool       `json:"simd"`
	ISA     string     `json:"isa"`
	Indexed bool       `json:"indexed"`
	Index   *ivf.Stats `json:"index,omitempty"`
}

// Stats returns a snapshot of the DB state.
func (db *DB) Stats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s := Stats{
		Vectors: db.store.Len(),
		Dim:     db.store.Dim(),
		Mode:    db.store.Mode().String(),
		SIMD:    db.simd.Load() && simd.Enabled(),
		ISA:     simd.ActiveISA().String(),
		Indexed: db.index != nil,
	}
	if db.index != nil {
		is := db.index.Stats()
		s.Index = &is
	}
	return s
}

// Close releases the vector mapping, if any. It is idempotent.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.index = nil
	return db.store.Close()
}
