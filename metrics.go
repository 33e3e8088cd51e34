package velox

import (
	"sync/atomic"
	"time"
)

// SearchMode identifies the search strategy used for a query.
type SearchMode string

const (
	// SearchFlat is the exact linear scan used when no index is present.
	SearchFlat SearchMode = "flat"
	// SearchIVF is the two-stage inverted file lookup.
	SearchIVF SearchMode = "ivf"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    searchHistogram *prometheus.HistogramVec
//	}
//
//	func (p *PrometheusCollector) RecordSearch(mode velox.SearchMode, d time.Duration, err error) {
//	    p.searchHistogram.WithLabelValues(string(mode)).Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordAdd is called after each vector append.
	RecordAdd(duration time.Duration, err error)

	// RecordLoad is called after loading vectors or an index.
	// count is the number of vectors or clusters loaded.
	RecordLoad(count int, duration time.Duration, err error)

	// RecordBuild is called after each index build.
	RecordBuild(clusters int, duration time.Duration, err error)

	// RecordSearch is called after each single query.
	RecordSearch(mode SearchMode, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)                 {}
func (NoopMetricsCollector) RecordLoad(int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordSearch(SearchMode, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddErrors        atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTotalNanos  atomic.Int64
	FlatSearchCount  atomic.Int64
	IVFSearchCount   atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(_ time.Duration, err error) {
	b.AddCount.Add(1)
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ int, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_ int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(mode SearchMode, duration time.Duration, err error) {
	if mode == SearchIVF {
		b.IVFSearchCount.Add(1)
	} else {
		b.FlatSearchCount.Add(1)
	}
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:        b.AddCount.Load(),
		AddErrors:       b.AddErrors.Load(),
		LoadCount:       b.LoadCount.Load(),
		LoadErrors:      b.LoadErrors.Load(),
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		BuildAvgNanos:   avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		FlatSearchCount: b.FlatSearchCount.Load(),
		IVFSearchCount:  b.IVFSearchCount.Load(),
		SearchErrors:    b.SearchErrors.Load(),
		SearchAvgNanos:  avg(b.SearchTotalNanos.Load(), b.FlatSearchCount.Load()+b.IVFSearchCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount        int64 `json:"add_count"`
	AddErrors       int64 `json:"add_errors"`
	LoadCount       int64 `json:"load_count"`
	LoadErrors      int64 `json:"load_errors"`
	BuildCount      int64 `json:"build_count"`
	BuildErrors     int64 `json:"build_errors"`
	BuildAvgNanos   int64 `json:"build_avg_nanos"`
	FlatSearchCount int64 `json:"flat_search_count"`
	IVFSearchCount  int64 `json:"ivf_search_count"`
	SearchErrors    int64 `json:"search_errors"`
	SearchAvgNanos  int64 `json:"search_avg_nanos"`
}
