package velox

import (
	"log/slog"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	simd             bool
	seed             *int64
}

// Option configures a DB.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &velox.BasicMetricsCollector{}
//	db := velox.New(velox.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("IVF searches: %d, avg latency: %dns\n", stats.IVFSearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := velox.NewJSONLogger(slog.LevelInfo)
//	db := velox.New(velox.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithSIMD sets the initial state of the 8-lane distance kernels (default on).
// The flag can be toggled later with DB.SetSIMD.
func WithSIMD(enabled bool) Option {
	return func(o *options) {
		o.simd = enabled
	}
}

// WithSeed makes index builds deterministic by seeding the random centroid
// initialization. Without it every build is seeded from the clock.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		simd:             true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
