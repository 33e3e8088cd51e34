package velox

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with velox-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogLoad logs a vector or index load.
func (l *Logger) LogLoad(ctx context.Context, kind, path string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"kind", kind,
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"kind", kind,
			"path", path,
			"count", count,
		)
	}
}

// LogAdd logs a vector append.
func (l *Logger) LogAdd(ctx context.Context, id, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"id", id,
			"dimension", dimension,
		)
	}
}

// LogBuild logs an index build.
func (l *Logger) LogBuild(ctx context.Context, clusters, iterations int, metric string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"clusters", clusters,
			"iterations", iterations,
			"metric", metric,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index build completed",
			"clusters", clusters,
			"iterations", iterations,
			"metric", metric,
			"duration", duration,
		)
	}
}

// LogEpoch logs k-means progress.
func (l *Logger) LogEpoch(ctx context.Context, epoch, changed int) {
	l.DebugContext(ctx, "kmeans epoch",
		"epoch", epoch,
		"changed", changed,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, mode string, id int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"mode", mode,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"mode", mode,
			"id", id,
		)
	}
}

// LogSave logs an index save or vector export.
func (l *Logger) LogSave(ctx context.Context, kind, path string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"kind", kind,
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "saved",
			"kind", kind,
			"path", path,
		)
	}
}

// LogInvalidate logs that a mutation dropped the index.
func (l *Logger) LogInvalidate(ctx context.Context, reason string, clusters int) {
	l.WarnContext(ctx, "index invalidated; search falls back to flat scan until rebuilt",
		"reason", reason,
		"clusters", clusters,
	)
}
