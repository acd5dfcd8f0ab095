// Package logger configures the process-wide slog logger and provides
// helpers for component- and run-scoped loggers.
package logger

import (
	"context"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the default slog logger with the given level and output
// format ("json" or "text").
func Setup(level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithRunID attaches a job run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextKey{}, runID)
}

// FromContext returns the default logger, annotated with the run id when
// one is present in the context.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if runID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("run_id", runID)
	}
	return logger
}

// WithComponent returns the default logger annotated with a component name.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
