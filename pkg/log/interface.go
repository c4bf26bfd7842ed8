// Package log provides the structured logging used across tabml.
//
// Two backends are wired: a zerolog-backed Logger that the pipeline, service and
// CLI log through, and a log/slog setup (SetupLogger) whose handler lifts
// cockroachdb/errors stack traces into their own attribute.
//
//	logger := log.GetLoggerWithName("pipeline").With(
//	    log.AlgorithmKey, "random_forest",
//	)
//	logger.Info("training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1000,
//	)
package log

import (
	"context"
)

// Logger is a structured logger with key/value fields.
//
// Error treats a leading error argument specially: it is logged under the
// "error" key together with its stack trace when one is available.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level, numerically compatible with slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
