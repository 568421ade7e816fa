// Package logger provides structured logging configuration for the
// application. It configures log/slog with JSON output by default so logs
// are machine-parseable; a text handler is available for local work.
package logger

import (
	"log/slog"
	"os"
)

// Setup initializes the global slog logger. The JSON handler adds source
// location so log entries point at the emitting line.
func Setup(level slog.Level, format string) {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ParseLevel converts a string log level to slog.Level.
// Valid values: "debug", "info", "warn", "error".
// Unrecognized values default to info level.
func ParseLevel(level string) slog.Level {
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
