// Package logger provides shared slog helpers used by every component so that
// scoped, structured logging looks the same across the whole service.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the process-wide *slog.Logger to the fx graph.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// Scope tags a logger with the package/component emitting the record.
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error attaches an error to a log record under a consistent key.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// NewLogger builds the process-wide logger from LOG_LEVEL and GO_ENV.
//
// LOG_LEVEL (case-insensitive): debug, info, warn|warning, error. Unset or
// unrecognized values default to info. GO_ENV=production switches to a JSON
// handler on stderr; any other value (including unset) uses a text handler.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
