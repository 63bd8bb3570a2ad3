package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// New builds the application's structured logger. The returned handle is
// passed into each component at construction; components do not reach for
// process-wide state.
func New(logLevelStr string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
		slog.Warn("Invalid LOG_LEVEL specified, defaulting to INFO", "configuredLevel", logLevelStr)
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				// Format time as RFC3339 for better machine readability
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	// JSON handler for structured logs. For local development, TextHandler
	// might be more readable.
	l := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	l.Info("Logger initialized", "level", level.String())
	return l
}
