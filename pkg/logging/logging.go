// Package logging configures structured logging for log/slog.
//
// Usage:
//
//	logging.Setup()                                    // colored text, level from LOG_LEVEL
//	logging.SetupWithLevel(slog.LevelDebug)            // explicit level override
//	logging.Configure(os.Stderr, "json", "warn")       // format and level from config
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures colored logging at the level specified by LOG_LEVEL env var
// (default: INFO).
func Setup() {
	SetupWithLevel(ParseLevel(os.Getenv("LOG_LEVEL")))
}

// SetupWithLevel configures colored logging at the given level.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, "text", level)))
}

// Configure installs the default logger writing to w in the given format
// ("text" or "json") at the named level.
func Configure(w io.Writer, format, level string) {
	slog.SetDefault(slog.New(NewHandler(w, format, ParseLevel(level))))
}

// NewHandler builds a tint handler for "text" and a JSON handler for "json".
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	})
}

// ParseLevel maps debug, warn and error to their slog levels; anything else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
