// Package logging builds the process-wide structured logger. Every
// package receives a *slog.Logger from main and scopes it with
// component attributes.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sweeney/home-bridge/internal/config"
)

// New creates a logger from the logging configuration. Format "text"
// is for interactive runs; anything else produces JSON for log
// shippers. The service and version attributes appear on every record.
func New(cfg config.LoggingConfig, version string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "home-bridge"),
		slog.String("version", version),
	})

	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level. Unrecognised
// strings fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
