// Package observability wires log/slog for Akari: one process-wide handler
// chosen at startup, plus a helper that binds a turn's trace ID onto a
// logger so every line from that turn correlates.
package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/mkoriyama/Akari/common/trace"
)

// Setup installs the default slog handler. level accepts debug, info, warn,
// warning, or error (anything else means info); format "json" selects the
// JSON handler, anything else the text handler. Logs go to stderr so that
// stdout stays clean for the startup banner.
func Setup(level, format string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// WithTrace returns a logger that tags every line with the trace ID carried
// by ctx. Without a stamped ID it returns the default logger unchanged.
func WithTrace(ctx context.Context) *slog.Logger {
	if id := trace.ID(ctx); id != "" {
		return slog.With("trace_id", id)
	}
	return slog.Default()
}
