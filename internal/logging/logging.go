// Package logging builds the slog logger shared by every freshset command.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler and minimum level.
type Options struct {
	Level  string // debug, info, warn, error; defaults to info.
	Format string // text or json; defaults to text.
}

// New creates a *slog.Logger writing to stderr and sets it as the default
// logger via slog.SetDefault.
func New(opts Options) *slog.Logger {
	logger := NewWithWriter(os.Stderr, opts)
	slog.SetDefault(logger)
	return logger
}

// NewWithWriter creates a logger writing to w without touching the default.
// Format "json" produces one JSON object per line; anything else produces
// human-readable key=value output.
func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
