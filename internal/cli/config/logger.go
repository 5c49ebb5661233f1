package config

import (
	"io"
	"log/slog"
	"strings"
)

// LogLevel is debug with verbose, warn with quiet and info otherwise.
func (c *Config) LogLevel() slog.Level {
	switch {
	case c.Verbose:
		return slog.LevelDebug
	case c.Quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates the command logger writing to w.
//
// Format "json" produces one JSON object per record; anything else produces
// slog's text format.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
