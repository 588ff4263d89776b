package config

import (
	"io"
	"log/slog"
)

// NewLogger returns the process logger: human readable text in dev, JSON
// everywhere else.
func NewLogger(env string, w io.Writer) *slog.Logger {
	if env == "dev" {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
