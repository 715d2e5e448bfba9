package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Format follows LOG_FORMAT; both
// handlers record source locations so enforcement denials are traceable
// to the stage that produced them.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "univia"))
}
