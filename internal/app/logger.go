package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog logger. LOG_FORMAT=json
// selects the JSON handler for log shipping; anything else stays
// human-readable text. Source locations are always attached.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
}
