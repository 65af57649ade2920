// Package logging builds the zerolog logger every binary injects into its
// components.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hive-corporation/phishwatch/internal/config"
)

// New returns a logger writing to stderr. Unknown levels fall back to info.
func New(cfg config.LoggingConfig, service string) zerolog.Logger {
	return NewWithWriter(os.Stderr, cfg, service)
}

func NewWithWriter(w io.Writer, cfg config.LoggingConfig, service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
