// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability builds the structured logger and Prometheus metrics
// shared by the search, enrichment, store and HTTP layers.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litmine/pkg/types"
)

// NewLogger creates a zerolog logger writing to w (stderr when nil).
// Format "console" selects human-readable output; anything else is JSON.
func NewLogger(cfg types.LoggingConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().Timestamp().Str("service", "litmine").
		Logger()
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// WithSearchContext adds search fields to a logger.
func WithSearchContext(logger zerolog.Logger, keyword, projectID string) zerolog.Logger {
	ctx := logger.With().Str("keyword", keyword)
	if projectID != "" {
		ctx = ctx.Str("project_id", projectID)
	}
	return ctx.Logger()
}
