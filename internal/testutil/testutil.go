// Package testutil provides shared testing utilities for the pensiv project.
//
// It contains reusable test infrastructure used across packages: a
// deterministic in-process embedder, a quiet logger, and a PostgreSQL
// test container with the schema applied.
package testutil

import (
	"io"
	"log/slog"
)

// DiscardLogger returns a logger that drops everything below warn and
// writes the rest to io.Discard. Use it to keep test output quiet.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
