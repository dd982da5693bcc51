// Package app wires configuration, storage, and surfaces into a running
// application.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pensiv/pensiv/internal/config"
	"github.com/pensiv/pensiv/internal/reasoning"
	"github.com/pensiv/pensiv/internal/tools"
)

// App holds the initialized application components.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Genkit is nil when no embedder provider is configured; the engine
	// then runs with lexical deduplication and no Genkit tool surface.
	Genkit *genkit.Genkit

	Engine    *reasoning.Engine
	Reasoning *tools.Reasoning
	Tools     []ai.Tool

	// DBPool is nil when the primary store is disabled or was unreachable
	// at startup; persistence then runs on the file mirror alone.
	DBPool *pgxpool.Pool

	otelCleanup func()
	dbCleanup   func()
}

// Close releases application resources in reverse construction order.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}
