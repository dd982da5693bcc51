package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pensiv/pensiv/internal/config"
	"github.com/pensiv/pensiv/internal/database"
	"github.com/pensiv/pensiv/internal/log"
	"github.com/pensiv/pensiv/internal/observability"
	"github.com/pensiv/pensiv/internal/reasoning"
	"github.com/pensiv/pensiv/internal/tools"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
//
// Storage follows availability-first policy: an unreachable primary is
// logged and the application starts on the file mirror alone rather than
// refusing to boot.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup := provideDBPool(ctx, cfg, logger)
	a.DBPool = pool
	a.dbCleanup = dbCleanup

	g, embedder, err := provideEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	engine, err := provideEngine(cfg, pool, embedder, logger)
	if err != nil {
		return nil, err
	}
	a.Engine = engine

	rt, err := tools.NewReasoning(engine, logger)
	if err != nil {
		return nil, fmt.Errorf("creating reasoning tools: %w", err)
	}
	a.Reasoning = rt

	if g != nil {
		registered, err := tools.RegisterReasoning(g, rt)
		if err != nil {
			return nil, fmt.Errorf("registering reasoning tools: %w", err)
		}
		a.Tools = registered
		logger.Info("tools registered at construction", "count", len(registered))
	}

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before anything that
// starts spans.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: observability.DefaultServiceName,
	}, logger)
	if err != nil {
		logger.Warn("setting up tracing", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool migrates and connects the primary store. Failures degrade
// to file-only operation instead of aborting startup.
func provideDBPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, func()) {
	if !cfg.PostgresEnabled {
		logger.Info("primary store disabled, running on file mirror only")
		return nil, nil
	}

	if err := database.Migrate(cfg.PostgresURL()); err != nil {
		logger.Warn("running migrations failed, falling back to file mirror",
			"error", err)
		return nil, nil
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		logger.Warn("connecting to primary store failed, falling back to file mirror",
			"error", err)
		return nil, nil
	}

	return pool, pool.Close
}

// provideEmbedder initializes Genkit and looks up the configured embedder.
// With provider "none" both return values are nil and deduplication falls
// back to lexical similarity.
func provideEmbedder(ctx context.Context, cfg *config.Config) (*genkit.Genkit, reasoning.Embedder, error) {
	if cfg.EmbedderProvider == config.EmbedderNone {
		return nil, nil, nil
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, nil, fmt.Errorf("initializing genkit with %s provider", cfg.EmbedderProvider)
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, nil, fmt.Errorf("embedder %q not found for provider %q",
			cfg.EmbedderModel, cfg.EmbedderProvider)
	}

	return g, embedder, nil
}

// provideEngine assembles the two-tier store, deduplicator, and engine.
func provideEngine(cfg *config.Config, pool *pgxpool.Pool, embedder reasoning.Embedder, logger *slog.Logger) (*reasoning.Engine, error) {
	mirror, err := reasoning.NewFileStore(cfg.MirrorDir, logger)
	if err != nil {
		return nil, fmt.Errorf("creating file mirror: %w", err)
	}

	var primary reasoning.DocumentStore
	if pool != nil {
		ps, err := reasoning.NewPostgresStore(pool, logger)
		if err != nil {
			return nil, fmt.Errorf("creating primary store: %w", err)
		}
		primary = ps
	}

	store, err := reasoning.NewStore(primary, mirror, logger)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	dedup := reasoning.NewDeduplicator(embedder, cfg.SimilarityThreshold, logger)

	engine, err := reasoning.NewEngine(store, dedup, reasoning.Config{
		MaxDepth:    cfg.MaxDepth,
		TokenBudget: cfg.TokenBudget,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	return engine, nil
}
