// Package app wires configuration, storage, AI providers, and the pipeline
// components into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beedev/dbnotebook/db"
	"github.com/beedev/dbnotebook/internal/builder"
	"github.com/beedev/dbnotebook/internal/config"
	"github.com/beedev/dbnotebook/internal/genai"
	"github.com/beedev/dbnotebook/internal/guard"
	"github.com/beedev/dbnotebook/internal/index"
	"github.com/beedev/dbnotebook/internal/ingest"
	"github.com/beedev/dbnotebook/internal/postgres"
	"github.com/beedev/dbnotebook/internal/retrieval"
	"github.com/beedev/dbnotebook/internal/transform"
	"github.com/beedev/dbnotebook/internal/worker"
)

// App holds the wired application components.
type App struct {
	Config    *config.Config
	Store     *postgres.Store
	Guard     *guard.Guard
	Builder   *builder.Builder
	Retrieval *retrieval.Orchestrator
	Transform *transform.Pipeline
	Ingestor  *ingest.Ingestor
	Pool      *worker.Pool
	Logger    *slog.Logger

	dbPool *pgxpool.Pool
}

// Setup builds the full application. The caller owns Close.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbPool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		dbPool.Close()
		return nil, err
	}

	store := postgres.New(dbPool, logger)
	gd := guard.New(store, logger)

	embedder := genai.NewEmbedder(provideEmbedder(g, cfg),
		cfg.EmbedderModel, cfg.Provider, cfg.EmbedderRPS)
	summarizer := genai.NewSummarizer(g, cfg.ModelName)
	transformer := genai.NewTransformer(g, cfg.ModelName)

	bld := builder.New(store, embedder, summarizer, gd, builder.Config{
		TargetClusterSize:  cfg.TargetClusterSize,
		MinClusterSize:     cfg.MinClusterSize,
		MaxDepth:           cfg.MaxTreeDepth,
		MaxRetries:         cfg.BuildRetries,
		GroupParallelism:   cfg.GroupParallelism,
		SummaryTargetWords: cfg.SummaryTargetWords,
		Timeout:            time.Duration(cfg.BuildTimeoutSec) * time.Second,
	}, logger)

	// No dedicated rerank model is wired; retrieval serves similarity order.
	retr := retrieval.New(store, embedder, gd, nil, retrieval.Config{
		OverFetch: cfg.RetrievalOverFetch,
		DefaultK:  cfg.RetrievalK,
	}, logger)

	pipe := transform.New(store, transformer, transform.Config{}, logger)
	ing := ingest.New(store, embedder, gd, logger)

	pool := worker.New(store, bld, pipe, worker.Config{
		Workers:      cfg.Workers,
		PollInterval: time.Duration(cfg.PollIntervalSec) * time.Second,
	}, logger)

	return &App{
		Config:    cfg,
		Store:     store,
		Guard:     gd,
		Builder:   bld,
		Retrieval: retr,
		Transform: pipe,
		Ingestor:  ing,
		Pool:      pool,
		Logger:    logger,
		dbPool:    dbPool,
	}, nil
}

// EnsureEmbeddingConfig seeds the authoritative embedding config on first
// run so ingestion has something to validate against. An existing config is
// left untouched even when it differs from the local settings; switching
// models is an explicit operator action.
func (a *App) EnsureEmbeddingConfig(ctx context.Context) error {
	current, err := a.Store.CurrentEmbeddingConfig(ctx)
	if err == nil {
		if current.Model != a.Config.EmbedderModel {
			a.Logger.Warn("local embedder differs from authoritative config",
				"local", a.Config.EmbedderModel, "authoritative", current.Model)
		}
		return nil
	}
	if !errors.Is(err, index.ErrNotFound) {
		return err
	}

	_, err = a.Store.SetEmbeddingConfig(ctx, a.Config.EmbedderModel, a.Config.Provider, a.Config.EmbedderDims)
	return err
}

// Close releases held resources.
func (a *App) Close() {
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}

func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := postgres.NewPoolConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedder is keyed by server address (registered in provideGenkit)
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		// OpenAI auto-registers embedders in Init()
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
