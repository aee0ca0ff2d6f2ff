// Package guard enforces the embedding consistency invariant: every vector
// written to or queried against the index must originate from the currently
// authoritative embedding configuration.
//
// The guard never repairs a mismatch. On a model switch the operator is
// responsible for re-embedding and rebuilding affected sources; the guard's
// only job is to make silent mixing impossible.
package guard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/beedev/dbnotebook/internal/index"
)

// ConfigReader loads the authoritative embedding configuration.
// Satisfied by *postgres.Store.
type ConfigReader interface {
	CurrentEmbeddingConfig(ctx context.Context) (index.EmbeddingConfig, error)
}

// Guard validates vector writes against the authoritative configuration.
// It reads the configuration fresh on every call - a config switch must be
// visible to the very next operation, so nothing is cached.
//
// Guard is safe for concurrent use.
type Guard struct {
	configs ConfigReader
	logger  *slog.Logger
}

// New creates a Guard. A nil logger falls back to slog.Default.
func New(configs ConfigReader, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{configs: configs, logger: logger}
}

// Current returns the authoritative embedding configuration.
func (g *Guard) Current(ctx context.Context) (index.EmbeddingConfig, error) {
	cfg, err := g.configs.CurrentEmbeddingConfig(ctx)
	if err != nil {
		return index.EmbeddingConfig{}, fmt.Errorf("loading authoritative embedding config: %w", err)
	}
	return cfg, nil
}

// ValidateWrite rejects an embedding whose dimensionality or declared model
// identity differs from the authoritative configuration. A model identity
// mismatch signals a stale embedding call that was in flight across a config
// switch. Errors wrap index.ErrConfigMismatch and are never swallowed.
func (g *Guard) ValidateWrite(ctx context.Context, emb index.Embedding) error {
	cfg, err := g.Current(ctx)
	if err != nil {
		return err
	}

	if emb.Dimensions() != cfg.Dimensions {
		g.logger.Error("rejected vector with mismatched dimensionality",
			"got", emb.Dimensions(), "want", cfg.Dimensions,
			"model", cfg.Model, "provider", cfg.Provider)
		return fmt.Errorf("%w: vector has %d dimensions, authoritative config %s/%s expects %d",
			index.ErrConfigMismatch, emb.Dimensions(), cfg.Provider, cfg.Model, cfg.Dimensions)
	}

	if emb.Model != cfg.Model || emb.Provider != cfg.Provider {
		g.logger.Error("rejected vector from stale embedding model",
			"got_model", emb.Model, "got_provider", emb.Provider,
			"want_model", cfg.Model, "want_provider", cfg.Provider)
		return fmt.Errorf("%w: embedding declares %s/%s, authoritative config is %s/%s",
			index.ErrConfigMismatch, emb.Provider, emb.Model, cfg.Provider, cfg.Model)
	}

	return nil
}
