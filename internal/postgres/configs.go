package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/beedev/dbnotebook/internal/index"
)

// CurrentEmbeddingConfig returns the authoritative embedding configuration:
// the most recently created row. Returns index.ErrNotFound when no
// configuration has ever been set.
func (s *Store) CurrentEmbeddingConfig(ctx context.Context) (index.EmbeddingConfig, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, model, provider, dimensions, created_at, updated_at
		FROM embedding_configs
		ORDER BY created_at DESC, id DESC
		LIMIT 1`)

	var cfg index.EmbeddingConfig
	err := row.Scan(&cfg.ID, &cfg.Model, &cfg.Provider, &cfg.Dimensions, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return index.EmbeddingConfig{}, fmt.Errorf("no embedding config set: %w", index.ErrNotFound)
	}
	if err != nil {
		return index.EmbeddingConfig{}, fmt.Errorf("loading embedding config: %w", err)
	}
	return cfg, nil
}

// SetEmbeddingConfig makes a new embedding model identity authoritative by
// inserting a superseding row. Existing vectors are not migrated - after a
// switch the operator must re-embed and rebuild affected sources.
func (s *Store) SetEmbeddingConfig(ctx context.Context, model, provider string, dimensions int) (index.EmbeddingConfig, error) {
	if model == "" || provider == "" {
		return index.EmbeddingConfig{}, fmt.Errorf("model and provider must not be empty")
	}
	if dimensions <= 0 {
		return index.EmbeddingConfig{}, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO embedding_configs (model, provider, dimensions)
		VALUES ($1, $2, $3)
		RETURNING id, model, provider, dimensions, created_at, updated_at`,
		model, provider, dimensions)

	var cfg index.EmbeddingConfig
	err := row.Scan(&cfg.ID, &cfg.Model, &cfg.Provider, &cfg.Dimensions, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return index.EmbeddingConfig{}, fmt.Errorf("setting embedding config: %w", err)
	}

	s.logger.Info("embedding config superseded",
		"model", cfg.Model, "provider", cfg.Provider, "dimensions", cfg.Dimensions)
	return cfg, nil
}
