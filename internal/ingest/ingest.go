// Package ingest registers a chunked document as a source with its level-0
// leaf nodes, ready for the build and transform pipelines to pick up.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/beedev/dbnotebook/internal/index"
)

// Store is the slice of the postgres store the ingestor depends on.
type Store interface {
	IngestSource(ctx context.Context, src index.Source, leaves []index.TreeNode) error
}

// WriteValidator checks leaf embeddings against the authoritative config.
// Satisfied by *guard.Guard.
type WriteValidator interface {
	ValidateWrite(ctx context.Context, emb index.Embedding) error
}

// Ingestor embeds chunks and persists them as a new source.
type Ingestor struct {
	store    Store
	embedder index.Embedder
	guard    WriteValidator
	logger   *slog.Logger
}

// New creates an Ingestor. A nil logger falls back to slog.Default.
func New(store Store, embedder index.Embedder, guard WriteValidator, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: store, embedder: embedder, guard: guard, logger: logger}
}

// Ingest embeds the chunks in order and creates the source with its leaves
// in one transaction. Every embedding is validated before anything is
// written; one mismatch rejects the whole document.
func (i *Ingestor) Ingest(ctx context.Context, notebookID uuid.UUID, title string, chunks []index.Chunk) (index.Source, error) {
	if title == "" {
		return index.Source{}, fmt.Errorf("title must not be empty")
	}
	if len(chunks) == 0 {
		return index.Source{}, fmt.Errorf("document %q has no chunks", title)
	}

	texts := make([]string, len(chunks))
	for idx, c := range chunks {
		if c.Text == "" {
			return index.Source{}, fmt.Errorf("chunk %d of %q is empty", idx, title)
		}
		texts[idx] = c.Text
	}

	embeddings, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return index.Source{}, fmt.Errorf("embedding %q: %w", title, err)
	}
	if len(embeddings) != len(chunks) {
		return index.Source{}, fmt.Errorf("embedding %q: got %d vectors for %d chunks", title, len(embeddings), len(chunks))
	}
	for idx, emb := range embeddings {
		if err := i.guard.ValidateWrite(ctx, emb); err != nil {
			return index.Source{}, fmt.Errorf("chunk %d of %q: %w", idx, title, err)
		}
	}

	now := time.Now().UTC()
	src := index.Source{
		ID:                   uuid.New(),
		NotebookID:           notebookID,
		Title:                title,
		Active:               true,
		RaptorStatus:         index.BuildPending,
		TransformationStatus: index.TransformPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	rootID := uuid.New()
	leaves := make([]index.TreeNode, len(chunks))
	for idx, c := range chunks {
		leaves[idx] = index.TreeNode{
			ID:         uuid.New(),
			SourceID:   src.ID,
			TreeLevel:  0,
			TreeRootID: rootID,
			Position:   idx,
			Content:    c.Text,
			Embedding:  embeddings[idx].Vector,
			Metadata:   map[string]string{"chunk_id": c.ID},
			CreatedAt:  now,
		}
	}

	if err := i.store.IngestSource(ctx, src, leaves); err != nil {
		return index.Source{}, fmt.Errorf("persisting %q: %w", title, err)
	}

	i.logger.Info("source ingested",
		"source_id", src.ID, "notebook_id", notebookID, "title", title, "chunks", len(chunks))
	return src, nil
}
