// Package genai adapts Genkit models to the index collaborator interfaces:
// embedding, group summarization, and study artifact generation.
package genai

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/beedev/dbnotebook/internal/index"
)

// Embedder bridges a Genkit ai.Embedder to index.Embedder, stamping every
// vector with the model identity the guard validates against. A rate
// limiter keeps batch ingestion under provider quotas.
type Embedder struct {
	embedder ai.Embedder
	model    string
	provider string
	limiter  *rate.Limiter
}

// NewEmbedder creates an Embedder. rps <= 0 disables rate limiting.
func NewEmbedder(embedder ai.Embedder, model, provider string, rps float64) *Embedder {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Embedder{
		embedder: embedder,
		model:    model,
		provider: provider,
		limiter:  limiter,
	}
}

// Embed produces one embedding. Provider failures wrap
// index.ErrEmbeddingUnavailable so callers can distinguish an outage from a
// config mismatch.
func (e *Embedder) Embed(ctx context.Context, text string) (index.Embedding, error) {
	embs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return index.Embedding{}, err
	}
	return embs[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]index.Embedding, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for embed rate limit: %w", err)
	}

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", index.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			index.ErrEmbeddingUnavailable, len(resp.Embeddings), len(texts))
	}

	out := make([]index.Embedding, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty vector at position %d", index.ErrEmbeddingUnavailable, i)
		}
		out[i] = index.Embedding{
			Vector:   emb.Embedding,
			Model:    e.model,
			Provider: e.provider,
		}
	}
	return out, nil
}
