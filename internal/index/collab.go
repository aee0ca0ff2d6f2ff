package index

import "context"

// Embedding is one vector together with the model identity that produced it.
// The identity travels with the vector so the config guard can reject stale
// embedding calls still in flight after a model switch.
type Embedding struct {
	Vector   []float32
	Model    string
	Provider string
}

// Dimensions returns the vector's dimensionality.
func (e Embedding) Dimensions() int { return len(e.Vector) }

// Embedder turns text into vectors. Implementations fail with
// ErrEmbeddingUnavailable on upstream errors.
type Embedder interface {
	Embed(ctx context.Context, text string) (Embedding, error)

	// EmbedBatch embeds texts in order; the result has one embedding per
	// input text.
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)
}

// Summarizer abstracts a group of member texts into one summary of roughly
// targetWords length. Implementations fail with ErrSummarizationFailed.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string, targetWords int) (string, error)
}

// Transformer produces the flat document-level artifacts of the
// transformation pipeline from a source's full content. Separate from
// Summarizer because each output needs its own prompt shape, not just a
// different target length.
type Transformer interface {
	DenseSummary(ctx context.Context, content string) (string, error)
	KeyInsights(ctx context.Context, content string) ([]string, error)
	ReflectionQuestions(ctx context.Context, content string) ([]string, error)
}

// RerankCandidate is one retrieval candidate handed to the reranker.
type RerankCandidate struct {
	ID   string
	Text string
}

// RerankScore is the reranker's relevance score for one candidate.
type RerankScore struct {
	ID    string
	Score float32
}

// Reranker re-scores candidates against the raw query text. Best-effort:
// retrieval tolerates both a nil reranker and a failing one.
type Reranker interface {
	Score(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankScore, error)
}
