package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/beedev/dbnotebook/internal/index"
)

// mockAIEmbedder implements ai.Embedder for testing
type mockAIEmbedder struct {
	embedErr    error
	returnEmpty bool
	dims        int
	callCount   int
	lastInputs  []string
}

func (m *mockAIEmbedder) Name() string {
	return "mock-embedder"
}

func (m *mockAIEmbedder) Register(r api.Registry) {
	// No-op for testing
}

func (m *mockAIEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	m.lastInputs = m.lastInputs[:0]
	for _, doc := range req.Input {
		if len(doc.Content) > 0 {
			m.lastInputs = append(m.lastInputs, doc.Content[0].Text)
		}
	}

	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{}, nil
	}

	resp := &ai.EmbedResponse{}
	for range req.Input {
		vec := make([]float32, m.dims)
		for i := range vec {
			vec[i] = float32(i)
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

func TestEmbed_StampsModelIdentity(t *testing.T) {
	mock := &mockAIEmbedder{dims: 4}
	e := NewEmbedder(mock, "text-embedding-004", "googleai", 0)

	emb, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if emb.Model != "text-embedding-004" || emb.Provider != "googleai" {
		t.Errorf("identity = %s/%s, want text-embedding-004/googleai", emb.Model, emb.Provider)
	}
	if emb.Dimensions() != 4 {
		t.Errorf("dimensions = %d, want 4", emb.Dimensions())
	}
	if len(mock.lastInputs) != 1 || mock.lastInputs[0] != "hello" {
		t.Errorf("inputs = %v, want [hello]", mock.lastInputs)
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	mock := &mockAIEmbedder{dims: 3}
	e := NewEmbedder(mock, "m", "p", 0)

	texts := []string{"alpha", "beta", "gamma"}
	embs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(embs) != 3 {
		t.Fatalf("embeddings = %d, want 3", len(embs))
	}
	if mock.callCount != 1 {
		t.Errorf("provider calls = %d, want 1 batched call", mock.callCount)
	}
	for i, want := range texts {
		if mock.lastInputs[i] != want {
			t.Errorf("input %d = %q, want %q", i, mock.lastInputs[i], want)
		}
	}
}

func TestEmbed_ProviderFailureWrapsUnavailable(t *testing.T) {
	mock := &mockAIEmbedder{embedErr: errors.New("quota exceeded")}
	e := NewEmbedder(mock, "m", "p", 0)

	_, err := e.Embed(context.Background(), "hello")
	if !errors.Is(err, index.ErrEmbeddingUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestEmbed_EmptyResponseIsError(t *testing.T) {
	mock := &mockAIEmbedder{returnEmpty: true}
	e := NewEmbedder(mock, "m", "p", 0)

	_, err := e.Embed(context.Background(), "hello")
	if !errors.Is(err, index.ErrEmbeddingUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestEmbedBatch_NoTexts(t *testing.T) {
	e := NewEmbedder(&mockAIEmbedder{dims: 4}, "m", "p", 0)
	if _, err := e.EmbedBatch(context.Background(), nil); err == nil {
		t.Fatal("EmbedBatch(nil) error = nil, want error")
	}
}
