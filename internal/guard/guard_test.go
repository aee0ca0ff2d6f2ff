package guard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/beedev/dbnotebook/internal/index"
	"github.com/beedev/dbnotebook/internal/log"
)

// mockConfigReader returns a fixed config or error.
type mockConfigReader struct {
	cfg       index.EmbeddingConfig
	err       error
	callCount int
}

func (m *mockConfigReader) CurrentEmbeddingConfig(ctx context.Context) (index.EmbeddingConfig, error) {
	m.callCount++
	return m.cfg, m.err
}

func makeVector(dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32(i) * 0.01
	}
	return v
}

func TestGuard_ValidateWrite_Dimensions(t *testing.T) {
	tests := []struct {
		name       string
		configDims int
		vectorDims int
		wantErr    bool
	}{
		{"matching 384", 384, 384, false},
		{"matching 768", 768, 768, false},
		{"matching 1536", 1536, 1536, false},
		{"vector smaller", 768, 384, true},
		{"vector larger", 384, 768, true},
		{"off by one", 768, 767, true},
		{"empty vector", 768, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &mockConfigReader{cfg: index.EmbeddingConfig{
				Model:      "text-embedding-004",
				Provider:   "gemini",
				Dimensions: tt.configDims,
			}}
			g := New(reader, log.NewNop())

			err := g.ValidateWrite(context.Background(), index.Embedding{
				Vector:   makeVector(tt.vectorDims),
				Model:    "text-embedding-004",
				Provider: "gemini",
			})

			if tt.wantErr {
				if !errors.Is(err, index.ErrConfigMismatch) {
					t.Fatalf("want ErrConfigMismatch, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGuard_ValidateWrite_ModelIdentity(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		provider string
		wantErr  bool
	}{
		{"exact match", "text-embedding-004", "gemini", false},
		{"wrong model", "text-embedding-003", "gemini", true},
		{"wrong provider", "text-embedding-004", "openai", true},
		{"both wrong", "nomic-embed-text", "ollama", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &mockConfigReader{cfg: index.EmbeddingConfig{
				Model:      "text-embedding-004",
				Provider:   "gemini",
				Dimensions: 768,
			}}
			g := New(reader, log.NewNop())

			err := g.ValidateWrite(context.Background(), index.Embedding{
				Vector:   makeVector(768),
				Model:    tt.model,
				Provider: tt.provider,
			})

			if tt.wantErr && !errors.Is(err, index.ErrConfigMismatch) {
				t.Fatalf("want ErrConfigMismatch, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// A config switch must be visible to the very next validation: the guard
// reads the authoritative row on every call instead of caching it.
func TestGuard_ValidateWrite_ConfigSwitch(t *testing.T) {
	reader := &mockConfigReader{cfg: index.EmbeddingConfig{
		Model: "model-a", Provider: "gemini", Dimensions: 384,
	}}
	g := New(reader, log.NewNop())
	ctx := context.Background()

	emb := index.Embedding{Vector: makeVector(384), Model: "model-a", Provider: "gemini"}
	if err := g.ValidateWrite(ctx, emb); err != nil {
		t.Fatalf("write under model-a should pass: %v", err)
	}

	// Operator switches to a 768-dim model. The stale 384-dim embedding
	// still in flight must now be rejected.
	reader.cfg = index.EmbeddingConfig{Model: "model-b", Provider: "gemini", Dimensions: 768}

	err := g.ValidateWrite(ctx, emb)
	if !errors.Is(err, index.ErrConfigMismatch) {
		t.Fatalf("stale write after config switch: want ErrConfigMismatch, got %v", err)
	}

	if reader.callCount != 2 {
		t.Errorf("config should be read per validation, got %d reads", reader.callCount)
	}
}

func TestGuard_ValidateWrite_ConfigLoadError(t *testing.T) {
	reader := &mockConfigReader{err: fmt.Errorf("connection refused")}
	g := New(reader, log.NewNop())

	err := g.ValidateWrite(context.Background(), index.Embedding{Vector: makeVector(768)})
	if err == nil {
		t.Fatal("expected error when config cannot be loaded")
	}
	if errors.Is(err, index.ErrConfigMismatch) {
		t.Error("config load failure must not be reported as a mismatch")
	}
}

func TestGuard_Current(t *testing.T) {
	want := index.EmbeddingConfig{Model: "m", Provider: "p", Dimensions: 42}
	g := New(&mockConfigReader{cfg: want}, log.NewNop())

	got, err := g.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got != want {
		t.Errorf("Current = %+v, want %+v", got, want)
	}
}
