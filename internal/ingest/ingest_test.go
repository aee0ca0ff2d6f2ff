package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/beedev/dbnotebook/internal/index"
	"github.com/beedev/dbnotebook/internal/log"
)

type fakeStore struct {
	src    index.Source
	leaves []index.TreeNode
	calls  int
	err    error
}

func (f *fakeStore) IngestSource(_ context.Context, src index.Source, leaves []index.TreeNode) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.src = src
	f.leaves = leaves
	return nil
}

type fakeEmbedder struct {
	dims int
	err  error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (index.Embedding, error) {
	embs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return index.Embedding{}, err
	}
	return embs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([]index.Embedding, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]index.Embedding, len(texts))
	for i := range texts {
		out[i] = index.Embedding{Vector: make([]float32, f.dims), Model: "test-model", Provider: "test"}
	}
	return out, nil
}

type fakeValidator struct{ err error }

func (f *fakeValidator) ValidateWrite(_ context.Context, _ index.Embedding) error {
	return f.err
}

func chunks(texts ...string) []index.Chunk {
	out := make([]index.Chunk, len(texts))
	for i, t := range texts {
		out[i] = index.Chunk{ID: uuid.NewString(), Text: t}
	}
	return out
}

func TestIngest_CreatesSourceWithLeaves(t *testing.T) {
	store := &fakeStore{}
	ing := New(store, &fakeEmbedder{dims: 4}, &fakeValidator{}, log.NewNop())

	notebookID := uuid.New()
	cs := chunks("alpha", "beta", "gamma")
	src, err := ing.Ingest(context.Background(), notebookID, "notes.md", cs)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if src.NotebookID != notebookID {
		t.Errorf("notebook = %s, want %s", src.NotebookID, notebookID)
	}
	if src.RaptorStatus != index.BuildPending || src.TransformationStatus != index.TransformPending {
		t.Errorf("statuses = %s/%s, want pending/pending", src.RaptorStatus, src.TransformationStatus)
	}
	if !src.Active {
		t.Error("new source must be active")
	}

	if len(store.leaves) != 3 {
		t.Fatalf("leaves = %d, want 3", len(store.leaves))
	}
	rootID := store.leaves[0].TreeRootID
	for i, leaf := range store.leaves {
		if leaf.TreeLevel != 0 {
			t.Errorf("leaf %d level = %d, want 0", i, leaf.TreeLevel)
		}
		if leaf.Position != i {
			t.Errorf("leaf %d position = %d", i, leaf.Position)
		}
		if leaf.TreeRootID != rootID {
			t.Errorf("leaf %d has root %s, want shared %s", i, leaf.TreeRootID, rootID)
		}
		if leaf.Content != cs[i].Text {
			t.Errorf("leaf %d content = %q, want %q", i, leaf.Content, cs[i].Text)
		}
		if leaf.Metadata["chunk_id"] != cs[i].ID {
			t.Errorf("leaf %d chunk_id = %q, want %q", i, leaf.Metadata["chunk_id"], cs[i].ID)
		}
	}
}

func TestIngest_ValidationFailureWritesNothing(t *testing.T) {
	store := &fakeStore{}
	ing := New(store, &fakeEmbedder{dims: 4}, &fakeValidator{err: index.ErrConfigMismatch}, log.NewNop())

	_, err := ing.Ingest(context.Background(), uuid.New(), "notes.md", chunks("alpha"))
	if !errors.Is(err, index.ErrConfigMismatch) {
		t.Fatalf("Ingest() error = %v, want ErrConfigMismatch", err)
	}
	if store.calls != 0 {
		t.Errorf("store called %d times after rejected embedding, want 0", store.calls)
	}
}

func TestIngest_EmbedderFailure(t *testing.T) {
	store := &fakeStore{}
	ing := New(store, &fakeEmbedder{err: index.ErrEmbeddingUnavailable}, &fakeValidator{}, log.NewNop())

	_, err := ing.Ingest(context.Background(), uuid.New(), "notes.md", chunks("alpha"))
	if !errors.Is(err, index.ErrEmbeddingUnavailable) {
		t.Fatalf("Ingest() error = %v, want ErrEmbeddingUnavailable", err)
	}
	if store.calls != 0 {
		t.Errorf("store called %d times, want 0", store.calls)
	}
}

func TestIngest_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		chunks []index.Chunk
	}{
		{"empty title", "", chunks("alpha")},
		{"no chunks", "notes.md", nil},
		{"empty chunk text", "notes.md", []index.Chunk{{ID: "c1", Text: ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			ing := New(store, &fakeEmbedder{dims: 4}, &fakeValidator{}, log.NewNop())

			if _, err := ing.Ingest(context.Background(), uuid.New(), tt.title, tt.chunks); err == nil {
				t.Fatal("Ingest() error = nil, want validation error")
			}
			if store.calls != 0 {
				t.Errorf("store called %d times, want 0", store.calls)
			}
		})
	}
}
