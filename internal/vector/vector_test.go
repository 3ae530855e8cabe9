package vector

import (
	"context"
	"testing"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

type fakeSource struct {
	chunks     []domain.ContentChunk
	embeddings [][]float32
}

func (f *fakeSource) SaveChunks(_ context.Context, chunks []domain.ContentChunk, embeddings [][]float32) error {
	f.chunks = append(f.chunks, chunks...)
	f.embeddings = append(f.embeddings, embeddings...)
	return nil
}

func (f *fakeSource) ChunksWithEmbeddings(_ context.Context, _ string) ([]domain.ContentChunk, [][]float32, error) {
	return f.chunks, f.embeddings, nil
}

type axisEmbedder struct{}

// Maps known words onto axes so similarity is predictable.
func (axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		switch t {
		case "cats":
			out[i] = []float32{1, 0}
		case "dogs":
			out[i] = []float32{0.9, 0.1}
		default:
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

func TestStore_AddAndSearch(t *testing.T) {
	src := &fakeSource{}
	store := NewStore(src, axisEmbedder{})
	ctx := context.Background()

	chunks := []domain.ContentChunk{
		{ID: "c1", CourseID: "course", Content: "cats"},
		{ID: "c2", CourseID: "course", Content: "dogs"},
		{ID: "c3", CourseID: "course", Content: "weather"},
	}
	if err := store.Add(ctx, chunks); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(src.embeddings) != 3 || src.embeddings[0] == nil {
		t.Fatalf("embeddings not persisted: %v", src.embeddings)
	}

	matches, err := store.Search(ctx, "course", "cats", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].Chunk.ID != "c1" || matches[1].Chunk.ID != "c2" {
		t.Errorf("order = %s, %s", matches[0].Chunk.ID, matches[1].Chunk.ID)
	}
}

func TestStore_SearchWithoutEmbedder(t *testing.T) {
	store := NewStore(&fakeSource{}, nil)
	if _, err := store.Search(context.Background(), "course", "q", 1); err == nil {
		t.Fatal("expected error without embedder")
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"mismatched", []float32{1}, []float32{1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); got != tt.want {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}
