// Package vector provides embedding storage and similarity search over
// course content chunks.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
)

// Embedder computes embedding vectors for texts. The zero-value nil
// embedder is valid; ingestion then stores chunks without vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkSource persists chunks and reads them back with their embeddings.
// The sqlite repository satisfies this.
type ChunkSource interface {
	SaveChunks(ctx context.Context, chunks []domain.ContentChunk, embeddings [][]float32) error
	ChunksWithEmbeddings(ctx context.Context, courseID string) ([]domain.ContentChunk, [][]float32, error)
}

// Store indexes chunks for a course and answers similarity queries.
type Store struct {
	source   ChunkSource
	embedder Embedder
}

// NewStore creates a similarity store over a chunk source. embedder may
// be nil; Add then persists chunks without vectors and Search fails.
func NewStore(source ChunkSource, embedder Embedder) *Store {
	return &Store{source: source, embedder: embedder}
}

// Add embeds and persists the given chunks.
func (s *Store) Add(ctx context.Context, chunks []domain.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embeddings := make([][]float32, len(chunks))
	if s.embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		embeddings = vecs
	}

	if err := s.source.SaveChunks(ctx, chunks, embeddings); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}
	return nil
}

// Match is one similarity search hit.
type Match struct {
	Chunk domain.ContentChunk
	Score float64
}

// Search returns the k chunks most similar to the query text, by cosine
// similarity over stored embeddings.
func (s *Store) Search(ctx context.Context, courseID, query string, k int) ([]Match, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("search %q: no embedder configured", courseID)
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	chunks, embeddings, err := s.source.ChunksWithEmbeddings(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	matches := make([]Match, 0, len(chunks))
	for i, c := range chunks {
		if embeddings[i] == nil {
			continue
		}
		matches = append(matches, Match{Chunk: c, Score: Cosine(vecs[0], embeddings[i])})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Cosine computes cosine similarity between two vectors. Mismatched or
// zero-length vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
