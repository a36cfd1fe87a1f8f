// Package index is an in-memory exact cosine index over text chunks.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/selivandex/stock-qa-bot/pkg/embeddings"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// ErrMisaligned means the embedder returned vectors that do not match the chunks
var ErrMisaligned = errors.New("embedding vectors misaligned with chunks")

// Hit is one search result
type Hit struct {
	Chunk models.TextChunk
	Score float64
	Rank  int
}

// Index is immutable after Build and safe for concurrent Search
type Index struct {
	chunks  []models.TextChunk
	vectors [][]float32
	dim     int
}

// Build embeds every chunk and stores normalized vectors.
// An empty chunk list yields an empty index without calling the embedder.
func Build(ctx context.Context, chunks []models.TextChunk, embedder embeddings.Embedder) (*Index, error) {
	if len(chunks) == 0 {
		return &Index{}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	return FromVectors(chunks, vectors)
}

// FromVectors builds an index from precomputed vectors
func FromVectors(chunks []models.TextChunk, vectors [][]float32) (*Index, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", ErrMisaligned, len(vectors), len(chunks))
	}
	if len(chunks) == 0 {
		return &Index{}, nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimension vector", ErrMisaligned)
	}

	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrMisaligned, i, len(v), dim)
		}
		cp := make([]float32, dim)
		copy(cp, v)
		stored[i] = embeddings.Normalize(cp)
	}

	cs := make([]models.TextChunk, len(chunks))
	copy(cs, chunks)

	return &Index{chunks: cs, vectors: stored, dim: dim}, nil
}

// Len returns number of indexed chunks
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.chunks)
}

// Dim returns vector dimension, 0 for an empty index
func (ix *Index) Dim() int {
	if ix == nil {
		return 0
	}
	return ix.dim
}

// Search returns up to k chunks ordered by descending cosine similarity.
// Equal scores keep insertion order.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if ix.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", ErrMisaligned, len(query), ix.dim)
	}

	q := embeddings.Normalize(append([]float32(nil), query...))

	hits := make([]Hit, len(ix.chunks))
	for i, v := range ix.vectors {
		var dot float64
		for j := range v {
			dot += float64(v[j]) * float64(q[j])
		}
		hits[i] = Hit{Chunk: ix.chunks[i], Score: dot}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k > len(hits) {
		k = len(hits)
	}
	hits = hits[:k]
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}
