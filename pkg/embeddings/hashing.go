package embeddings

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashingDimension is the vector size of HashingEmbedder
const DefaultHashingDimension = 512

// HashingEmbedder is a deterministic offline embedder based on feature hashing
// of words and character bigrams. Bigrams keep Korean inflected forms close
// (삼성전자는 / 삼성전자가 share most bigrams).
type HashingEmbedder struct {
	Dim int
}

// NewHashingEmbedder creates embedder; non-positive dim uses the default
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &HashingEmbedder{Dim: dim}
}

// EmbedDocuments embeds each text independently
func (h *HashingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

// EmbedQuery embeds one query
func (h *HashingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.embed(text), nil
}

func (h *HashingEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.Dim)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h.add(vec, "w:"+w, 1)
		runes := []rune(w)
		for i := 0; i+1 < len(runes); i++ {
			h.add(vec, "b:"+string(runes[i:i+2]), 0.5)
		}
	}

	return Normalize(vec)
}

// add hashes feature into a bucket; a second hash bit picks the sign to reduce collision bias
func (h *HashingEmbedder) add(vec []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	idx := int(sum % uint64(h.Dim))
	if (sum>>63)&1 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
