// Package similarity scores pairwise text similarity with TF-IDF weighted cosine.
package similarity

import (
	"errors"
	"math"
	"regexp"
	"strings"
)

// ErrEmptyVocabulary is returned when no document yields a single term
var ErrEmptyVocabulary = errors.New("empty vocabulary: documents contain no terms")

// Terms are runs of two or more letters or digits, so Hangul words count as terms.
var termPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Matrix is a symmetric N×N similarity matrix
type Matrix struct {
	scores [][]float64
	n      int
}

// Size returns number of documents scored
func (m Matrix) Size() int {
	return m.n
}

// At returns score between documents i and j
func (m Matrix) At(i, j int) float64 {
	if i == j {
		return 1
	}
	if m.scores == nil {
		return 0
	}
	return m.scores[i][j]
}

// Tokenize lower-cases text and extracts terms
func Tokenize(text string) []string {
	return termPattern.FindAllString(strings.ToLower(text), -1)
}

// Compute builds the similarity matrix for docs.
// With fewer than two documents nothing is computed.
func Compute(docs []string) (Matrix, error) {
	n := len(docs)
	if n <= 1 {
		return Matrix{n: n}, nil
	}

	counts := make([]map[string]int, n)
	df := make(map[string]int)
	for i, doc := range docs {
		tf := make(map[string]int)
		for _, term := range Tokenize(doc) {
			tf[term]++
		}
		for term := range tf {
			df[term]++
		}
		counts[i] = tf
	}

	if len(df) == 0 {
		return Matrix{}, ErrEmptyVocabulary
	}

	// Smoothed idf: ln((1+n)/(1+df)) + 1
	idf := make(map[string]float64, len(df))
	for term, d := range df {
		idf[term] = math.Log(float64(1+n)/float64(1+d)) + 1
	}

	vectors := make([]map[string]float64, n)
	for i, tf := range counts {
		vec := make(map[string]float64, len(tf))
		var norm float64
		for term, c := range tf {
			w := float64(c) * idf[term]
			vec[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vec {
				vec[term] /= norm
			}
		}
		vectors[i] = vec
	}

	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, n)
		scores[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := clamp(dot(vectors[i], vectors[j]))
			scores[i][j] = s
			scores[j][i] = s
		}
	}

	return Matrix{scores: scores, n: n}, nil
}

func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, w := range a {
		sum += w * b[term]
	}
	return sum
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
