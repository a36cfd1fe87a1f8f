// Package chunking splits documents into token-bounded, overlapping chunks.
package chunking

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/selivandex/stock-qa-bot/pkg/models"
)

const (
	DefaultChunkSize = 900
	DefaultOverlap   = 100
)

// Separators tried in order, coarsest first. Text with none of them is cut by runes.
var defaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", " "}

var ErrInvalidConfig = errors.New("invalid chunking config")

// Document is a unit of text with metadata copied onto every chunk
type Document struct {
	Text     string
	Metadata models.ChunkMetadata
}

// Splitter produces chunks of at most ChunkSize tokens where consecutive
// chunks of the same document share at least Overlap tokens.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Tokenizer  Tokenizer
	separators []string
}

// NewSplitter validates sizes and creates splitter
func NewSplitter(chunkSize, overlap int, tokenizer Tokenizer) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, overlap, chunkSize)
	}
	if tokenizer == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", ErrInvalidConfig)
	}

	return &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		Tokenizer:  tokenizer,
		separators: defaultSeparators,
	}, nil
}

// SplitDocuments chunks every document. Chunk order follows document order.
func (s *Splitter) SplitDocuments(docs []Document) []models.TextChunk {
	var chunks []models.TextChunk
	for _, doc := range docs {
		for _, text := range s.Split(doc.Text) {
			chunks = append(chunks, models.TextChunk{
				ID:         uuid.NewString(),
				Text:       text,
				Metadata:   doc.Metadata,
				TokenCount: s.Tokenizer.Count(text),
			})
		}
	}
	return chunks
}

// Split breaks text into chunks. Blank input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if s.count(strings.TrimSpace(text)) <= s.ChunkSize {
		return []string{strings.TrimSpace(text)}
	}

	// Atoms are kept small enough that the overlap tail plus one new atom always fits
	maxAtom := (s.ChunkSize - s.Overlap) / 2
	if maxAtom < 1 {
		maxAtom = 1
	}

	atoms := s.atomize(text, s.separators, maxAtom)
	return s.merge(atoms)
}

func (s *Splitter) count(text string) int {
	return s.Tokenizer.Count(text)
}

// atomize splits text into pieces of at most maxAtom tokens. Each piece keeps its
// trailing separator so concatenating all atoms restores the input.
func (s *Splitter) atomize(text string, seps []string, maxAtom int) []string {
	if text == "" {
		return nil
	}
	if s.count(text) <= maxAtom {
		return []string{text}
	}
	if len(seps) == 0 {
		return s.cutRunes(text, maxAtom)
	}

	sep := seps[0]
	if !strings.Contains(text, sep) {
		return s.atomize(text, seps[1:], maxAtom)
	}

	var atoms []string
	for _, piece := range strings.SplitAfter(text, sep) {
		if piece == "" {
			continue
		}
		if s.count(piece) <= maxAtom {
			atoms = append(atoms, piece)
			continue
		}
		atoms = append(atoms, s.atomize(piece, seps[1:], maxAtom)...)
	}
	return atoms
}

// cutRunes takes the longest rune prefix within maxAtom tokens, at least one rune per atom
func (s *Splitter) cutRunes(text string, maxAtom int) []string {
	runes := []rune(text)
	var atoms []string
	for len(runes) > 0 {
		n := sort.Search(len(runes), func(i int) bool {
			return s.count(string(runes[:i+1])) > maxAtom
		})
		if n == 0 {
			n = 1
		}
		atoms = append(atoms, string(runes[:n]))
		runes = runes[n:]
	}
	return atoms
}

// merge greedily packs atoms into chunks. After a chunk is emitted the shortest
// tail of atoms carrying at least Overlap tokens starts the next one.
func (s *Splitter) merge(atoms []string) []string {
	var (
		chunks []string
		window []string
	)

	fits := func(w []string) bool {
		return s.count(strings.TrimSpace(strings.Join(w, ""))) <= s.ChunkSize
	}
	emit := func(w []string) {
		if chunk := strings.TrimSpace(strings.Join(w, "")); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, atom := range atoms {
		candidate := append(window[:len(window):len(window)], atom)
		if fits(candidate) {
			window = candidate
			continue
		}

		emit(window)
		window = s.overlapTail(window)
		for len(window) > 0 && !fits(append(window[:len(window):len(window)], atom)) {
			window = window[1:]
		}
		window = append(window[:len(window):len(window)], atom)
	}
	emit(window)

	return chunks
}

// overlapTail returns the shortest suffix of window carrying at least Overlap
// tokens. A tail more than twice Overlap has its first atom split finer so a
// single large atom does not inflate the overlap.
func (s *Splitter) overlapTail(window []string) []string {
	if s.Overlap == 0 {
		return nil
	}
	tail := s.shortestTail(window)
	if len(tail) == 0 || s.count(strings.Join(tail, "")) <= 2*s.Overlap {
		return tail
	}

	fine := s.Overlap / 2
	if fine < 1 {
		fine = 1
	}
	refined := append(s.atomize(tail[0], s.separators, fine), tail[1:]...)
	return s.shortestTail(refined)
}

func (s *Splitter) shortestTail(window []string) []string {
	for start := len(window) - 1; start >= 0; start-- {
		if s.count(strings.Join(window[start:], "")) >= s.Overlap {
			return window[start:]
		}
	}
	return window
}
