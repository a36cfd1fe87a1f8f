package chunking

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE encoding used for chunk budgets
const DefaultEncoding = "cl100k_base"

// Tokenizer measures text length in tokens
type Tokenizer interface {
	Count(text string) int
}

// TiktokenTokenizer counts BPE tokens with an embedded vocabulary (no network)
type TiktokenTokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

var loaderOnce sync.Once

// NewTiktokenTokenizer loads the named encoding from the offline BPE files
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}

	return &TiktokenTokenizer{enc: enc}, nil
}

// Count returns number of BPE tokens in text
func (t *TiktokenTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// WordTokenizer counts whitespace-separated words
type WordTokenizer struct{}

// Count returns number of words in text
func (WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}
