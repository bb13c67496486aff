package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// StaticModelName is the model name reported by StaticEmbedder.
const StaticModelName = "static"

// Weights of the two feature families in a static vector.
const (
	wordWeight    = 0.7
	trigramWeight = 0.3
)

var staticStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "the": true, "to": true, "we": true,
}

// StaticEmbedder hashes words and character trigrams into a fixed-size
// vector. It needs no model or network and is deterministic, so it is the
// provider used in tests and air-gapped installs. Similarity reflects shared
// vocabulary and spelling rather than meaning.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed returns the unit-length hash vector of text. Blank text yields the
// zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	vector := make([]float32, StaticDimensions)
	words := staticWords(text)
	for _, w := range words {
		vector[hashToIndex(w)] += wordWeight
	}

	letters := []rune(strings.Join(words, ""))
	for i := 0; i+3 <= len(letters); i++ {
		vector[hashToIndex(string(letters[i:i+3]))] += trigramWeight
	}

	return normalizeVector(vector), nil
}

// EmbedBatch embeds each text in turn.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns StaticDimensions.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName returns StaticModelName.
func (e *StaticEmbedder) ModelName() string { return StaticModelName }

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// staticWords lowercases text and splits it into letter/digit runs,
// dropping common English stop words.
func staticWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if !staticStopWords[f] {
			words = append(words, f)
		}
	}
	return words
}

func hashToIndex(s string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % StaticDimensions)
}
