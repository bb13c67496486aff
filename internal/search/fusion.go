package search

import (
	"math"
	"slices"

	"github.com/Aman-CERP/mojify/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
const DefaultRRFConstant = 60

// RRFFusion merges the lexical and similarity rankings with Reciprocal Rank
// Fusion:
//
//	score(d) = Σ 1 / (k + rank_i(d) + 1)
//
// where rank_i is the 0-based position of d in ranking i. A document found by
// only one ranking is scored from that ranking alone.
type RRFFusion struct {
	K int

	// TitleExcerptLen bounds the title of similarity-only hits, in runes.
	TitleExcerptLen int
}

// NewRRFFusion creates a fusion with k (DefaultRRFConstant when k <= 0).
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k, TitleExcerptLen: 80}
}

type fusedEntry struct {
	key     store.Key
	score   float64
	lexical *store.LexicalHit
	content string
}

// Fuse returns at most limit results ordered by descending fused score.
// Ties keep first-seen order, lexical ranking first.
func (f *RRFFusion) Fuse(lexical []*store.LexicalHit, semantic []*SemanticHit, limit int) []*Result {
	entries := make(map[store.Key]*fusedEntry, len(lexical)+len(semantic))
	var order []*fusedEntry

	entry := func(k store.Key) *fusedEntry {
		if e, ok := entries[k]; ok {
			return e
		}
		e := &fusedEntry{key: k}
		entries[k] = e
		order = append(order, e)
		return e
	}

	for rank, hit := range lexical {
		e := entry(hit.Key())
		e.score += f.contribution(rank)
		if e.lexical == nil {
			e.lexical = hit
		}
	}
	for rank, hit := range semantic {
		e := entry(hit.Key())
		e.score += f.contribution(rank)
		if e.content == "" {
			e.content = hit.Content
		}
	}

	slices.SortStableFunc(order, func(a, b *fusedEntry) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	if limit >= 0 && len(order) > limit {
		order = order[:limit]
	}

	results := make([]*Result, 0, len(order))
	for _, e := range order {
		r := &Result{
			EntityType: e.key.Type,
			EntityID:   e.key.ID,
			Score:      roundScore(e.score),
		}
		if e.lexical != nil {
			r.Title = e.lexical.Title
			if snippet := e.lexical.Snippet; snippet != "" {
				r.Snippet = &snippet
			}
		} else {
			r.Title = truncateRunes(e.content, f.TitleExcerptLen)
		}
		results = append(results, r)
	}
	return results
}

func (f *RRFFusion) contribution(rank int) float64 {
	return 1.0 / float64(f.K+rank+1)
}

// roundScore rounds to 4 decimal places.
func roundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
