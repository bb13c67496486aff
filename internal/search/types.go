// Package search answers free-text queries over the catalog by fusing a
// BM25 lexical ranking with an embedding similarity ranking using
// Reciprocal Rank Fusion (RRF).
package search

import (
	"github.com/Aman-CERP/mojify/internal/config"
	"github.com/Aman-CERP/mojify/internal/store"
)

// Result is one fused search hit.
type Result struct {
	EntityType store.EntityType `json:"entity_type"`
	EntityID   string           `json:"entity_id"`
	Title      string           `json:"title"`

	// Snippet is nil for similarity-only hits and for empty lexical snippets.
	Snippet *string `json:"snippet"`

	// Score is the RRF score rounded to 4 decimals.
	Score float64 `json:"score"`

	// PromptID is the parent prompt of a proposal hit. Set by callers that
	// have catalog access; the engine leaves it empty.
	PromptID string `json:"prompt_id,omitempty"`
}

// Key returns the result's composite key.
func (r *Result) Key() store.Key {
	return store.Key{Type: r.EntityType, ID: r.EntityID}
}

// Options configures one search call.
type Options struct {
	// Limit is clamped to [1, MaxLimit]; 0 means DefaultLimit.
	Limit int

	// Types restricts both rankings to these entity types. Empty means all.
	Types []store.EntityType
}

// EngineConfig holds the tunables of the search engine.
type EngineConfig struct {
	RRFConstant         int
	SimilarityThreshold float64
	MaxLexicalTerms     int
	DefaultLimit        int
	MaxLimit            int

	// FetchMultiplier sizes each input ranking as FetchMultiplier*limit.
	FetchMultiplier int

	// TitleExcerptLen bounds the title of similarity-only hits, in runes.
	TitleExcerptLen int
}

// DefaultEngineConfig returns the standard tunables.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RRFConstant:         DefaultRRFConstant,
		SimilarityThreshold: DefaultSimilarityThreshold,
		MaxLexicalTerms:     store.DefaultMaxLexicalTerms,
		DefaultLimit:        20,
		MaxLimit:            50,
		FetchMultiplier:     2,
		TitleExcerptLen:     80,
	}
}

// EngineConfigFrom builds an EngineConfig from the search config section.
// Non-positive values keep their defaults.
func EngineConfigFrom(cfg config.SearchConfig) EngineConfig {
	ec := DefaultEngineConfig()
	if cfg.RRFConstant > 0 {
		ec.RRFConstant = cfg.RRFConstant
	}
	if cfg.SimilarityThreshold >= 0 {
		ec.SimilarityThreshold = cfg.SimilarityThreshold
	}
	if cfg.MaxLexicalTerms > 0 {
		ec.MaxLexicalTerms = cfg.MaxLexicalTerms
	}
	if cfg.MaxLimit > 0 {
		ec.MaxLimit = cfg.MaxLimit
	}
	if cfg.DefaultLimit > 0 {
		ec.DefaultLimit = min(cfg.DefaultLimit, ec.MaxLimit)
	}
	if cfg.FetchMultiplier > 0 {
		ec.FetchMultiplier = cfg.FetchMultiplier
	}
	if cfg.TitleExcerptLen > 0 {
		ec.TitleExcerptLen = cfg.TitleExcerptLen
	}
	return ec
}

// clampLimit applies the default and bounds to a requested limit.
func (c EngineConfig) clampLimit(limit int) int {
	if limit == 0 {
		limit = c.DefaultLimit
	}
	return max(1, min(limit, c.MaxLimit))
}
