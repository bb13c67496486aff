package search

import (
	"context"
	"math"
	"slices"

	"github.com/Aman-CERP/mojify/internal/store"
)

// DefaultSimilarityThreshold is the exclusive lower bound on cosine
// similarity for a stored vector to be ranked.
const DefaultSimilarityThreshold = 0.1

// cosineEpsilon keeps zero vectors from dividing by zero.
const cosineEpsilon = 1e-9

// Cosine returns dot(a,b) / (|a|*|b| + 1e-9). Vectors of different length
// have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + cosineEpsilon)
}

// SemanticHit is one entry of the similarity ranking.
type SemanticHit struct {
	EntityType store.EntityType
	EntityID   string

	// Content is the text that was embedded for the entity.
	Content    string
	Similarity float64
}

// Key returns the hit's composite key.
func (h *SemanticHit) Key() store.Key {
	return store.Key{Type: h.EntityType, ID: h.EntityID}
}

// Ranker ranks stored entity vectors against a query vector.
type Ranker struct {
	store     store.EmbeddingStore
	threshold float64
}

// NewRanker creates a ranker over es keeping hits with similarity above
// threshold.
func NewRanker(es store.EmbeddingStore, threshold float64) *Ranker {
	return &Ranker{store: es, threshold: threshold}
}

// Rank scans every stored vector of the given types and returns those more
// similar than the threshold, best first, at most limit. Equal similarities
// keep storage order. A nil query vector yields an empty ranking.
func (r *Ranker) Rank(ctx context.Context, query []float32, types []store.EntityType, limit int) ([]*SemanticHit, error) {
	if len(query) == 0 || limit <= 0 {
		return nil, nil
	}

	var hits []*SemanticHit
	err := r.store.Scan(ctx, types, func(rec *store.EmbeddingRecord) error {
		sim := Cosine(query, rec.Vector)
		if sim <= r.threshold {
			return nil
		}
		hits = append(hits, &SemanticHit{
			EntityType: rec.EntityType,
			EntityID:   rec.EntityID,
			Content:    rec.Content,
			Similarity: sim,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(hits, func(a, b *SemanticHit) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
