package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mojify/internal/store"
)

// =============================================================================
// Cosine
// =============================================================================

func TestCosine_Properties(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 4}

	assert.InDelta(t, Cosine(a, b), Cosine(b, a), 1e-12, "symmetric")
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-6, "self similarity")
	assert.InDelta(t, -1.0, Cosine(a, []float32{-1, -2, -3}), 1e-6, "opposite")

	sim := Cosine(a, b)
	assert.GreaterOrEqual(t, sim, -1.0)
	assert.LessOrEqual(t, sim, 1.0)
}

func TestCosine_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"both empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

// =============================================================================
// Ranker
// =============================================================================

func TestRanker_KeepsAboveThresholdSortedDescending(t *testing.T) {
	// Given: records at decreasing angles from the query
	es := &fakeEmbeddings{records: []*store.EmbeddingRecord{
		embRecord(store.EntityPrompt, "weak", "weak", 0.1, 1),     // ~0.0995, below threshold
		embRecord(store.EntityPrompt, "mid", "mid", 1, 1),         // ~0.707
		embRecord(store.EntityAgent, "best", "best", 1, 0),        // 1.0
		embRecord(store.EntityProposal, "opposite", "opp", -1, 0), // -1
		embRecord(store.EntityPrompt, "short", "short", 1, 0, 0),  // dimension mismatch
	}}
	r := NewRanker(es, DefaultSimilarityThreshold)

	// When: ranking
	hits, err := r.Rank(context.Background(), []float32{1, 0}, nil, 10)

	// Then: only hits above 0.1 remain, best first
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "best", hits[0].EntityID)
	assert.Equal(t, "mid", hits[1].EntityID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
	assert.Equal(t, "best", hits[0].Content)
}

func TestRanker_ThresholdIsExclusive(t *testing.T) {
	es := &fakeEmbeddings{records: []*store.EmbeddingRecord{
		embRecord(store.EntityPrompt, "p1", "", 1, 0),
	}}

	hits, err := NewRanker(es, 1.0).Rank(context.Background(), []float32{1, 0}, nil, 10)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRanker_TruncatesAndKeepsStorageOrderOnTies(t *testing.T) {
	es := &fakeEmbeddings{records: []*store.EmbeddingRecord{
		embRecord(store.EntityPrompt, "p1", "", 1, 0),
		embRecord(store.EntityPrompt, "p2", "", 1, 0),
		embRecord(store.EntityPrompt, "p3", "", 1, 0),
	}}

	hits, err := NewRanker(es, 0.1).Rank(context.Background(), []float32{2, 0}, nil, 2)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "p1", hits[0].EntityID)
	assert.Equal(t, "p2", hits[1].EntityID)
}

func TestRanker_PassesTypeFilterToStore(t *testing.T) {
	es := &fakeEmbeddings{records: []*store.EmbeddingRecord{
		embRecord(store.EntityPrompt, "p1", "", 1, 0),
		embRecord(store.EntityAgent, "a1", "", 1, 0),
	}}

	hits, err := NewRanker(es, 0.1).Rank(context.Background(), []float32{1, 0}, []store.EntityType{store.EntityAgent}, 10)

	require.NoError(t, err)
	assert.Equal(t, []store.EntityType{store.EntityAgent}, es.scanTypes)
	require.Len(t, hits, 1)
	assert.Equal(t, "a1", hits[0].EntityID)
}

func TestRanker_NoQueryVectorSkipsScan(t *testing.T) {
	es := &fakeEmbeddings{}

	hits, err := NewRanker(es, 0.1).Rank(context.Background(), nil, nil, 10)

	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Zero(t, es.scans)
}

func TestRanker_PropagatesStoreError(t *testing.T) {
	es := &fakeEmbeddings{err: errors.New("disk gone")}

	_, err := NewRanker(es, 0.1).Rank(context.Background(), []float32{1}, nil, 10)

	assert.ErrorContains(t, err, "disk gone")
}
