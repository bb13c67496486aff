package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "Launch Day")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Launch Day")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.InDelta(t, 1.0, vectorMagnitude(a), 1e-5)
}

func TestStaticEmbedder_SharedVocabularyIsMoreSimilar(t *testing.T) {
	// Given: a query, a related text and an unrelated text
	e := NewStaticEmbedder()
	ctx := context.Background()
	query, _ := e.Embed(ctx, "rocket launch")
	related, _ := e.Embed(ctx, "we watched the rocket launch today")
	unrelated, _ := e.Embed(ctx, "coffee and rain on a quiet morning")

	// Then: the related text scores higher
	assert.Greater(t, cosineSimilarity(query, related), cosineSimilarity(query, unrelated))
}

func TestStaticEmbedder_CaseAndPunctuationInsensitive(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, _ := e.Embed(ctx, "Launch, Day!")
	b, _ := e.Embed(ctx, "launch day")

	assert.Equal(t, a, b)
}

func TestStaticEmbedder_BlankTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "   the and  ")

	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.Zero(t, vectorMagnitude(vec))
}

func TestStaticEmbedder_BatchMatchesSingle(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	batch, err := e.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	single, _ := e.Embed(ctx, "beta")

	require.Len(t, batch, 2)
	assert.Equal(t, single, batch[1])
}

func TestStaticEmbedder_ClosedFails(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "hello")

	assert.Error(t, err)
}
