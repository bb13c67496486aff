package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

// =============================================================================
// Behaviour shared by every LexicalIndex backend
// =============================================================================

type lexicalFactory struct {
	name string
	open func(t *testing.T) LexicalIndex
}

func lexicalBackends() []lexicalFactory {
	return []lexicalFactory{
		{"sqlite", func(t *testing.T) LexicalIndex {
			db, err := OpenSQLite("")
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			return NewSQLiteLexicalIndex(db)
		}},
		{"bleve", func(t *testing.T) LexicalIndex {
			idx, err := NewBleveLexicalIndex("")
			require.NoError(t, err)
			t.Cleanup(func() { _ = idx.Close() })
			return idx
		}},
	}
}

func launchDayCorpus() []*IndexedEntity {
	return []*IndexedEntity{
		{EntityType: EntityPrompt, EntityID: "p1", Title: "Launch Day", Content: "We shipped it Launch Day"},
		{EntityType: EntityAgent, EntityID: "a1", Title: "Launch Day", Content: "Launch Day"},
		{EntityType: EntityProposal, EntityID: "x1", Title: "rockets everywhere", Content: "🚀 rockets everywhere Launch Day"},
		{EntityType: EntityPrompt, EntityID: "p2", Title: "Quiet Morning", Content: "coffee and rain Quiet Morning"},
	}
}

func keysOf(hits []*LexicalHit) []Key {
	keys := make([]Key, len(hits))
	for i, h := range hits {
		keys[i] = h.Key()
	}
	return keys
}

func TestLexicalIndex_FindsEveryEntityType(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			// Given: a prompt, an agent and a proposal that mention "Launch"
			ctx := context.Background()
			idx := backend.open(t)
			require.NoError(t, idx.Index(ctx, launchDayCorpus()))

			// When: searching without a filter
			hits, err := idx.Search(ctx, LexicalQuery{Terms: []string{"Launch"}, Limit: 10})
			require.NoError(t, err)

			// Then: all three match with their entity types populated
			assert.ElementsMatch(t, []Key{
				{EntityPrompt, "p1"}, {EntityAgent, "a1"}, {EntityProposal, "x1"},
			}, keysOf(hits))
			for i := 1; i < len(hits); i++ {
				assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score, "hits must be best first")
			}
			for _, h := range hits {
				assert.Greater(t, h.Score, 0.0)
			}
		})
	}
}

func TestLexicalIndex_TermsAreORed(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			idx := backend.open(t)
			require.NoError(t, idx.Index(ctx, launchDayCorpus()))

			hits, err := idx.Search(ctx, LexicalQuery{Terms: []string{"coffee", "rockets"}, Limit: 10})
			require.NoError(t, err)

			assert.ElementsMatch(t, []Key{{EntityPrompt, "p2"}, {EntityProposal, "x1"}}, keysOf(hits))
		})
	}
}

func TestLexicalIndex_OperatorWordsMatchLiterally(t *testing.T) {
	queries := [][]string{
		SanitizeQuery("Rock AND Roll"),
		SanitizeQuery("NOT rock"),
		SanitizeQuery("rock OR"),
		SanitizeQuery("roll NEAR"),
	}

	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			// Given: a prompt whose title contains a query-language keyword
			ctx := context.Background()
			idx := backend.open(t)
			require.NoError(t, idx.Index(ctx, []*IndexedEntity{
				{EntityType: EntityPrompt, EntityID: "p9", Title: "Rock and Roll", Content: "guitars Rock and Roll"},
			}))

			for _, terms := range queries {
				// When: the query contains uppercase operator words
				hits, err := idx.Search(ctx, LexicalQuery{Terms: terms, Limit: 10})

				// Then: they are plain terms and the prompt is found
				require.NoError(t, err, "terms %v", terms)
				assert.Equal(t, []Key{{EntityPrompt, "p9"}}, keysOf(hits), "terms %v", terms)
			}
		})
	}
}

func TestLexicalIndex_StemsTerms(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			idx := backend.open(t)
			require.NoError(t, idx.Index(ctx, launchDayCorpus()))

			hits, err := idx.Search(ctx, LexicalQuery{Terms: []string{"shipping"}, Limit: 10})
			require.NoError(t, err)

			assert.Equal(t, []Key{{EntityPrompt, "p1"}}, keysOf(hits))
		})
	}
}

func TestLexicalIndex_FiltersByType(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			idx := backend.open(t)
			require.NoError(t, idx.Index(ctx, launchDayCorpus()))

			hits, err := idx.Search(ctx, LexicalQuery{
				Terms: []string{"launch"},
				Types: []EntityType{EntityAgent},
				Limit: 10,
			})
			require.NoError(t, err)

			assert.Equal(t, []Key{{EntityAgent, "a1"}}, keysOf(hits))
		})
	}
}

func TestLexicalIndex_EntityTypeIsNotSearchable(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			idx := backend.open(t)
			require.NoError(t, idx.Index(ctx, launchDayCorpus()))

			hits, err := idx.Search(ctx, LexicalQuery{Terms: []string{"prompt"}, Limit: 10})
			require.NoError(t, err)

			assert.Empty(t, hits)
		})
	}
}

func TestLexicalIndex_RespectsLimit(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			idx := backend.open(t)
			require.NoError(t, idx.Index(ctx, launchDayCorpus()))

			hits, err := idx.Search(ctx, LexicalQuery{Terms: []string{"launch"}, Limit: 2})
			require.NoError(t, err)

			assert.Len(t, hits, 2)
		})
	}
}

func TestLexicalIndex_SnippetComesFromContent(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			// Given: a long content body with one match near the end
			ctx := context.Background()
			idx := backend.open(t)
			require.NoError(t, idx.Index(ctx, []*IndexedEntity{{
				EntityType: EntityPrompt,
				EntityID:   "long",
				Title:      "Story",
				Content:    "one two three four five six seven eight nebula nine ten eleven twelve",
			}}))

			// When: searching for the late term
			hits, err := idx.Search(ctx, LexicalQuery{Terms: []string{"nebula"}, Limit: 5})
			require.NoError(t, err)
			require.Len(t, hits, 1)

			// Then: the snippet surfaces the match and elides the rest
			assert.Contains(t, hits[0].Snippet, "nebula")
			assert.Contains(t, hits[0].Snippet, "...")
			assert.NotContains(t, hits[0].Snippet, "one two")
		})
	}
}

func TestLexicalIndex_ClearAndCount(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			idx := backend.open(t)
			require.NoError(t, idx.Index(ctx, launchDayCorpus()))

			n, err := idx.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			require.NoError(t, idx.Clear(ctx))
			n, err = idx.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			hits, err := idx.Search(ctx, LexicalQuery{Terms: []string{"launch"}, Limit: 10})
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestLexicalIndex_EmptyTermsReturnNothing(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			idx := backend.open(t)

			hits, err := idx.Search(context.Background(), LexicalQuery{Limit: 10})
			require.NoError(t, err)
			assert.NotNil(t, hits)
			assert.Empty(t, hits)
		})
	}
}

func TestLexicalIndex_ClosedIsStoreUnavailable(t *testing.T) {
	for _, backend := range lexicalBackends() {
		t.Run(backend.name, func(t *testing.T) {
			idx := backend.open(t)
			require.NoError(t, idx.Close())

			_, err := idx.Search(context.Background(), LexicalQuery{Terms: []string{"x"}, Limit: 1})
			require.Error(t, err)
			assert.Equal(t, mojierrors.ErrCodeStoreUnavailable, mojierrors.GetCode(err))
			assert.True(t, mojierrors.IsRetryable(err))
		})
	}
}

// =============================================================================
// SQLite specifics
// =============================================================================

func TestSQLiteLexicalIndex_SnippetHasNoMarkers(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	idx := NewSQLiteLexicalIndex(db)
	require.NoError(t, idx.Index(ctx, launchDayCorpus()))

	hits, err := idx.Search(ctx, LexicalQuery{Terms: []string{"coffee"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Contains(t, hits[0].Snippet, "coffee")
	assert.NotContains(t, hits[0].Snippet, "<b>")
}
