package ui

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mojify/internal/search"
	"github.com/Aman-CERP/mojify/internal/store"
)

func TestResultsRenderer_Empty(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewResultsRenderer(buf, true).Render("zzz", nil))

	assert.Equal(t, "No results for \"zzz\"\n", buf.String())
}

func TestResultsRenderer_Render(t *testing.T) {
	// Given: a lexical prompt hit and a similarity-only proposal
	snippet := "We shipped it Launch Day"
	results := []*search.Result{
		{EntityType: store.EntityPrompt, EntityID: "p1", Title: "Launch Day", Snippet: &snippet, Score: 0.0328},
		{EntityType: store.EntityProposal, EntityID: "x1", Title: "rocket", Score: 0.0161, PromptID: "p1"},
	}
	buf := &bytes.Buffer{}

	// When: rendering without color
	require.NoError(t, NewResultsRenderer(buf, true).Render("launch", results))

	// Then: ranks, titles, scores and the parent prompt are shown
	out := buf.String()
	assert.Contains(t, out, " 1. prompt   Launch Day (0.0328)")
	assert.Contains(t, out, "    We shipped it Launch Day")
	assert.Contains(t, out, " 2. proposal rocket (0.0161)")
	assert.Contains(t, out, "x1 · prompt p1")
}

func TestResultsRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewResultsRenderer(buf, true).RenderJSON("zzz", nil))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "zzz", parsed["query"])
	assert.Equal(t, []any{}, parsed["results"])
}
