package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
)

type searchJSON struct {
	Query   string `json:"query"`
	Results []struct {
		EntityType string  `json:"entity_type"`
		EntityID   string  `json:"entity_id"`
		Title      string  `json:"title"`
		Snippet    *string `json:"snippet"`
		Score      float64 `json:"score"`
		PromptID   string  `json:"prompt_id"`
	} `json:"results"`
}

func TestSearchCmd_RequiresIndex(t *testing.T) {
	dir := newProject(t)

	_, _, err := run(t, "--dir", dir, "search", "launch")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, _, err := run(t, "search")

	assert.Error(t, err)
}

func TestSearchCmd_BlankQuery(t *testing.T) {
	dir := indexed(t)

	_, _, err := run(t, "--dir", dir, "search", "  ")

	require.Error(t, err)
	assert.Equal(t, mojierrors.ErrCodeQueryEmpty, mojierrors.GetCode(err))
}

func TestSearchCmd_InvalidLimit(t *testing.T) {
	dir := indexed(t)

	for _, limit := range []string{"-1", "51"} {
		_, _, err := run(t, "--dir", dir, "search", "launch", "--limit="+limit)
		require.Error(t, err, limit)
		assert.Equal(t, mojierrors.ErrCodeInvalidLimit, mojierrors.GetCode(err), limit)
	}
}

func TestSearchCmd_InvalidFormat(t *testing.T) {
	_, _, err := run(t, "search", "launch", "--format", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestSearchCmd_FormatJSON_ProposalCarriesPromptID(t *testing.T) {
	// Given: an indexed project
	dir := indexed(t)

	// When: searching proposals for a rationale word
	out, _, err := run(t, "--dir", dir, "search", "liftoff", "--type", "proposal", "--format", "json")
	require.NoError(t, err)

	// Then: the matching proposal is first and carries its parent prompt
	var resp searchJSON
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "liftoff", resp.Query)
	require.NotEmpty(t, resp.Results)
	first := resp.Results[0]
	assert.Equal(t, "proposal", first.EntityType)
	assert.Equal(t, "x1", first.EntityID)
	assert.Equal(t, "p1", first.PromptID)
	assert.Equal(t, "liftoff party", first.Title)
	require.NotNil(t, first.Snippet)
	assert.Greater(t, first.Score, 0.0)
	for _, r := range resp.Results {
		assert.Equal(t, "proposal", r.EntityType)
	}
}

func TestSearchCmd_FormatText(t *testing.T) {
	dir := indexed(t)

	out, _, err := run(t, "--dir", dir, "search", "liftoff", "--type", "proposal", "--no-color")

	require.NoError(t, err)
	assert.Contains(t, out, " 1. ")
	assert.Contains(t, out, "liftoff party")
	assert.Contains(t, out, "prompt p1")
}

func TestSearchCmd_LimitFlag(t *testing.T) {
	dir := indexed(t)

	out, _, err := run(t, "--dir", dir, "search", "launch day coffee rocket", "--limit", "1", "--format", "json")
	require.NoError(t, err)

	var resp searchJSON
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Results, 1)
}

func TestSearchCmd_PunctuationOnlyReturnsEmpty(t *testing.T) {
	dir := indexed(t)

	out, _, err := run(t, "--dir", dir, "search", "?!", "--format", "json")

	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"?!","results":[]}`, out)
}

func TestSearchCmd_WorksWithoutCatalog(t *testing.T) {
	// Given: an index whose catalog has since disappeared
	dir := indexed(t)
	t.Setenv("DATABASE_URL", dir+"/gone.db")

	// When: searching
	out, stderr, err := run(t, "--dir", dir, "search", "liftoff", "--type", "proposal", "--format", "json")

	// Then: results come back without parent ids and a warning is logged
	require.NoError(t, err)
	var resp searchJSON
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Empty(t, resp.Results[0].PromptID)
	assert.Contains(t, stderr, "catalog_unavailable")
}
