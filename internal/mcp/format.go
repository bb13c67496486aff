package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/mojify/internal/async"
	"github.com/Aman-CERP/mojify/internal/search"
	"github.com/Aman-CERP/mojify/internal/store"
)

// FormatSearchResults formats search results as markdown.
func FormatSearchResults(query string, results []*search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r *search.Result) {
	if r == nil {
		return
	}
	fmt.Fprintf(sb, "### %d. [%s] %s (score: %.4f)\n", num, r.EntityType, r.Title, r.Score)
	fmt.Fprintf(sb, "**ID:** `%s`", r.EntityID)
	if r.PromptID != "" {
		fmt.Fprintf(sb, " · **Prompt:** `%s`", r.PromptID)
	}
	sb.WriteString("\n\n")
	if r.Snippet != nil && *r.Snippet != "" {
		fmt.Fprintf(sb, "> %s\n\n", *r.Snippet)
	}
}

// ToSearchResultOutput converts a search result to the tool output format.
func ToSearchResultOutput(r *search.Result) SearchResultOutput {
	if r == nil {
		return SearchResultOutput{}
	}
	out := SearchResultOutput{
		EntityType: string(r.EntityType),
		EntityID:   r.EntityID,
		Title:      r.Title,
		Score:      r.Score,
		PromptID:   r.PromptID,
	}
	if r.Snippet != nil {
		out.Snippet = *r.Snippet
	}
	return out
}

// ToRunInfo converts a recorded run; nil stays nil.
func ToRunInfo(run *store.IndexRun) *RunInfo {
	if run == nil {
		return nil
	}
	info := &RunInfo{
		ID:          run.ID,
		StartedAt:   run.StartedAt.Format(timeLayout),
		EntityCount: run.EntityCount,
		Embedded:    run.Embedded,
		Model:       run.Model,
		Error:       run.Error,
	}
	if !run.FinishedAt.IsZero() {
		info.FinishedAt = run.FinishedAt.Format(timeLayout)
	}
	return info
}

// ToRebuildInfo converts a rebuild progress snapshot.
func ToRebuildInfo(snap async.ProgressSnapshot) *RebuildInfo {
	return &RebuildInfo{
		RunID:          snap.RunID,
		Status:         snap.Status,
		Stage:          snap.Stage,
		Total:          snap.Total,
		Processed:      snap.Processed,
		ProgressPct:    snap.ProgressPct,
		Entities:       snap.Entities,
		Embedded:       snap.Embedded,
		ElapsedSeconds: snap.ElapsedSeconds,
		ErrorMessage:   snap.ErrorMessage,
	}
}

// parseTypes converts tool input types, dropping unknown values.
func parseTypes(raw []string) []store.EntityType {
	if len(raw) == 0 {
		return nil
	}
	return store.FilterEntityTypes(raw)
}
