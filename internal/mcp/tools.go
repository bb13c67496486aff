package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string   `json:"query" jsonschema:"free-text query over prompts, agents and proposals"`
	Limit int      `json:"limit,omitempty" jsonschema:"maximum number of results, 1 to 50, default 20"`
	Types []string `json:"types,omitempty" jsonschema:"restrict to entity types: prompt, agent, proposal"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query   string               `json:"query"`
	Results []SearchResultOutput `json:"results" jsonschema:"hits ordered by fused score"`
}

// SearchResultOutput is one fused hit.
type SearchResultOutput struct {
	EntityType string  `json:"entity_type" jsonschema:"prompt, agent or proposal"`
	EntityID   string  `json:"entity_id"`
	Title      string  `json:"title"`
	Snippet    string  `json:"snippet,omitempty" jsonschema:"highlighted lexical excerpt; empty for similarity-only hits"`
	Score      float64 `json:"score" jsonschema:"reciprocal rank fusion score"`
	PromptID   string  `json:"prompt_id,omitempty" jsonschema:"parent prompt of a proposal"`
}

// ReindexInput defines the input schema for the reindex tool (no parameters).
type ReindexInput struct{}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Stats      IndexStats    `json:"stats"`
	Embeddings EmbeddingInfo `json:"embeddings"`
	LastRun    *RunInfo      `json:"last_run,omitempty"`
	Rebuild    *RebuildInfo  `json:"rebuild,omitempty"` // Present when a rebuilder is attached
}

// IndexStats contains statistics about the index.
type IndexStats struct {
	LexicalEntries int    `json:"lexical_entries"`
	Embeddings     int    `json:"embeddings"`
	Backend        string `json:"backend"`
}

// EmbeddingInfo describes the configured and the actual embedder.
type EmbeddingInfo struct {
	// Config values
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Status   string `json:"status"` // "ready", "unavailable" or "unresolved"

	// Runtime state
	ActualModel      string `json:"actual_model,omitempty"`
	Dimensions       int    `json:"dimensions,omitempty"`
	IsFallbackActive bool   `json:"is_fallback_active"` // true for the static embedder
	SemanticQuality  string `json:"semantic_quality"`   // "high", "low" or "none"
	Reason           string `json:"reason,omitempty"`
}

// RunInfo summarizes the last recorded rebuild.
type RunInfo struct {
	ID          string `json:"id"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
	EntityCount int    `json:"entity_count"`
	Embedded    int    `json:"embedded"`
	Model       string `json:"model,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RebuildInfo contains the progress of the current or last background rebuild.
type RebuildInfo struct {
	RunID          string  `json:"run_id,omitempty"`
	Status         string  `json:"status"`          // "idle", "running", "ready" or "error"
	Stage          string  `json:"stage,omitempty"` // "fetching", "indexing", "embedding", "done"
	Total          int     `json:"total"`
	Processed      int     `json:"processed"`
	ProgressPct    float64 `json:"progress_pct"`
	Entities       int     `json:"entities"`
	Embedded       int     `json:"embedded"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}
