package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/mojify/internal/async"
	"github.com/Aman-CERP/mojify/internal/config"
	"github.com/Aman-CERP/mojify/internal/embed"
	"github.com/Aman-CERP/mojify/internal/search"
	"github.com/Aman-CERP/mojify/internal/store"
	"github.com/Aman-CERP/mojify/internal/telemetry"
	"github.com/Aman-CERP/mojify/pkg/version"
)

const (
	serverName = "mojify"
	timeLayout = time.RFC3339
)

// ParentLookup maps proposal ids to their parent prompt ids.
type ParentLookup interface {
	ParentPromptIDs(ctx context.Context, proposalIDs []string) (map[string]string, error)
}

// RunHistory reads the last recorded rebuild.
type RunHistory interface {
	Last(ctx context.Context) (*store.IndexRun, error)
}

// Dependencies are the collaborators of a Server. Only Searcher is required.
type Dependencies struct {
	Searcher   search.Searcher
	Parents    ParentLookup
	Rebuilder  *async.Rebuilder
	Capability *embed.Capability
	Lexical    store.LexicalIndex
	Embeddings store.EmbeddingStore
	Runs       RunHistory
}

// Server is the MCP server for mojify.
// It exposes catalog search to AI clients over stdio.
type Server struct {
	mcp    *mcp.Server
	deps   Dependencies
	config *config.Config
	logger *slog.Logger

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	// baseCtx outlives tool calls; rebuilds started by the reindex tool run under it.
	baseCtx context.Context

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Search prompts, agents and emoji proposals by keyword and meaning. Returns hits ranked by fused lexical and semantic score.",
	},
	{
		Name:        "index_status",
		Description: "Report index size, the active embedding model and the state of the last rebuild.",
	},
	{
		Name:        "reindex",
		Description: "Rebuild the search index from the voting catalog in the background. Poll index_status for progress.",
	},
}

// NewServer creates a new MCP server.
func NewServer(deps Dependencies, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if deps.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		deps:    deps,
		config:  cfg,
		logger:  logger,
		baseCtx: context.Background(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// SetMetrics sets the query metrics collector.
// When set, a query_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	if s.deps.Rebuilder != nil {
		return tools
	}
	return tools[:2]
}

// CallTool invokes a tool by name. The search tool returns markdown.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return s.handleSearchTool(ctx, args)
	case "index_status":
		return s.indexStatus(ctx)
	case "reindex":
		if s.deps.Rebuilder == nil {
			return nil, NewMethodNotFoundError(name)
		}
		return s.reindex()
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleSearchTool parses loosely typed arguments and returns markdown.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	input := SearchInput{}
	input.Query, _ = args["query"].(string)
	if l, ok := args["limit"].(float64); ok {
		input.Limit = int(l)
	}
	if l, ok := args["limit"].(int); ok {
		input.Limit = l
	}
	if raw, ok := args["types"].([]any); ok {
		for _, v := range raw {
			if str, ok := v.(string); ok {
				input.Types = append(input.Types, str)
			}
		}
	}

	results, err := s.search(ctx, input)
	if err != nil {
		return "", err
	}
	return FormatSearchResults(input.Query, results), nil
}

// search validates input, runs the query and enriches proposal hits.
func (s *Server) search(ctx context.Context, input SearchInput) ([]*search.Result, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	maxLimit := s.config.Search.MaxLimit
	if input.Limit < 0 || (maxLimit > 0 && input.Limit > maxLimit) {
		return nil, NewInvalidParamsError(fmt.Sprintf("limit must be between 1 and %d", maxLimit))
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", input.Limit))

	results, err := s.deps.Searcher.Search(ctx, input.Query, search.Options{
		Limit: input.Limit,
		Types: parseTypes(input.Types),
	})
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.enrichProposals(ctx, results)

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))
	return results, nil
}

func (s *Server) enrichProposals(ctx context.Context, results []*search.Result) {
	if s.deps.Parents == nil {
		return
	}
	var ids []string
	for _, r := range results {
		if r.EntityType == store.EntityProposal {
			ids = append(ids, r.EntityID)
		}
	}
	if len(ids) == 0 {
		return
	}
	parents, err := s.deps.Parents.ParentPromptIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("prompt lookup failed", slog.String("error", err.Error()))
		return
	}
	for _, r := range results {
		if r.EntityType == store.EntityProposal {
			r.PromptID = parents[r.EntityID]
		}
	}
}

// indexStatus gathers index statistics and embedder state. Storage errors
// are logged and leave the affected fields zero.
func (s *Server) indexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	out := &IndexStatusOutput{
		Stats:      IndexStats{Backend: s.config.Storage.LexicalBackend},
		Embeddings: s.embeddingInfo(),
	}

	if s.deps.Lexical != nil {
		n, err := s.deps.Lexical.Count(ctx)
		if err != nil {
			s.logger.Warn("lexical count failed", slog.String("error", err.Error()))
		}
		out.Stats.LexicalEntries = n
	}
	if s.deps.Embeddings != nil {
		n, err := s.deps.Embeddings.Count(ctx)
		if err != nil {
			s.logger.Warn("embedding count failed", slog.String("error", err.Error()))
		}
		out.Stats.Embeddings = n
	}
	if s.deps.Runs != nil {
		run, err := s.deps.Runs.Last(ctx)
		if err != nil {
			s.logger.Warn("run history unavailable", slog.String("error", err.Error()))
		}
		out.LastRun = ToRunInfo(run)
	}
	if s.deps.Rebuilder != nil {
		out.Rebuild = ToRebuildInfo(s.deps.Rebuilder.Status())
	}
	return out, nil
}

// embeddingInfo reports the embedder without forcing a model load.
func (s *Server) embeddingInfo() EmbeddingInfo {
	info := EmbeddingInfo{
		Provider:        s.config.Embeddings.Provider,
		Model:           s.config.Embeddings.Model,
		Status:          "unavailable",
		SemanticQuality: "none",
	}
	if s.deps.Capability == nil {
		return info
	}

	st := s.deps.Capability.Status()
	switch {
	case !st.Resolved:
		info.Status = "unresolved"
	case st.Available:
		info.Status = "ready"
		info.ActualModel = st.Model
		info.Dimensions = st.Dimensions
		info.IsFallbackActive = st.Model == embed.StaticModelName
		info.SemanticQuality = "high"
		if info.IsFallbackActive {
			info.SemanticQuality = "low"
		}
	default:
		info.Reason = st.Reason
	}
	return info
}

func (s *Server) reindex() (*RebuildInfo, error) {
	s.mu.RLock()
	ctx := s.baseCtx
	s.mu.RUnlock()

	snap, err := s.deps.Rebuilder.Start(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	s.logger.Info("reindex requested", slog.String("run_id", snap.RunID))
	return ToRebuildInfo(snap), nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpIndexStatusHandler)
	if s.deps.Rebuilder != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpReindexHandler)
	}
	s.logger.Debug("MCP tools registered", slog.Int("count", len(s.ListTools())))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	results, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: make([]SearchResultOutput, 0, len(results)),
	}
	for _, r := range results {
		output.Results = append(output.Results, ToSearchResultOutput(r))
	}
	return nil, output, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	output, err := s.indexStatus(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// mcpReindexHandler is the MCP SDK handler for the reindex tool.
func (s *Server) mcpReindexHandler(_ context.Context, _ *mcp.CallToolRequest, _ ReindexInput) (
	*mcp.CallToolResult,
	*RebuildInfo,
	error,
) {
	info, err := s.reindex()
	if err != nil {
		return nil, nil, err
	}
	return nil, info, nil
}

// Serve runs the server over the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		s.mu.Lock()
		s.baseCtx = ctx
		s.mu.Unlock()

		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
