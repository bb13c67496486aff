package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Aman-CERP/mojify/internal/async"
	"github.com/Aman-CERP/mojify/internal/embed"
	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
	"github.com/Aman-CERP/mojify/internal/search"
	"github.com/Aman-CERP/mojify/internal/store"
)

// SearchResponse is the response body for GET /api/search.
type SearchResponse struct {
	Query   string           `json:"query"`
	Results []*search.Result `json:"results"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Embedder *embed.Status          `json:"embedder,omitempty"`
	Rebuild  *async.ProgressSnapshot `json:"rebuild,omitempty"`
}

// ErrorResponse wraps an error body.
type ErrorResponse struct {
	Error mojierrors.JSONError `json:"error"`
}

// handleHealth reports liveness with the embedder and rebuild state.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.caps != nil {
		st := s.caps.Status()
		resp.Embedder = &st
	}
	if s.rebuilder != nil {
		snap := s.rebuilder.Status()
		resp.Rebuild = &snap
	}
	return c.JSON(http.StatusOK, resp)
}

// handleSearch runs a hybrid search.
//
//	GET /api/search?q=launch&limit=10&type=prompt,agent
func (s *Server) handleSearch(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return s.errorJSON(c, mojierrors.New(mojierrors.ErrCodeQueryEmpty, "query parameter q is required", nil))
	}

	limit := s.config.DefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > s.config.MaxLimit {
			return s.errorJSON(c, mojierrors.New(mojierrors.ErrCodeInvalidLimit,
				fmt.Sprintf("limit must be an integer between 1 and %d", s.config.MaxLimit), err))
		}
		limit = n
	}
	types := store.ParseEntityTypes(c.QueryParam("type"))

	ctx := c.Request().Context()
	results, err := s.searcher.Search(ctx, q, search.Options{Limit: limit, Types: types})
	if err != nil {
		return s.errorJSON(c, err)
	}
	s.enrichProposals(c, results)

	return c.JSON(http.StatusOK, SearchResponse{Query: q, Results: results})
}

// enrichProposals sets PromptID on proposal hits. A failed lookup leaves
// them unset.
func (s *Server) enrichProposals(c echo.Context, results []*search.Result) {
	if s.parents == nil {
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

	parents, err := s.parents.ParentPromptIDs(c.Request().Context(), ids)
	if err != nil {
		s.logger.Warn("prompt_lookup_failed",
			slog.Int("proposals", len(ids)),
			slog.String("error", err.Error()))
		return
	}
	for _, r := range results {
		if r.EntityType == store.EntityProposal {
			r.PromptID = parents[r.EntityID]
		}
	}
}

// handleReindex starts a background rebuild.
func (s *Server) handleReindex(c echo.Context) error {
	snap, err := s.rebuilder.Start(s.baseCtx)
	if err != nil {
		return s.errorJSON(c, err)
	}
	s.logger.Info("reindex_requested", slog.String("run_id", snap.RunID))
	return c.JSON(http.StatusAccepted, snap)
}

// handleReindexStatus reports the current or last rebuild.
func (s *Server) handleReindexStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.rebuilder.Status())
}

func (s *Server) errorJSON(c echo.Context, err error) error {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request_failed", append([]any{
			slog.String("uri", c.Request().RequestURI),
			slog.Int("status", status),
		}, mojierrors.LogAttrs(err)...)...)
	}
	if status == http.StatusServiceUnavailable {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(status, ErrorResponse{Error: mojierrors.ToJSONError(err)})
}
