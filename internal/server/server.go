// Package server exposes search over HTTP: the query endpoint, operator
// reindex triggers, health and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/mojify/internal/async"
	"github.com/Aman-CERP/mojify/internal/embed"
	"github.com/Aman-CERP/mojify/internal/search"
)

// ParentLookup maps proposal ids to their parent prompt ids.
type ParentLookup interface {
	ParentPromptIDs(ctx context.Context, proposalIDs []string) (map[string]string, error)
}

// Dependencies are the collaborators of a Server.
type Dependencies struct {
	Searcher search.Searcher

	// Parents enriches proposal hits with prompt_id. Optional.
	Parents ParentLookup

	// Rebuilder backs the reindex endpoints. Optional; without it the
	// endpoints are not registered.
	Rebuilder *async.Rebuilder

	// Capability is reported by /health. Optional.
	Capability *embed.Capability
}

// Config holds HTTP server configuration.
type Config struct {
	Addr string

	DefaultLimit int
	MaxLimit     int
}

// Server provides the HTTP endpoints.
type Server struct {
	echo      *echo.Echo
	searcher  search.Searcher
	parents   ParentLookup
	rebuilder *async.Rebuilder
	caps      *embed.Capability
	config    Config
	logger    *slog.Logger

	// baseCtx outlives requests; background rebuilds run under it.
	baseCtx context.Context
}

// NewServer creates a server and registers its routes.
func NewServer(deps Dependencies, cfg Config, logger *slog.Logger) (*Server, error) {
	if deps.Searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = min(20, cfg.MaxLimit)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Debug("http_request",
				slog.String("method", c.Request().Method),
				slog.String("uri", c.Request().RequestURI),
				slog.Int("status", c.Response().Status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
			return nil
		}
	})

	s := &Server{
		echo:      e,
		searcher:  deps.Searcher,
		parents:   deps.Parents,
		rebuilder: deps.Rebuilder,
		caps:      deps.Capability,
		config:    cfg,
		logger:    logger,
		baseCtx:   context.Background(),
	}
	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api/search")
	api.GET("", s.handleSearch)
	if s.rebuilder != nil {
		api.POST("/reindex", s.handleReindex)
		api.GET("/reindex", s.handleReindexStatus)
	}
}

// Echo returns the underlying router.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves until Shutdown. Background rebuilds started through the API
// are cancelled when ctx is.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	s.logger.Info("http_server_starting", slog.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http_server_stopping")
	return s.echo.Shutdown(ctx)
}
