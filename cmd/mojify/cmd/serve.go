package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mojify/internal/async"
	"github.com/Aman-CERP/mojify/internal/logging"
	"github.com/Aman-CERP/mojify/internal/server"
	"github.com/Aman-CERP/mojify/internal/watcher"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	addr    string
	watch   bool
	reindex bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP search API",
		Long: `Start the HTTP API:

  GET  /api/search?q=&limit=&type=   hybrid search
  POST /api/search/reindex           start a background rebuild
  GET  /api/search/reindex           rebuild progress
  GET  /health                       liveness and embedder state
  GET  /metrics                      Prometheus metrics

With --watch the index is rebuilt after writes to the catalog settle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default from config, :8000)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rebuild when the catalog database changes")
	cmd.Flags().BoolVar(&opts.reindex, "reindex", false, "Rebuild the index in the background at startup")

	return cmd
}

func runServe(ctx context.Context, g *globalOptions, cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadConfig(g.dir)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if cmd.Flags().Changed("watch") {
		cfg.Server.Watch = opts.watch
	}
	if cmd.Flags().Changed("reindex") {
		cfg.Server.ReindexOnStart = opts.reindex
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if g.debug {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	a, err := openApp(ctx, cfg, logger, catalogOptional)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	status := a.resolveEmbedder(ctx)
	logger.Info("server_ready",
		slog.String("catalog", cfg.Storage.CatalogPath),
		slog.String("backend", string(a.stores.Backend)),
		slog.Bool("semantic", status.Available))

	rebuilder := a.rebuilder()
	if rebuilder != nil {
		defer rebuilder.Stop()
	}

	srv, err := server.NewServer(server.Dependencies{
		Searcher:   a.dispatcher,
		Parents:    a.parents(),
		Rebuilder:  rebuilder,
		Capability: a.capability,
	}, server.Config{
		Addr:         cfg.Server.Addr,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
	}, logger)
	if err != nil {
		return err
	}

	if rebuilder != nil && cfg.Server.ReindexOnStart {
		startRebuild(ctx, rebuilder, logger, "startup")
	}
	if rebuilder != nil && cfg.Server.Watch {
		w, err := watcher.NewCatalogWatcher(cfg.Storage.CatalogPath, watcher.Options{
			DebounceWindow: cfg.Debounce(),
		})
		if err != nil {
			return fmt.Errorf("failed to watch catalog: %w", err)
		}
		defer func() { _ = w.Stop() }()
		go watchCatalog(ctx, w, rebuilder, logger)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return <-errCh
}

// watchCatalog rebuilds after each settled batch of catalog writes.
func watchCatalog(ctx context.Context, w *watcher.CatalogWatcher, rebuilder *async.Rebuilder, logger *slog.Logger) {
	go func() {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watcher_failed", slog.String("error", err.Error()))
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				logger.Warn("watcher_error", slog.String("error", err.Error()))
			}
		}
	}()

	logger.Info("watcher_started",
		slog.Bool("polling", w.Polling()))
	watcher.OnChange(ctx, w.Events(), func(batch []watcher.FileEvent) {
		logger.Debug("catalog_changed", slog.Int("events", len(batch)))
		startRebuild(ctx, rebuilder, logger, "watcher")
	})
}

// startRebuild starts a background rebuild; one already running is left alone.
func startRebuild(ctx context.Context, rebuilder *async.Rebuilder, logger *slog.Logger, trigger string) {
	snap, err := rebuilder.Start(ctx)
	if err != nil {
		logger.Info("rebuild_skipped",
			slog.String("trigger", trigger),
			slog.String("running_run_id", snap.RunID),
			slog.String("reason", err.Error()))
		return
	}
	logger.Info("rebuild_triggered",
		slog.String("trigger", trigger),
		slog.String("run_id", snap.RunID))
}
