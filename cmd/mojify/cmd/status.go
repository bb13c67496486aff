package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mojify/internal/store"
	"github.com/Aman-CERP/mojify/internal/ui"
)

type statusOptions struct {
	json          bool
	checkEmbedder bool
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the search index:
  - Catalog entity counts and whether the index is behind them
  - Lexical entries and stored embeddings
  - Last rebuild time and error
  - Embedding model used by the last rebuild`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.checkEmbedder, "check-embedder", false, "Load the embedding model to verify it")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, g *globalOptions, opts statusOptions) error {
	cfg, err := loadConfig(g.dir)
	if err != nil {
		return err
	}
	if !store.Exists(cfg.IndexDBPath()) {
		return fmt.Errorf("no index found in %s\nRun 'mojify index' to create one", cfg.Storage.DataDir)
	}

	a, err := openApp(ctx, cfg, g.commandLogger(cmd), catalogOptional)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	info, err := collectStatus(ctx, a, opts.checkEmbedder)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if opts.json {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, a *app, checkEmbedder bool) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		CatalogPath:      a.cfg.Storage.CatalogPath,
		Backend:          string(a.stores.Backend),
		EmbedderProvider: a.cfg.Embeddings.Provider,
		IndexSize:        indexSize(a.cfg.IndexDBPath(), a.cfg.BlevePath()),
	}

	var err error
	if info.LexicalEntries, err = a.stores.Lexical.Count(ctx); err != nil {
		return info, err
	}
	if info.Embeddings, err = a.stores.Embeddings.Count(ctx); err != nil {
		return info, err
	}

	if a.catalog != nil {
		counts, err := a.catalog.Counts(ctx)
		if err != nil {
			a.logger.Warn("catalog_count_failed", slog.String("error", err.Error()))
		} else {
			info.CatalogCounts = counts
		}
	}

	run, err := a.stores.Runs.Last(ctx)
	if err != nil {
		return info, err
	}
	if run != nil {
		info.LastIndexed = run.StartedAt
		info.LastError = run.Error
		info.EmbedderModel = run.Model
	}

	switch {
	case strings.EqualFold(a.cfg.Embeddings.Provider, "none"):
		info.EmbedderStatus = "offline"
	case checkEmbedder:
		status := a.resolveEmbedder(ctx)
		if status.Available {
			info.EmbedderStatus = "ready"
			info.EmbedderModel = status.Model
		} else {
			info.EmbedderStatus = "error"
		}
	case info.EmbedderModel != "":
		info.EmbedderStatus = "ready"
	default:
		info.EmbedderStatus = "offline"
	}
	return info, nil
}

// indexSize sums the index database, its WAL and the bleve directory.
func indexSize(dbPath, blevePath string) int64 {
	var total int64
	for _, p := range []string{dbPath, dbPath + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	_ = filepath.WalkDir(blevePath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
