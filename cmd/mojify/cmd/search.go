package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
	"github.com/Aman-CERP/mojify/internal/search"
	"github.com/Aman-CERP/mojify/internal/store"
	"github.com/Aman-CERP/mojify/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit   int
	types   string // comma list: prompt, agent, proposal
	format  string // "text", "json"
	noColor bool
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search prompts, agents and proposals",
		Long: `Search the index using hybrid search.

Combines BM25 (keyword) and embedding similarity rankings
with Reciprocal Rank Fusion.

Examples:
  mojify search "launch party"
  mojify search coffee --type prompt,proposal --limit 5
  mojify search rocket --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, g, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.types, "type", "t", "", "Filter by entity type: prompt, agent, proposal (comma separated)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, g *globalOptions, query string, opts searchOptions) error {
	if strings.TrimSpace(query) == "" {
		return mojierrors.New(mojierrors.ErrCodeQueryEmpty, "query is required", nil)
	}
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (valid: text, json)", opts.format)
	}

	cfg, err := loadConfig(g.dir)
	if err != nil {
		return err
	}
	if opts.limit < 0 || opts.limit > cfg.Search.MaxLimit {
		return mojierrors.New(mojierrors.ErrCodeInvalidLimit,
			fmt.Sprintf("limit must be between 1 and %d", cfg.Search.MaxLimit), nil)
	}

	logger := g.commandLogger(cmd)
	if !store.Exists(cfg.IndexDBPath()) {
		return fmt.Errorf("no index found in %s. Run 'mojify index' first", cfg.Storage.DataDir)
	}

	a, err := openApp(ctx, cfg, logger, catalogOptional)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	logger.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	results, err := a.dispatcher.Search(ctx, query, search.Options{
		Limit: opts.limit,
		Types: store.ParseEntityTypes(opts.types),
	})
	if err != nil {
		return err
	}
	attachPromptIDs(ctx, a.parents(), results, logger)

	renderer := ui.NewResultsRenderer(cmd.OutOrStdout(), opts.noColor || ui.DetectNoColor())
	if opts.format == "json" {
		return renderer.RenderJSON(query, results)
	}
	return renderer.Render(query, results)
}
