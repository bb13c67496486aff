package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mojify/internal/index"
	"github.com/Aman-CERP/mojify/internal/ui"
)

type indexOptions struct {
	plain   bool
	noColor bool
}

func newIndexCmd(g *globalOptions) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the search index from the catalog",
		Long: `Rebuild the search index from the voting backend database.

Every prompt, agent and proposal is re-read; the lexical index is rebuilt
and, when an embedding model is available, every entity is re-embedded.
Searches keep working while the rebuild runs.

Examples:
  mojify index
  DATABASE_URL=/srv/mojify.db mojify index --plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain line output (no progress bar)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, g *globalOptions, opts indexOptions) error {
	cfg, err := loadConfig(g.dir)
	if err != nil {
		return err
	}
	logger := g.commandLogger(cmd)

	a, err := openApp(ctx, cfg, logger, catalogRequired)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	status := a.resolveEmbedder(ctx)
	if !status.Available {
		renderer.AddError(ui.ErrorEvent{
			Err:    fmt.Errorf("embedding model unavailable (%s), building a lexical-only index", status.Reason),
			IsWarn: true,
		})
	}

	res, err := a.indexer.Run(ctx, index.RunOptions{Progress: ui.ProgressFunc(renderer)})
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}
	if status.Available && res.Embedded < res.Entities {
		renderer.AddError(ui.ErrorEvent{
			Err:    fmt.Errorf("%d entities could not be embedded and are keyword-searchable only", res.Entities-res.Embedded),
			IsWarn: true,
		})
	}

	counts := make(map[string]int, len(res.Counts))
	for t, n := range res.Counts {
		counts[string(t)] = n
	}
	renderer.Complete(ui.CompletionStats{
		RunID:    res.RunID,
		Entities: res.Entities,
		Embedded: res.Embedded,
		Counts:   counts,
		Duration: res.Duration,
		Model:    res.Model,
	})
	return nil
}
