package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mojify/internal/logging"
	mcpserver "github.com/Aman-CERP/mojify/internal/mcp"
)

func newMCPCmd(g *globalOptions) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI clients",
		Long: `Start a Model Context Protocol server on stdio.

Tools: search, index_status and, when the catalog is reachable, reindex.
Nothing but JSON-RPC is written to stdout; logs go to ~/.mojify/logs/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), g, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")

	return cmd
}

func runMCP(ctx context.Context, g *globalOptions, transport string) error {
	cfg, err := loadConfig(g.dir)
	if err != nil {
		return err
	}

	// stdout belongs to the protocol.
	logger, cleanup, err := logging.Setup(logging.StdioConfig())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	a, err := openApp(ctx, cfg, logger, catalogOptional)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	rebuilder := a.rebuilder()
	if rebuilder != nil {
		defer rebuilder.Stop()
	}

	srv, err := mcpserver.NewServer(mcpserver.Dependencies{
		Searcher:   a.dispatcher,
		Parents:    a.parents(),
		Rebuilder:  rebuilder,
		Capability: a.capability,
		Lexical:    a.stores.Lexical,
		Embeddings: a.stores.Embeddings,
		Runs:       a.stores.Runs,
	}, cfg, logger)
	if err != nil {
		return err
	}
	srv.SetMetrics(a.metrics)

	return srv.Serve(ctx, transport)
}
