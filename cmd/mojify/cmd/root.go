// Package cmd provides the CLI commands for mojify.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mojierrors "github.com/Aman-CERP/mojify/internal/errors"
	"github.com/Aman-CERP/mojify/internal/logging"
	"github.com/Aman-CERP/mojify/internal/profiling"
	"github.com/Aman-CERP/mojify/pkg/version"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	dir     string
	debug   bool
	profile profiling.Options

	profiler       *profiling.Session
	loggingCleanup func()
}

// NewRootCmd creates the root command for the mojify CLI.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "mojify",
		Short: "Hybrid search over the mojify voting catalog",
		Long: `mojify indexes the prompts, agents and proposals of the voting backend
and answers free-text queries by fusing BM25 keyword ranking with
embedding similarity (Reciprocal Rank Fusion).

Run 'mojify index' once, then 'mojify serve' for the HTTP API or
'mojify mcp' for AI clients.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("mojify version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&g.dir, "dir", "C", ".", "Project directory holding .mojify.yaml")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging to ~/.mojify/logs/")
	cmd.PersistentFlags().StringVar(&g.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = g.start
	cmd.PersistentPostRunE = g.stop

	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newIndexCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newMCPCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newDoctorCmd(g))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// start enables debug logging and profiling when requested.
func (g *globalOptions) start(_ *cobra.Command, _ []string) error {
	if g.debug {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		g.loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if g.profile.Enabled() {
		p, err := profiling.Start(g.profile)
		if err != nil {
			return err
		}
		g.profiler = p
	}
	return nil
}

// stop flushes profiles and closes the debug log.
func (g *globalOptions) stop(_ *cobra.Command, _ []string) error {
	err := g.profiler.Stop()
	g.profiler = nil

	if g.loggingCleanup != nil {
		slog.Info("debug_logging_stopped")
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
	return err
}

// commandLogger returns the logger for one-shot commands: the debug logger
// when --debug is set, otherwise one that only reports warnings to stderr.
func (g *globalOptions) commandLogger(cmd *cobra.Command) *slog.Logger {
	if g.debug {
		return slog.Default()
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), mojierrors.FormatForCLI(err))
	}
	return err
}
