package cmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mojify/internal/preflight"
)

type doctorOptions struct {
	verbose bool
	json    bool
}

func newDoctorCmd(g *globalOptions) *cobra.Command {
	var opts doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run diagnostics to ensure mojify can index and serve search.

Checks:
  - Data directory write permissions
  - Disk space (100MB minimum)
  - File descriptor limits (1024 minimum)
  - Catalog database and its tables
  - Search index and the last rebuild
  - Embedding model

The index and embedder checks only warn: search falls back to lexical
results when the model is unavailable.`,
		Example: `  # Run diagnostics
  mojify doctor

  # JSON output for scripting
  mojify doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, g, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")

	return cmd
}

// doctorReport is the JSON form of a diagnostics run.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, g *globalOptions, opts doctorOptions) error {
	cfg, err := loadConfig(g.dir)
	if err != nil {
		return err
	}

	checker := preflight.New(cfg,
		preflight.WithVerbose(opts.verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(cmd.Context())

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errors.New("system check failed")
	}
	return nil
}
