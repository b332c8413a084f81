package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/splitwrite/internal/engine"
	"github.com/roach88/splitwrite/internal/harness"
	"github.com/roach88/splitwrite/internal/metrics"
	"github.com/roach88/splitwrite/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database  string
	Driver    string
	Isolation string
	BatchMode string
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // compare traces with <dir>/<scenario>.golden
	Update    bool   // regenerate golden files
	Metrics   bool   // report Prometheus metrics recorded during the run
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Steps  int      `json:"steps"`
	Errors []string `json:"errors,omitempty"`
}

// RunResult holds the overall run result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
	Metrics   *MetricsReport   `json:"metrics,omitempty"`
}

// Failure implements Report.
func (r RunResult) Failure() *CLIError {
	if r.Failed == 0 {
		return nil
	}
	return &CLIError{
		Code:    ErrCodeScenarioFailed,
		Message: fmt.Sprintf("%d scenario(s) failed", r.Failed),
	}
}

// WriteText implements Report.
func (r RunResult) WriteText(w io.Writer) error {
	if r.Total == 0 {
		_, err := fmt.Fprintln(w, "No scenarios found.")
		return err
	}

	for _, sr := range r.Scenarios {
		if sr.Pass {
			fmt.Fprintf(w, "PASS %s (%d steps)\n", sr.Name, sr.Steps)
			continue
		}
		fmt.Fprintf(w, "FAIL %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	_, err := fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
	if err != nil || r.Metrics == nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\nMetrics:\n%s", r.Metrics.text)
	return err
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario|dir>...",
		Short: "Run split-write scenarios",
		Long: `Run scenario files against a database and check every expectation.

Each scenario gets a private in-memory SQLite database unless --db is given.
Steps run in their own transaction, which is committed on success and
rolled back when the step failed or the engine marked it rollback-only.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, flags, unreachable database)

Examples:
  splitctl run ./scenarios
  splitctl run ./scenarios --filter "batch_*" --batch-mode fail_fast
  splitctl run dog.yaml --driver pgx --db "postgres://localhost/animals"
  splitctl run ./scenarios --golden ./scenarios/golden --update
  splitctl run ./scenarios --metrics --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database DSN (default: private in-memory SQLite)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|sqlite|pgx); overrides the scenario")
	cmd.Flags().StringVar(&opts.Isolation, "isolation", "", "isolation level for every step without its own")
	cmd.Flags().StringVar(&opts.BatchMode, "batch-mode", "", "batch mode (collect|fail_fast); overrides the scenario")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report engine and statement metrics after the run")

	return cmd
}

// harnessOptions translates flags into harness options.
func (o *RunOptions) harnessOptions(logger *slog.Logger) ([]harness.Option, error) {
	opts := []harness.Option{harness.WithLogger(logger)}

	if o.Database != "" || o.Driver != "" {
		opts = append(opts, harness.WithDatabase(o.Driver, o.Database))
	}
	if o.Isolation != "" {
		level, err := store.ParseIsolation(o.Isolation)
		if err != nil {
			return nil, err
		}
		opts = append(opts, harness.WithIsolation(level))
	}
	if o.BatchMode != "" {
		mode, err := engine.ParseBatchMode(o.BatchMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, harness.WithBatchMode(mode))
	}
	return opts, nil
}

func runScenarios(opts *RunOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	hopts, err := opts.harnessOptions(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flag", err)
	}

	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		collector, err := metrics.New(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		hopts = append(hopts, harness.WithMetrics(collector))
	}

	files, err := findScenarioFiles(args, opts.Filter)
	if err != nil {
		if outErr := formatter.Error(ErrCodeLoad, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, file := range files {
		formatter.VerboseLog("Running %s", file)
		sr := runScenario(ctx, opts, file, hopts)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if reg != nil {
		result.Metrics, err = gatherMetrics(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to report metrics", err)
		}
	}

	return formatter.Emit(result)
}

// runScenario loads and executes one scenario file.
func runScenario(ctx context.Context, opts *RunOptions, file string, hopts []harness.Option) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name
	sr.Steps = len(scenario.Steps)

	result, err := harness.Run(ctx, scenario, hopts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Errors = result.Errors

	if opts.GoldenDir != "" {
		if err := checkGolden(opts, scenario.Name, result); err != nil {
			sr.Errors = append(sr.Errors, err.Error())
		}
	}

	sr.Pass = len(sr.Errors) == 0
	return sr
}

// checkGolden compares (or, with --update, rewrites) the scenario's golden trace.
func checkGolden(opts *RunOptions, name string, result *harness.Result) error {
	current, err := harness.Snapshot(name, result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	goldenPath := filepath.Join(opts.GoldenDir, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(goldenPath, current, 0644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	golden, err := os.ReadFile(goldenPath)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(golden, current) {
		return fmt.Errorf("trace does not match golden file %s (run with --update to regenerate)", goldenPath)
	}
	return nil
}
