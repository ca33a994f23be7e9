package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avantgardnerio/hermitage/internal/backend"
	"github.com/avantgardnerio/hermitage/internal/harness"
	"github.com/avantgardnerio/hermitage/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter string // scenario name filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name       string   `json:"name"`
	Anomaly    string   `json:"anomaly,omitempty"`
	Pass       bool     `json:"pass"`
	Errors     []string `json:"errors,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	RunID      string   `json:"run_id,omitempty"`
}

// RunSummary holds the overall result of a run.
type RunSummary struct {
	Backend   string           `json:"backend"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenarios-dir]",
		Short: "Run anomaly scenarios against a backend",
		Long: `Run every scenario that applies to the configured backend.

Each scenario seeds the test table, drives the sessions through its script
and checks every annotated query and expected error. Runs are recorded in
the history database when one is configured.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad config, unreachable backend, etc.)

Examples:
  hermitage run --backend postgres --dsn "host=localhost user=postgres"
  hermitage run ./scenarios/postgres --filter "g2*"
  hermitage run --backend sqlite --database /tmp/h.db --history runs.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name (glob pattern)")
	addTargetFlags(cmd)
	cmd.Flags().Int("sessions", 0, "number of sessions to open")
	cmd.Flags().Duration("settle", 0, "time a blocking statement gets to reach the lock manager")
	cmd.Flags().Duration("step-delay", 0, "pause between scenario steps")
	cmd.Flags().String("history", "", "path of the run history database")

	return cmd
}

// addTargetFlags registers the connection flags shared by commands that
// talk to a backend.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "backend type (see 'hermitage backends')")
	cmd.Flags().String("dsn", "", "driver connection string, overrides host/port/database/user")
	cmd.Flags().String("host", "", "backend host")
	cmd.Flags().Int("port", 0, "backend port")
	cmd.Flags().String("database", "", "database name or file")
	cmd.Flags().String("user", "", "backend user")
}

func runScenarios(opts *RunOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	f = opts.configuredFormatter(cmd, cfg)
	b, err := cfg.Backend()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	dir := cfg.ScenariosDir
	if len(args) == 1 {
		dir = args[0]
	}
	scenarios, err := selectScenarios(dir, b.Name, opts.Filter)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
		}
		return f.Fail(ExitCommandError, ErrCodeInvalidScript, "failed to load scenarios", err)
	}

	summary := RunSummary{Backend: b.Name, Scenarios: make([]ScenarioResult, 0, len(scenarios))}
	if len(scenarios) == 0 {
		if f.JSON() {
			return f.Success(summary)
		}
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := f.Logger().With(slog.String("backend", b.Name))

	var history *store.Store
	if cfg.History != "" {
		history, err = store.Open(cfg.History)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeHistory, "failed to open history database", err)
		}
		defer func() {
			if closeErr := history.Close(); closeErr != nil {
				logger.Error("error closing history database", slog.String("error", closeErr.Error()))
			}
		}()
	}

	set, err := backend.Connect(ctx, b, cfg.Target, cfg.Sessions, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConnect, fmt.Sprintf("failed to connect to %s", b.Name), err)
	}
	defer func() { _ = set.Close() }()

	fixture := backend.NewFixture(b, logger)
	harnessOpts := []harness.Option{
		harness.WithClassifier(b.Classifier()),
		harness.WithSettle(cfg.Settle),
		harness.WithStepDelay(cfg.StepDelay),
		harness.WithLogger(logger),
	}
	f.VerboseLog("Running %d scenario(s) on %s with %d sessions", len(scenarios), b.Name, cfg.Sessions)

	for _, sc := range scenarios {
		start := time.Now()
		result, err := harness.Run(ctx, set.Sessions(), fixture, sc, harnessOpts...)
		if err != nil {
			result = harness.NewResult(sc.Name)
			result.AddError(err.Error())
		}
		elapsed := time.Since(start)

		sr := ScenarioResult{
			Name:       sc.Name,
			Anomaly:    sc.Anomaly,
			Pass:       result.Pass,
			Errors:     result.Errors,
			DurationMS: elapsed.Milliseconds(),
		}
		if history != nil {
			run, err := history.WriteRun(ctx, store.Run{
				Scenario: sc.Name,
				Backend:  b.Name,
				Anomaly:  sc.Anomaly,
				Pass:     result.Pass,
				Errors:   result.Errors,
				Duration: elapsed,
			}, result.Trace)
			if err != nil {
				logger.Warn("failed to record run", slog.String("scenario", sc.Name), slog.String("error", err.Error()))
			} else {
				sr.RunID = run.ID
			}
		}

		summary.Scenarios = append(summary.Scenarios, sr)
		summary.Total++
		if sr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
		if !f.JSON() {
			writeScenarioLine(f, sr, result)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return outputRunSummary(f, summary)
}

// selectScenarios loads dir and keeps the scenarios that apply to backend
// and match filter.
func selectScenarios(dir, backendName, filter string) ([]*harness.Scenario, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}
	all, err := harness.LoadScenarios(dir)
	if err != nil {
		return nil, err
	}

	selected := make([]*harness.Scenario, 0, len(all))
	for _, sc := range all {
		if !sc.AppliesTo(backendName) {
			continue
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, sc.Name); !ok {
				continue
			}
		}
		selected = append(selected, sc)
	}
	return selected, nil
}

func writeScenarioLine(f *OutputFormatter, sr ScenarioResult, result *harness.Result) {
	w := f.Writer
	label := sr.Name
	if sr.Anomaly != "" {
		label = fmt.Sprintf("%s (%s)", sr.Name, sr.Anomaly)
	}
	if sr.Pass {
		fmt.Fprintf(w, "✓ %s\n", label)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", label)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
	}
	if f.Verbose {
		writeIndented(f.GetErrWriter(), harness.RenderTrace(result))
	}
}

func writeIndented(w io.Writer, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

func outputRunSummary(f *OutputFormatter, summary RunSummary) error {
	if f.JSON() {
		if summary.Failed > 0 {
			msg := fmt.Sprintf("%d scenario(s) failed", summary.Failed)
			if err := f.Failure(ErrCodeScenarioFailed, msg, summary); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return f.Success(summary)
	}

	fmt.Fprintln(f.Writer)
	fmt.Fprintf(f.Writer, "Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	fmt.Fprintln(f.Writer, "✓ All scenarios passed")
	return nil
}
