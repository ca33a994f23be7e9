package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avantgardnerio/hermitage/internal/harness"
	"github.com/avantgardnerio/hermitage/internal/store"
)

// TraceResult holds a recorded run and its statement trace.
type TraceResult struct {
	Run   store.Run            `json:"run"`
	Trace []harness.TraceEvent `json:"trace"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Show the statement trace of a recorded run",
		Long: `Show every statement a recorded run issued, in order, with the
session it ran on, its outcome and the rows a query returned.

Examples:
  hermitage trace --history runs.db 0192f3c4-...
  hermitage trace --history runs.db 0192f3c4-... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, args[0], cmd)
		},
	}

	cmd.Flags().String("history", "", "path of the run history database")

	return cmd
}

func runTrace(opts *RootOptions, runID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := loadHistoryConfig(opts, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	f = opts.configuredFormatter(cmd, cfg)

	st, err := openHistory(cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeHistory, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeHistory, "failed to read run", err)
	}
	result, err := st.ReadResult(ctx, runID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeHistory, "failed to read trace", err)
	}

	if f.JSON() {
		return f.Success(TraceResult{Run: run, Trace: result.Trace})
	}

	fmt.Fprintf(f.Writer, "run: %s\nbackend: %s\nrecorded: %s\n", run.ID, run.Backend, run.RecordedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprint(f.Writer, harness.RenderTrace(result))
	return nil
}
