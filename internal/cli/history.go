package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/avantgardnerio/hermitage/internal/config"
	"github.com/avantgardnerio/hermitage/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Scenario   string
	Backend    string
	FailedOnly bool
	Limit      int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded in the history database, newest first.

Examples:
  hermitage history --history runs.db
  hermitage history --failed --backend mysql --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().String("history", "", "path of the run history database")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only runs of this scenario")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "only runs against this backend")
	cmd.Flags().BoolVar(&opts.FailedOnly, "failed", false, "only failed runs")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of runs (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := loadHistoryConfig(opts.RootOptions, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	f = opts.configuredFormatter(cmd, cfg)

	st, err := openHistory(cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeHistory, "failed to open history database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), store.RunFilter{
		Scenario:   opts.Scenario,
		Backend:    opts.Backend,
		FailedOnly: opts.FailedOnly,
		Limit:      opts.Limit,
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeHistory, "failed to list runs", err)
	}

	if f.JSON() {
		return f.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}

	rows := make([]table.Row, 0, len(runs))
	for _, r := range runs {
		status := "✓"
		if !r.Pass {
			status = "✗"
		}
		rows = append(rows, table.Row{
			r.ID, r.Scenario, r.Backend, r.Anomaly, status,
			r.Duration.String(), r.RecordedAt.Local().Format(time.DateTime),
		})
	}
	f.Table(table.Row{"Run", "Scenario", "Backend", "Anomaly", "Pass", "Duration", "Recorded"}, rows)
	return nil
}

// loadHistoryConfig resolves configuration for the commands that read the
// run history. Only --history feeds the config; their other flags are
// filters.
func loadHistoryConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, error) {
	flags := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	if fl := cmd.Flags().Lookup("history"); fl != nil {
		flags.AddFlag(fl)
	}
	return config.Load(opts.ConfigFile, flags)
}

// openHistory opens the configured history database. It does not create
// one: reading an empty history is a command error.
func openHistory(cfg *config.Config) (*store.Store, error) {
	if cfg.History == "" {
		return nil, fmt.Errorf("no history database configured (set history in hermitage.yaml or pass --history)")
	}
	if _, err := os.Stat(cfg.History); err != nil {
		return nil, err
	}
	return store.Open(cfg.History)
}
