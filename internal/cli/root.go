// Package cli implements the hermitage command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/avantgardnerio/hermitage/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hermitage CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hermitage",
		Short: "hermitage - transaction isolation anomaly tests",
		Long: `Run scripted multi-session transaction scenarios against a SQL server
and check that the server exhibits or prevents each isolation anomaly.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default hermitage.yaml)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewBackendsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// configuredFormatter applies the resolved format and verbosity to the
// formatter. Flags set on the command line still win.
func (o *RootOptions) configuredFormatter(cmd *cobra.Command, cfg *config.Config) *OutputFormatter {
	f := o.formatter(cmd)
	if !cmd.Flags().Changed("format") {
		f.Format = cfg.Format
	}
	if !cmd.Flags().Changed("verbose") {
		f.Verbose = cfg.Verbose
	}
	return f
}

// outputFormatter is configuredFormatter for commands that need no other
// configuration. A config that fails to load leaves the flag values.
func (o *RootOptions) outputFormatter(cmd *cobra.Command) *OutputFormatter {
	cfg, err := config.Load(o.ConfigFile, nil)
	if err != nil {
		return o.formatter(cmd)
	}
	return o.configuredFormatter(cmd, cfg)
}

// loadConfig resolves configuration with cmd's flags as the top layer.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(o.ConfigFile, cmd.Flags())
}
