package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/avantgardnerio/hermitage/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Sessions int
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Scenarios int      `json:"scenarios"`
	Errors    []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scenarios-dir>",
		Short: "Validate scenario files without a database",
		Long: `Validate scenario files without connecting to a backend.

Checks YAML structure, every statement's annotation, block/unblock pairing
and that every session label fits the given session count.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Sessions, "sessions", 3, "number of sessions the scenarios will run with")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	f := opts.outputFormatter(cmd)

	if opts.Sessions < 2 {
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--sessions must be at least 2, got %d", opts.Sessions), nil)
	}

	scenarios, err := harness.LoadScenarios(dir)
	if errors.Is(err, fs.ErrNotExist) && len(scenarios) == 0 {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}

	messages := flattenErrors(err)
	for _, sc := range scenarios {
		f.VerboseLog("Validating scenario: %s", sc.Name)
		if err := sc.Validate(opts.Sessions); err != nil {
			messages = append(messages, fmt.Sprintf("%s: %v", sc.Path, err))
		}
	}

	result := ValidationResult{
		Valid:     len(messages) == 0,
		Scenarios: len(scenarios),
		Errors:    messages,
	}
	if result.Valid && result.Scenarios == 0 {
		result.Valid = false
		result.Errors = []string{fmt.Sprintf("no scenario files found in %s", dir)}
	}

	if result.Valid {
		if f.JSON() {
			return f.Success(result)
		}
		fmt.Fprintf(f.Writer, "✓ All %d scenario(s) valid\n", result.Scenarios)
		return nil
	}

	msg := fmt.Sprintf("validation failed with %d error(s)", len(result.Errors))
	if f.JSON() {
		if err := f.Failure(ErrCodeInvalidScript, result.Errors[0], result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	fmt.Fprintln(f.Writer)
	for _, e := range result.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e)
	}
	return NewExitError(ExitFailure, msg)
}

// flattenErrors splits a joined error into one message per file.
func flattenErrors(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
