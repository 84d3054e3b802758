package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	InputOptions
}

// CheckResult is the JSON form of a successful check.
type CheckResult struct {
	Supported bool   `json:"supported"`
	Query     string `json:"query"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [query]",
		Short: "Check whether a query is supported",
		Long: `Run the pre-passes and the feature checks without building SQL.

Exit codes:
  0 - Query supported
  1 - Query rejected
  2 - Command error`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}
	addInputFlags(cmd, &opts.InputOptions)
	return cmd
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := newSetup(opts.RootOptions, opts.InputOptions, args, cmd)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	defer s.close()

	if err := s.comp.Check(s.query, s.params, page(-1, -1)); err != nil {
		return formatter.QueryError(err)
	}
	if formatter.Format == "json" {
		return formatter.Success(CheckResult{Supported: true, Query: s.query})
	}
	fmt.Fprintln(formatter.Writer, "✓ Query is supported")
	return nil
}
