package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlc/internal/compile"
	"github.com/roach88/aqlc/internal/prepass"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	InputOptions
	Fetch   int64
	Offset  int64
	Explain bool
	Output  string // output file path
}

// CompilationOutput is the JSON form of a compiled query.
type CompilationOutput struct {
	SQL         string           `json:"sql"`
	Args        []any            `json:"args"`
	AQL         string           `json:"aql"`
	Columns     []compile.Column `json:"columns"`
	Limit       *int64           `json:"limit,omitempty"`
	Offset      *int64           `json:"offset,omitempty"`
	Plan        json.RawMessage  `json:"plan,omitempty"`
	Fingerprint string           `json:"fingerprint,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [query]",
		Short: "Compile an AQL query to PostgreSQL",
		Long: `Compile an AQL query into a parameterized PostgreSQL statement.

The query is read from the arguments, or from --file ("-" for stdin).
Parameters ($name) are taken from a YAML or JSON --params file.

Exit codes:
  0 - Query compiled
  1 - Query rejected (parse, illegal, not implemented, parameter, paging)
  2 - Command error (unreadable files, invalid config)
  3 - Internal compiler error

Examples:
  aqlc compile "SELECT c/uid/value FROM EHR e CONTAINS COMPOSITION c"
  aqlc compile --file query.aql --params params.yaml --fetch 10
  aqlc compile --knowledge templates.db --explain --format json "SELECT c FROM COMPOSITION c"`,
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	addInputFlags(cmd, &opts.InputOptions)
	cmd.Flags().Int64Var(&opts.Fetch, "fetch", -1, "request fetch parameter (-1 for none)")
	cmd.Flags().Int64Var(&opts.Offset, "offset", -1, "request offset parameter (-1 for none)")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "include the plan description")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the SQL to a file")

	return cmd
}

func addInputFlags(cmd *cobra.Command, opts *InputOptions) {
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", `read the query from a file ("-" for stdin)`)
	cmd.Flags().StringVarP(&opts.Params, "params", "p", "", "YAML or JSON file with query parameters")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "compiler options (.cue or .yaml)")
	cmd.Flags().StringVarP(&opts.Knowledge, "knowledge", "k", "", "SQLite template knowledge store")
}

// page converts the paging flags. Negative values mean absent.
func page(fetch, offset int64) prepass.Page {
	var p prepass.Page
	if fetch >= 0 {
		p.Fetch = &fetch
	}
	if offset >= 0 {
		p.Offset = &offset
	}
	return p
}

// setup holds what compile and check share.
type setup struct {
	query  string
	params map[string]any
	comp   *compile.Compiler
	close  func() error
}

func newSetup(root *RootOptions, in InputOptions, args []string, cmd *cobra.Command) (*setup, error) {
	query, err := readQuery(args, in.File, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	params, err := readParams(in.Params)
	if err != nil {
		return nil, err
	}
	opts, err := readOptions(in.Config)
	if err != nil {
		return nil, err
	}
	k, closeFn, err := openKnowledge(in.Knowledge)
	if err != nil {
		return nil, err
	}
	return &setup{
		query:  query,
		params: params,
		comp: &compile.Compiler{
			Options:   opts,
			Knowledge: k,
			Logger:    newLogger(root, cmd.ErrOrStderr()),
		},
		close: closeFn,
	}, nil
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	s, err := newSetup(opts.RootOptions, opts.InputOptions, args, cmd)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	defer s.close()
	if opts.Explain {
		s.comp.Options.DryRun = true
	}

	formatter.VerboseLog("Compiling: %s", s.query)
	res, err := s.comp.Compile(cmd.Context(), s.query, s.params, page(opts.Fetch, opts.Offset))
	if err != nil {
		return formatter.QueryError(err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(res.Statement.SQL+"\n"), 0644); err != nil {
			return outputLoadError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)})
		}
	}
	return outputCompileSuccess(formatter, res, opts.Output)
}

// outputCompileSuccess outputs the compiled statement.
func outputCompileSuccess(formatter *OutputFormatter, res *compile.Result, outputFile string) error {
	if formatter.Format == "json" {
		out := CompilationOutput{
			SQL:         res.Statement.SQL,
			Args:        res.Statement.Args,
			AQL:         res.AQL,
			Columns:     res.Columns,
			Limit:       res.Limit,
			Offset:      res.Offset,
			Fingerprint: res.Fingerprint,
		}
		if out.Args == nil {
			out.Args = []any{}
		}
		if res.Plan != nil {
			out.Plan = json.RawMessage(res.Plan)
		}
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintln(w, res.Statement.SQL)
	if len(res.Statement.Args) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Args:")
		for i, a := range res.Statement.Args {
			fmt.Fprintf(w, "  $%d = %v (%T)\n", i+1, a, a)
		}
	}
	if res.Plan != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Plan %s:\n", res.Fingerprint)
		fmt.Fprintln(w, string(res.Plan))
	}
	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote SQL to %s\n", outputFile)
	}
	return nil
}

// outputLoadError outputs an input error as a command error (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	if le, ok := err.(*LoadError); ok {
		code, message = le.Code, le.Message
	}
	_ = formatter.Error(code, message, "")
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}
