package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/prepass"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	File   string
	Params string
	Raw    bool
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render [query]",
		Short: "Print the normalized AQL of a query",
		Long: `Parse a query and print it in normalized form.

Unless --raw is given, EHR status paths are rewritten into containments
and parameters from --params are substituted, as the compiler does.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", `read the query from a file ("-" for stdin)`)
	cmd.Flags().StringVarP(&opts.Params, "params", "p", "", "YAML or JSON file with query parameters")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "only parse and render")
	return cmd
}

func runRender(opts *RenderOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	text, err := readQuery(args, opts.File, cmd.InOrStdin())
	if err != nil {
		return outputLoadError(formatter, err)
	}
	params, err := readParams(opts.Params)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	q, err := aql.Parse(text)
	if err != nil {
		return formatter.QueryError(err)
	}
	if !opts.Raw {
		if q, err = prepass.RewriteEHRPaths(q); err != nil {
			return formatter.QueryError(err)
		}
		if params != nil {
			if q, err = prepass.SubstituteParameters(q, params); err != nil {
				return formatter.QueryError(err)
			}
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"aql": q.Render()})
	}
	fmt.Fprintln(formatter.Writer, q.Render())
	return nil
}
