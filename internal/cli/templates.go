package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// TemplatesOptions holds flags for the templates commands.
type TemplatesOptions struct {
	*RootOptions
	DB string // knowledge store path
}

// TemplateEntry is one template of the list output.
type TemplateEntry struct {
	UUID       string `json:"uuid"`
	TemplateID string `json:"template_id"`
}

// NewTemplatesCommand creates the templates command group.
func NewTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TemplatesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage the template knowledge store",
		Long: `Manage the SQLite store compile --knowledge reads templates from.

Examples:
  aqlc templates import --db templates.db templates.yaml
  aqlc templates list --db templates.db`,
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "./aqlc-templates.db", "knowledge store path")

	cmd.AddCommand(&cobra.Command{
		Use:           "import <templates.yaml>",
		Short:         "Import template definitions",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesImport(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List known templates",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesList(opts, cmd)
		},
	})
	return cmd
}

func (o *TemplatesOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func runTemplatesImport(opts *TemplatesOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	n, err := importTemplates(cmd.Context(), opts.DB, file)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"imported": n, "db": opts.DB})
	}
	fmt.Fprintf(formatter.Writer, "✓ Imported %d template(s) into %s\n", n, opts.DB)
	return nil
}

func runTemplatesList(opts *TemplatesOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	k, closeFn, err := openKnowledge(opts.DB)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	defer closeFn()

	ids, err := k.TemplateIDs(cmd.Context())
	if err != nil {
		return outputLoadError(formatter, &LoadError{Code: ErrCodeKnowledge, Message: err.Error()})
	}
	entries := make([]TemplateEntry, 0, len(ids))
	for id, templateID := range ids {
		entries = append(entries, TemplateEntry{UUID: id.String(), TemplateID: templateID})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TemplateID < entries[j].TemplateID })

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No templates.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%s  %s\n", e.UUID, e.TemplateID)
	}
	return nil
}
