package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlc/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // rewrite golden files from the current outcomes
	Filter string // glob over scenario names
}

// GoldenStatus is the outcome of comparing a scenario with its golden file.
type GoldenStatus string

const (
	GoldenMatch   GoldenStatus = "match"
	GoldenChanged GoldenStatus = "changed"
	GoldenMissing GoldenStatus = "missing"
	GoldenUpdated GoldenStatus = "updated"
)

// ScenarioReport is the outcome of one scenario file.
type ScenarioReport struct {
	Name   string       `json:"name"`
	File   string       `json:"file"`
	Pass   bool         `json:"pass"`
	Cases  int          `json:"cases"`
	Golden GoldenStatus `json:"golden,omitempty"`
	// Changed lists the cases whose outcome differs from the golden file.
	Changed []string `json:"changed,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// SuiteReport is the outcome of a scenarios directory.
type SuiteReport struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Cases     int              `json:"cases"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run compile scenarios",
		Long: `Run YAML compile scenarios and compare their outcomes with golden files.

Golden files live in a "golden" directory next to the scenarios
directory, named after the scenario. Scenarios without a golden file
are validated by their assertions only.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  aqlc test ./testdata/scenarios
  aqlc test ./testdata/scenarios --filter "paging*"
  aqlc test ./testdata/scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	if opts.Filter != "" {
		if _, err := path.Match(opts.Filter, ""); err != nil {
			return WrapExitError(ExitCommandError, "invalid filter", err)
		}
	}
	files, err := harness.ScenarioFiles(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "list scenarios", err)
	}

	var text io.Writer = io.Discard
	if opts.Format != "json" {
		text = cmd.OutOrStdout()
	}

	h := harness.New(newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	suite := SuiteReport{Scenarios: []ScenarioReport{}}
	for _, file := range files {
		s, err := harness.LoadScenario(file)
		if err != nil {
			rep := ScenarioReport{Name: filepath.Base(file), File: file, Errors: []string{err.Error()}}
			suite.add(rep)
			printReport(text, rep)
			continue
		}
		if opts.Filter != "" {
			if ok, _ := path.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		rep := runScenario(cmd, h, opts.Update, file, s)
		suite.add(rep)
		printReport(text, rep)
	}

	if opts.Format == "json" {
		return writeSuiteJSON(cmd.OutOrStdout(), suite)
	}
	return writeSuiteSummary(cmd.OutOrStdout(), suite)
}

func (s *SuiteReport) add(rep ScenarioReport) {
	s.Scenarios = append(s.Scenarios, rep)
	s.Cases += rep.Cases
	if rep.Pass {
		s.Passed++
	} else {
		s.Failed++
	}
}

// runScenario compiles the cases of s and compares them with the golden
// file. Failing assertions skip the golden comparison.
func runScenario(cmd *cobra.Command, h *harness.Harness, update bool, file string, s *harness.Scenario) ScenarioReport {
	rep := ScenarioReport{Name: s.Name, File: file, Cases: len(s.Cases)}

	res, err := h.Run(cmd.Context(), s)
	if err != nil {
		rep.Errors = []string{err.Error()}
		return rep
	}
	if !res.Pass {
		rep.Errors = res.Errors
		return rep
	}

	current, err := harness.Snapshot(s.Name, res)
	if err != nil {
		rep.Errors = []string{fmt.Sprintf("snapshot: %v", err)}
		return rep
	}
	goldenPath := goldenFilePath(file, s.Name)

	if update {
		if err := writeGolden(goldenPath, current); err != nil {
			rep.Errors = []string{err.Error()}
			return rep
		}
		rep.Pass, rep.Golden = true, GoldenUpdated
		return rep
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		rep.Pass, rep.Golden = true, GoldenMissing
		return rep
	case err != nil:
		rep.Errors = []string{fmt.Sprintf("read golden file: %v", err)}
		return rep
	case bytes.Equal(golden, current):
		rep.Pass, rep.Golden = true, GoldenMatch
		return rep
	}

	rep.Golden = GoldenChanged
	changed, err := harness.DiffGolden(golden, current)
	if err != nil {
		rep.Errors = []string{fmt.Sprintf("golden file unreadable (run with --update to regenerate): %v", err)}
		return rep
	}
	rep.Changed = changed
	if len(changed) == 0 {
		rep.Errors = []string{"golden file differs in layout (run with --update to regenerate)"}
	} else {
		rep.Errors = []string{fmt.Sprintf("golden file mismatch in %s (run with --update to regenerate)", strings.Join(changed, ", "))}
	}
	return rep
}

func writeGolden(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("update golden file: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("update golden file: %w", err)
	}
	return nil
}

// goldenFilePath returns the golden file of a scenario: a "golden"
// directory next to the scenarios directory.
func goldenFilePath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(filepath.Dir(scenarioFile)), "golden", name+".golden")
}

func printReport(w io.Writer, rep ScenarioReport) {
	if !rep.Pass {
		fmt.Fprintf(w, "✗ %s\n", rep.Name)
		for _, e := range rep.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	note := ""
	switch rep.Golden {
	case GoldenUpdated:
		note = ", golden updated"
	case GoldenMissing:
		note = ", no golden file"
	}
	fmt.Fprintf(w, "✓ %s (%d cases%s)\n", rep.Name, rep.Cases, note)
}

func writeSuiteJSON(w io.Writer, suite SuiteReport) error {
	resp := CLIResponse{Status: "ok", Data: suite}
	if suite.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    ErrCodeScenarioFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", suite.Failed),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return suiteExit(suite)
}

func writeSuiteSummary(w io.Writer, suite SuiteReport) error {
	if len(suite.Scenarios) == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d cases\n", suite.Passed, suite.Failed, suite.Cases)
	return suiteExit(suite)
}

func suiteExit(suite SuiteReport) error {
	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}
	return nil
}
