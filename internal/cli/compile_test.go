package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCompile_Text(t *testing.T) {
	out, err := execute(t, "compile", "SELECT c/uid/value FROM COMPOSITION c WHERE c/name/value = 'Vital signs'")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SELECT "))
	assert.Contains(t, out, "Args:")
	assert.Contains(t, out, "= Vital signs (string)")
}

func TestCompile_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "compile", "--fetch", "10", "SELECT c/uid/value AS id FROM COMPOSITION c")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, resp.Data.SQL, "LIMIT $")
	assert.Equal(t, "SELECT c/uid/value AS id FROM COMPOSITION c LIMIT 10", resp.Data.AQL)
	require.Len(t, resp.Data.Columns, 1)
	assert.Equal(t, "id", resp.Data.Columns[0].Name)
	require.NotNil(t, resp.Data.Limit)
	assert.Equal(t, int64(10), *resp.Data.Limit)
	assert.Nil(t, resp.Data.Plan)
}

func TestCompile_Explain(t *testing.T) {
	out, err := execute(t, "--format", "json", "compile", "--explain", "SELECT c/uid/value FROM COMPOSITION c")
	require.NoError(t, err)

	var resp struct {
		Data CompilationOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.Data.Plan)
	assert.Len(t, resp.Data.Fingerprint, 64)
}

func TestCompile_ParamsAndConfigFiles(t *testing.T) {
	dir := t.TempDir()
	params := writeFile(t, dir, "params.yaml", "name: Vital signs\n")
	cfg := writeFile(t, dir, "options.cue", "default_limit: 25\n")

	out, err := execute(t, "--format", "json", "compile",
		"--params", params, "--config", cfg,
		"SELECT c/uid/value FROM COMPOSITION c WHERE c/name/value = $name")
	require.NoError(t, err)

	var resp struct {
		Data CompilationOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "SELECT c/uid/value FROM COMPOSITION c WHERE c/name/value = 'Vital signs' LIMIT 25", resp.Data.AQL)
}

func TestCompile_QueryFromFile(t *testing.T) {
	dir := t.TempDir()
	query := writeFile(t, dir, "query.aql", "SELECT e/ehr_id/value\nFROM EHR e\n")
	outFile := filepath.Join(dir, "out.sql")

	out, err := execute(t, "compile", "--file", query, "--output", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote SQL to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "SELECT "))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
		exit int
	}{
		{"parse", []string{"compile", "SELEC c"}, ErrCodeParse, ExitFailure},
		{"missing parameter", []string{"compile", "SELECT c/uid/value FROM COMPOSITION c WHERE c/name/value = $name"}, ErrCodeParameter, ExitFailure},
		{"not implemented", []string{"compile", "SELECT f/uid/value FROM FOLDER f"}, ErrCodeNotImplemented, ExitFailure},
		{"paging", []string{"compile", "--offset", "5", "SELECT c/uid/value FROM COMPOSITION c"}, ErrCodePagination, ExitFailure},
		{"no query", []string{"compile"}, ErrCodeGeneric, ExitCommandError},
		{"missing file", []string{"compile", "--file", "/nonexistent/query.aql"}, ErrCodeNotFound, ExitCommandError},
		{"missing config", []string{"compile", "--config", "/nonexistent/options.yaml", "SELECT c FROM COMPOSITION c"}, ErrCodeConfig, ExitCommandError},
		{"missing knowledge", []string{"compile", "--knowledge", "/nonexistent/k.db", "SELECT c FROM COMPOSITION c"}, ErrCodeNotFound, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestCheck(t *testing.T) {
	out, err := execute(t, "check", "SELECT c/uid/value FROM COMPOSITION c")
	require.NoError(t, err)
	assert.Contains(t, out, "Query is supported")

	_, err = execute(t, "check", "SELECT f/uid/value FROM FOLDER f")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "normalized",
			args: []string{"render", "select c/uid/value from COMPOSITION c order by c/uid/value descending"},
			want: "SELECT c/uid/value FROM COMPOSITION c ORDER BY c/uid/value DESC",
		},
		{
			name: "ehr status rewrite",
			args: []string{"render", "SELECT e/ehr_status/is_queryable FROM EHR e"},
			want: "SELECT s/is_queryable FROM EHR e CONTAINS EHR_STATUS s",
		},
		{
			name: "raw",
			args: []string{"render", "--raw", "SELECT e/ehr_status/is_queryable FROM EHR e"},
			want: "SELECT e/ehr_status/is_queryable FROM EHR e",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestRender_Stdin(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader("SELECT c FROM COMPOSITION c\n"))
	cmd.SetArgs([]string{"render", "--file", "-"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "SELECT c FROM COMPOSITION c\n", out.String())
}

func TestTemplates_ImportListAndCompile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "templates.db")
	file := writeFile(t, dir, "templates.yaml", `templates:
  - template_id: vital_signs.v1
    archetypes: [openEHR-EHR-COMPOSITION.encounter.v1]
  - template_id: lab_report.v1
    archetypes: [openEHR-EHR-COMPOSITION.report-result.v1]
`)

	out, err := execute(t, "templates", "import", "--db", db, file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 template(s)")

	out, err = execute(t, "templates", "list", "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "lab_report.v1"))
	assert.True(t, strings.HasSuffix(lines[1], "vital_signs.v1"))

	out, err = execute(t, "compile", "--knowledge", db,
		"SELECT c/archetype_details/template_id/value FROM COMPOSITION c")
	require.NoError(t, err)
	assert.Contains(t, out, "lab_report.v1 (string)")
}
