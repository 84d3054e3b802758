package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "options.cue"), []byte("default_limit: 10\n"), 0644))
	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
config: options.cue
cases:
  - name: uid
    query: SELECT c/uid/value FROM COMPOSITION c
    params:
      ids: [1, 2]
    page:
      fetch: 5
    assertions:
      - type: sql_contains
        value: comp_data
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(dir, "options.cue"), scenario.Config)
	require.Len(t, scenario.Cases, 1)
	c := scenario.Cases[0]
	assert.Equal(t, "uid", c.Name)
	assert.Equal(t, []any{1, 2}, c.Params["ids"])
	require.NotNil(t, c.Page.Fetch)
	assert.Equal(t, int64(5), *c.Page.Fetch)
	assert.Nil(t, c.Page.Offset)
	assert.Equal(t, AssertSQLContains, c.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		msg     string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: y\ncase: []\n",
			msg:     "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "description: y\ncases: [{name: a, query: q}]\n",
			msg:     "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\ncases: [{name: a, query: q}]\n",
			msg:     "description is required",
		},
		{
			name:    "no cases",
			content: "name: x\ndescription: y\n",
			msg:     "cases list is required",
		},
		{
			name:    "missing query",
			content: "name: x\ndescription: y\ncases: [{name: a}]\n",
			msg:     "cases[0]: query is required",
		},
		{
			name:    "duplicate case",
			content: "name: x\ndescription: y\ncases: [{name: a, query: q}, {name: a, query: q}]\n",
			msg:     `cases[1]: duplicate name "a"`,
		},
		{
			name:    "missing config file",
			content: "name: x\ndescription: y\nconfig: nope.yaml\ncases: [{name: a, query: q}]\n",
			msg:     "file not found",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: y\ncases: [{name: a, query: q, assertions: [{type: rows}]}]\n",
			msg:     `unknown assertion type "rows"`,
		},
		{
			name:    "unknown error kind",
			content: "name: x\ndescription: y\ncases: [{name: a, query: q, assertions: [{type: error_kind, value: BOOM}]}]\n",
			msg:     `unknown error kind "BOOM"`,
		},
		{
			name:    "columns without values",
			content: "name: x\ndescription: y\ncases: [{name: a, query: q, assertions: [{type: columns}]}]\n",
			msg:     "values are required for columns",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)
	assert.Equal(t, "basic", scenarios[0].Name)
	assert.Equal(t, filepath.Join("testdata", "templates.yaml"), scenarios[0].Templates)
}

func TestScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"paging.yaml", "params.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0755))

	files, err := ScenarioFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "paging.yaml"), filepath.Join(dir, "params.yml")}, files)

	_, err = ScenarioFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
