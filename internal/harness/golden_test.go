package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Basic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/basic.yaml")
	require.NoError(t, err)

	res, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	require.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestDiffGolden(t *testing.T) {
	golden := []byte(`{"cases":[{"aql":"SELECT 1","name":"a"},{"error":"PARSE_ERROR","name":"b"},{"name":"c"}],"scenario":"s"}`)

	changed, err := DiffGolden(golden, golden)
	require.NoError(t, err)
	assert.Empty(t, changed)

	current := []byte(`{"cases":[{"aql":"SELECT 1","name":"a"},{"error":"ILLEGAL_QUERY","name":"b"},{"name":"d"}],"scenario":"s"}`)
	changed, err = DiffGolden(golden, current)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "c"}, changed)

	_, err = DiffGolden([]byte("{}"), []byte(`{"cases":[{}]}`))
	assert.ErrorContains(t, err, "current: cases[0]: missing name")

	_, err = DiffGolden([]byte("not json"), golden)
	assert.ErrorContains(t, err, "golden:")
}
