package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/testutil"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			res, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, res.Pass, "errors: %v", res.Errors)
			assert.Len(t, res.Cases, len(s.Cases))
		})
	}
}

func TestRun_ReportsFailures(t *testing.T) {
	s := &Scenario{
		Name:        "failing",
		Description: "assertions that do not hold",
		Cases: []Case{
			{
				Name:  "wrong_kind",
				Query: "SELECT c/uid/value FROM COMPOSITION c WHERE c/name/value = $name",
				Assertions: []Assertion{
					{Type: AssertErrorKind, Value: "ILLEGAL_QUERY"},
				},
			},
			{
				Name:  "unexpected_error",
				Query: "SELEC x",
			},
			{
				Name:  "compiles",
				Query: "SELECT c/uid/value FROM COMPOSITION c",
			},
		},
	}

	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "failing/wrong_kind")
	assert.Contains(t, res.Errors[1], "failing/unexpected_error: unexpected error: PARSE_ERROR")
	assert.NotEmpty(t, res.Cases[2].SQL)
}

func TestRun_BadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "options.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("fetch_precedence: SOMETIMES\n"), 0644))

	_, err := Run(context.Background(), &Scenario{
		Name:   "bad",
		Config: cfg,
		Cases:  []Case{{Name: "a", Query: "SELECT c FROM COMPOSITION c"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestHarness_LogsCases(t *testing.T) {
	logger, buf := testutil.CaptureLogger()
	res, err := New(logger).Run(context.Background(), &Scenario{
		Name:  "logged",
		Cases: []Case{{Name: "one", Query: "SELECT c/uid/value FROM COMPOSITION c"}},
	})
	require.NoError(t, err)
	assert.True(t, res.Pass)
	assert.Contains(t, buf.String(), `msg="running case" scenario=logged case=one`)
}

func TestRun_KeepsCaseOrder(t *testing.T) {
	s := &Scenario{Name: "ordered"}
	for i := 0; i < 32; i++ {
		s.Cases = append(s.Cases, Case{
			Name:  fmt.Sprintf("case_%02d", i),
			Query: fmt.Sprintf("SELECT c/uid/value FROM COMPOSITION c LIMIT %d", i+1),
		})
	}

	res, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, res.Pass, "errors: %v", res.Errors)
	require.Len(t, res.Cases, 32)
	for i, cr := range res.Cases {
		assert.Equal(t, fmt.Sprintf("case_%02d", i), cr.Name)
		require.NotNil(t, cr.Limit)
		assert.Equal(t, int64(i+1), *cr.Limit)
	}
}
