package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/compile"
	"github.com/roach88/aqlc/internal/querywrapper"
)

func TestCheck(t *testing.T) {
	ok := CaseResult{
		Name:    "ok",
		SQL:     `SELECT "c"."c_vo_id" FROM x LIMIT $1`,
		Args:    []any{int64(10)},
		AQL:     "SELECT c FROM COMPOSITION c LIMIT 10",
		Columns: []compile.Column{{Name: "c", Kind: querywrapper.SelectPath}},
	}
	failed := CaseResult{
		Name:      "failed",
		ErrorKind: aql.KindParameter,
		Error:     "PARAMETER_ERROR: Missing parameter 'name'",
	}

	tests := []struct {
		name   string
		a      Assertion
		result CaseResult
		pass   bool
	}{
		{"sql contains", Assertion{Type: AssertSQLContains, Value: "LIMIT $1"}, ok, true},
		{"sql contains missing", Assertion{Type: AssertSQLContains, Value: "OFFSET"}, ok, false},
		{"sql not contains", Assertion{Type: AssertSQLNotContains, Value: "OFFSET"}, ok, true},
		{"sql not contains present", Assertion{Type: AssertSQLNotContains, Value: "LIMIT"}, ok, false},
		{"arg count", Assertion{Type: AssertArgCount, Count: 1}, ok, true},
		{"arg count mismatch", Assertion{Type: AssertArgCount, Count: 2}, ok, false},
		{"aql", Assertion{Type: AssertAQL, Value: "SELECT c FROM COMPOSITION c LIMIT 10"}, ok, true},
		{"aql mismatch", Assertion{Type: AssertAQL, Value: "SELECT c FROM COMPOSITION c"}, ok, false},
		{"columns", Assertion{Type: AssertColumns, Values: []string{"c"}}, ok, true},
		{"columns mismatch", Assertion{Type: AssertColumns, Values: []string{"c", "d"}}, ok, false},
		{"error kind", Assertion{Type: AssertErrorKind, Value: "PARAMETER_ERROR"}, failed, true},
		{"error kind mismatch", Assertion{Type: AssertErrorKind, Value: "ILLEGAL_QUERY"}, failed, false},
		{"error kind on success", Assertion{Type: AssertErrorKind, Value: "ILLEGAL_QUERY"}, ok, false},
		{"error contains", Assertion{Type: AssertErrorContains, Value: "'name'"}, failed, true},
		{"sql on failure", Assertion{Type: AssertSQLContains, Value: "SELECT"}, failed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := check(tt.a, tt.result)
			if tt.pass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEvaluate_UnexpectedError(t *testing.T) {
	c := Case{Name: "a", Assertions: []Assertion{{Type: AssertSQLContains, Value: "SELECT"}}}
	failures := evaluate(c, CaseResult{ErrorKind: aql.KindIllegal, Error: "ILLEGAL_QUERY: nope"})
	assert.Equal(t, []string{"unexpected error: ILLEGAL_QUERY: nope"}, failures)
}

func TestAssertionError_Format(t *testing.T) {
	err := mismatch(AssertArgCount, "2", "1")
	assert.Equal(t, "assertion failed: arg_count\n  Expected: 2\n  Actual: 1", err.Error())
}
