package prepass

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/config"
)

func TestRewriteEHRPaths(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no ehr_status path",
			in:   "SELECT e/ehr_id/value FROM EHR e",
			want: "SELECT e/ehr_id/value FROM EHR e",
		},
		{
			name: "ehr without contains",
			in:   "SELECT e/ehr_status/subject/external_ref/id/value FROM EHR e",
			want: "SELECT s/subject/external_ref/id/value FROM EHR e CONTAINS EHR_STATUS s",
		},
		{
			name: "whole status",
			in:   "SELECT e/ehr_status FROM EHR e",
			want: "SELECT s FROM EHR e CONTAINS EHR_STATUS s",
		},
		{
			name: "existing contains is wrapped",
			in:   "SELECT e/ehr_status/is_queryable, c FROM EHR e CONTAINS COMPOSITION c",
			want: "SELECT s/is_queryable, c FROM EHR e CONTAINS (EHR_STATUS s AND COMPOSITION c)",
		},
		{
			name: "and set is prepended",
			in:   "SELECT e/ehr_status/is_queryable FROM EHR e CONTAINS (COMPOSITION c AND COMPOSITION d)",
			want: "SELECT s/is_queryable FROM EHR e CONTAINS (EHR_STATUS s AND COMPOSITION c AND COMPOSITION d)",
		},
		{
			name: "or set is wrapped",
			in:   "SELECT e/ehr_status/is_queryable FROM EHR e CONTAINS (COMPOSITION c OR COMPOSITION d)",
			want: "SELECT s/is_queryable FROM EHR e CONTAINS (EHR_STATUS s AND (COMPOSITION c OR COMPOSITION d))",
		},
		{
			name: "alias avoids existing s aliases",
			in:   "SELECT e/ehr_status/is_queryable FROM EHR e CONTAINS (COMPOSITION s AND COMPOSITION s3)",
			want: "SELECT s4/is_queryable FROM EHR e CONTAINS (EHR_STATUS s4 AND COMPOSITION s AND COMPOSITION s3)",
		},
		{
			name: "predicates move to containment",
			in:   "SELECT e/ehr_status[openEHR-EHR-EHR_STATUS.generic.v1]/is_queryable FROM EHR e WHERE e/ehr_status[openEHR-EHR-EHR_STATUS.generic.v1]/is_modifiable = true",
			want: "SELECT s/is_queryable FROM EHR e CONTAINS EHR_STATUS s[openEHR-EHR-EHR_STATUS.generic.v1] WHERE s/is_modifiable = true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := aql.MustParse(tt.in)
			got, err := RewriteEHRPaths(q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Render())
			assert.Equal(t, tt.in, q.Render(), "input must not change")

			again, err := aql.Parse(got.Render())
			require.NoError(t, err)
			assert.Equal(t, got.Render(), again.Render())
		})
	}
}

func TestRewriteEHRPaths_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{
			name: "multiple ehr",
			in:   "SELECT e/ehr_status/is_queryable, f/ehr_status/is_queryable FROM EHR e CONTAINS EHR f",
			msg:  "Multiple EHR in FROM are not supported",
		},
		{
			name: "root predicate",
			in:   "SELECT e[ehr_id/value='x']/ehr_status/is_queryable FROM EHR e",
			msg:  "Root predicates for EHR/ehr_status are not supported",
		},
		{
			name: "different predicates",
			in:   "SELECT e/ehr_status[at0001]/is_queryable, e/ehr_status[at0002]/is_modifiable FROM EHR e",
			msg:  "Specifying different predicates for EHR/ehr_status is not supported",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RewriteEHRPaths(aql.MustParse(tt.in))
			require.Error(t, err)
			assert.True(t, aql.IsNotImplemented(err))
			assertMessage(t, tt.msg, err)
		})
	}
}

func TestSubstituteParameters(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		params map[string]any
		want   string
	}{
		{
			name:   "no parameters",
			in:     "SELECT c FROM COMPOSITION c",
			params: nil,
			want:   "SELECT c FROM COMPOSITION c",
		},
		{
			name:   "typed scalars",
			in:     "SELECT c FROM COMPOSITION c WHERE c/a = $i AND c/b = $f AND c/c = $b AND c/d = $s AND c/e = $d",
			params: map[string]any{"i": 3, "f": 1.5, "b": true, "s": "text", "d": "2020-01-01"},
			want:   "SELECT c FROM COMPOSITION c WHERE c/a = 3 AND c/b = 1.5 AND c/c = true AND c/d = 'text' AND c/e = '2020-01-01'",
		},
		{
			name:   "json numbers",
			in:     "SELECT c FROM COMPOSITION c WHERE c/a = $i AND c/b = $f",
			params: map[string]any{"i": json.Number("12"), "f": json.Number("0.25")},
			want:   "SELECT c FROM COMPOSITION c WHERE c/a = 12 AND c/b = 0.25",
		},
		{
			name:   "unsigned integers",
			in:     "SELECT c FROM COMPOSITION c WHERE c/a = $u AND c/b = $w AND c/c = $x",
			params: map[string]any{"u": uint(7), "w": uint64(math.MaxInt64), "x": uint16(9)},
			want:   "SELECT c FROM COMPOSITION c WHERE c/a = 7 AND c/b = 9223372036854775807 AND c/c = 9",
		},
		{
			name:   "matches expands lists",
			in:     "SELECT c FROM COMPOSITION c WHERE c/name/value MATCHES {$names, 'z'}",
			params: map[string]any{"names": []string{"a", "b"}},
			want:   "SELECT c FROM COMPOSITION c WHERE c/name/value MATCHES {'a','b','z'}",
		},
		{
			name:   "like parameter",
			in:     "SELECT c FROM COMPOSITION c WHERE c/name/value LIKE $p",
			params: map[string]any{"p": "bl*"},
			want:   "SELECT c FROM COMPOSITION c WHERE c/name/value LIKE 'bl*'",
		},
		{
			name:   "missing like parameter is empty",
			in:     "SELECT c FROM COMPOSITION c WHERE c/name/value LIKE $p",
			params: map[string]any{},
			want:   "SELECT c FROM COMPOSITION c WHERE c/name/value LIKE ''",
		},
		{
			name:   "containment predicate",
			in:     "SELECT c FROM COMPOSITION c[$arch]",
			params: map[string]any{"arch": "openEHR-EHR-COMPOSITION.report.v1"},
			want:   "SELECT c FROM COMPOSITION c[openEHR-EHR-COMPOSITION.report.v1]",
		},
		{
			name:   "path predicates in select and order by",
			in:     "SELECT o/data[at0001]/events[$ev]/time FROM OBSERVATION o ORDER BY o/data[$d]/origin",
			params: map[string]any{"ev": "at0002", "d": "at0001"},
			want:   "SELECT o/data[at0001]/events[at0002]/time FROM OBSERVATION o ORDER BY o/data[at0001]/origin ASC",
		},
		{
			name:   "ehr id",
			in:     "SELECT c FROM EHR e CONTAINS COMPOSITION c WHERE e/ehr_id/value = $ehr_id",
			params: map[string]any{"ehr_id": "7d44b88c-4199-4bad-97dc-d78268e01398"},
			want:   "SELECT c FROM EHR e CONTAINS COMPOSITION c WHERE e/ehr_id/value = '7d44b88c-4199-4bad-97dc-d78268e01398'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := aql.MustParse(tt.in)
			before := q.Render()
			got, err := SubstituteParameters(q, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Render())
			assert.Equal(t, before, q.Render(), "input must not change")
		})
	}
}

func TestSubstituteParameters_Errors(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		params map[string]any
		msg    string
	}{
		{
			name: "missing",
			in:   "SELECT c FROM COMPOSITION c WHERE c/a = $x",
			msg:  "Missing parameter 'x'",
		},
		{
			name:   "nil value",
			in:     "SELECT c FROM COMPOSITION c WHERE c/a = $x",
			params: map[string]any{"x": nil},
			msg:    "Missing parameter 'x'",
		},
		{
			name:   "unsigned overflow",
			in:     "SELECT c FROM COMPOSITION c WHERE c/a = $x",
			params: map[string]any{"x": uint64(math.MaxUint64)},
			msg:    "Value of parameter 'x' is out of range: 18446744073709551615",
		},
		{
			name:   "unsupported type",
			in:     "SELECT c FROM COMPOSITION c WHERE c/a = $x",
			params: map[string]any{"x": map[string]int{"a": 1}},
			msg:    "Type of parameter 'x' is not supported",
		},
		{
			name:   "list where single value expected",
			in:     "SELECT c FROM COMPOSITION c WHERE c/a = $x",
			params: map[string]any{"x": []any{1, 2}},
			msg:    "One of the parameters does not support multiple values",
		},
		{
			name:   "empty list where single value expected",
			in:     "SELECT c FROM COMPOSITION c WHERE c/a = $x",
			params: map[string]any{"x": []any{}},
			msg:    "Empty parameter replacement results",
		},
		{
			name:   "empty matches list",
			in:     "SELECT c FROM COMPOSITION c WHERE c/a MATCHES {$x}",
			params: map[string]any{"x": []string{}},
			msg:    "Parameter replacement resulted in empty operand list",
		},
		{
			name:   "archetype node id type",
			in:     "SELECT c FROM COMPOSITION c[$x]",
			params: map[string]any{"x": 3},
			msg:    "Invalid parameter type for archetype_node_id",
		},
		{
			name:   "archetype node id format",
			in:     "SELECT c FROM COMPOSITION c[$x]",
			params: map[string]any{"x": "openEHR-broken"},
			msg:    "Invalid parameter for archetype_node_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SubstituteParameters(aql.MustParse(tt.in), tt.params)
			require.Error(t, err)
			assert.True(t, aql.IsParameterError(err))
			assertMessage(t, tt.msg, err)
		})
	}
}

func assertMessage(t *testing.T, want string, err error) {
	t.Helper()
	var ae *aql.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, want, ae.Message)
}

func i64(v int64) *int64 { return &v }

func TestReconcileLimit(t *testing.T) {
	bounded := config.Default()
	bounded.DefaultLimit = 100
	bounded.MaxLimit = 1000
	bounded.MaxFetch = 500

	minFetch := bounded
	minFetch.FetchPrecedence = config.FetchMinFetch

	tests := []struct {
		name string
		in   string
		page Page
		opts config.Options
		want string
	}{
		{"nothing given, no default", "SELECT c FROM COMPOSITION c", Page{}, config.Default(), "SELECT c FROM COMPOSITION c"},
		{"default limit", "SELECT c FROM COMPOSITION c", Page{}, bounded, "SELECT c FROM COMPOSITION c LIMIT 100"},
		{"query limit kept", "SELECT c FROM COMPOSITION c LIMIT 10 OFFSET 5", Page{}, bounded, "SELECT c FROM COMPOSITION c LIMIT 10 OFFSET 5"},
		{"fetch only", "SELECT c FROM COMPOSITION c", Page{Fetch: i64(20)}, bounded, "SELECT c FROM COMPOSITION c LIMIT 20"},
		{"fetch and offset", "SELECT c FROM COMPOSITION c", Page{Fetch: i64(20), Offset: i64(40)}, bounded, "SELECT c FROM COMPOSITION c LIMIT 20 OFFSET 40"},
		{"min fetch", "SELECT c FROM COMPOSITION c LIMIT 50", Page{Fetch: i64(20)}, minFetch, "SELECT c FROM COMPOSITION c LIMIT 20"},
		{"min fetch smaller limit", "SELECT c FROM COMPOSITION c LIMIT 5", Page{Fetch: i64(20)}, minFetch, "SELECT c FROM COMPOSITION c LIMIT 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReconcileLimit(aql.MustParse(tt.in), tt.page, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Render())
		})
	}
}

func TestReconcileLimit_Errors(t *testing.T) {
	bounded := config.Default()
	bounded.MaxLimit = 1000
	bounded.MaxFetch = 500

	minFetch := bounded
	minFetch.FetchPrecedence = config.FetchMinFetch

	tests := []struct {
		name string
		in   string
		page Page
		opts config.Options
		msg  string
	}{
		{"limit too large", "SELECT c FROM COMPOSITION c LIMIT 1001", Page{}, bounded, "Query LIMIT 1001 exceeds maximum limit 1000"},
		{"fetch too large", "SELECT c FROM COMPOSITION c", Page{Fetch: i64(501)}, bounded, "Fetch parameter 501 exceeds maximum fetch 500"},
		{"offset without fetch", "SELECT c FROM COMPOSITION c", Page{Offset: i64(3)}, bounded, "Query parameter for offset provided, but no fetch parameter"},
		{"reject", "SELECT c FROM COMPOSITION c LIMIT 10", Page{Fetch: i64(3)}, bounded, "Query contains a LIMIT clause, fetch and offset parameters must not be used (with fetch precedence REJECT)"},
		{"min fetch with offset", "SELECT c FROM COMPOSITION c LIMIT 10 OFFSET 2", Page{Fetch: i64(3)}, minFetch, "Query contains a OFFSET clause, fetch parameter must not be used (with fetch precedence MIN_FETCH)"},
		{"reject with limit and offset", "SELECT c FROM COMPOSITION c LIMIT 10 OFFSET 2", Page{Fetch: i64(3)}, bounded, "Query contains a LIMIT clause, fetch and offset parameters must not be used (with fetch precedence REJECT)"},
		{"reject with fetch and offset", "SELECT c FROM COMPOSITION c LIMIT 10 OFFSET 2", Page{Fetch: i64(3), Offset: i64(1)}, bounded, "Query contains a LIMIT clause, fetch and offset parameters must not be used (with fetch precedence REJECT)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReconcileLimit(aql.MustParse(tt.in), tt.page, tt.opts)
			require.Error(t, err)
			assert.True(t, aql.IsPaginationError(err))
			assertMessage(t, tt.msg, err)
		})
	}
}

// The parser only accepts OFFSET after LIMIT, but a query built in code can
// still carry an OFFSET alone. A fetch parameter must not silently drop it.
func TestReconcileLimit_QueryOffsetWithoutLimit(t *testing.T) {
	minFetch := config.Default()
	minFetch.FetchPrecedence = config.FetchMinFetch

	tests := []struct {
		name string
		opts config.Options
		msg  string
	}{
		{"reject", config.Default(), "Query contains a OFFSET clause, fetch and offset parameters must not be used (with fetch precedence REJECT)"},
		{"min fetch", minFetch, "Query contains a OFFSET clause, fetch parameter must not be used (with fetch precedence MIN_FETCH)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := aql.MustParse("SELECT c FROM COMPOSITION c LIMIT 10 OFFSET 2")
			q.Limit = nil

			_, err := ReconcileLimit(q, Page{Fetch: i64(3)}, tt.opts)
			require.Error(t, err)
			assert.True(t, aql.IsPaginationError(err))
			assertMessage(t, tt.msg, err)

			got, err := ReconcileLimit(q, Page{}, tt.opts)
			require.NoError(t, err)
			assert.Nil(t, got.Limit)
			require.NotNil(t, got.Offset)
			assert.Equal(t, int64(2), *got.Offset)
		})
	}
}
