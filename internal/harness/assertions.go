package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/aqlc/internal/aql"
)

// evaluate returns a message per failed assertion of c.
func evaluate(c Case, cr CaseResult) []string {
	var failures []string
	wantError := slices.ContainsFunc(c.Assertions, func(a Assertion) bool {
		return a.Type == AssertErrorKind
	})
	if cr.ErrorKind != "" && !wantError {
		return []string{"unexpected error: " + cr.Error}
	}
	for _, a := range c.Assertions {
		if err := check(a, cr); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// check evaluates one assertion. Assertions on the statement fail when the
// compilation failed and vice versa.
func check(a Assertion, cr CaseResult) error {
	failed := cr.ErrorKind != ""
	switch a.Type {
	case AssertErrorKind:
		if aql.ErrorKind(a.Value) != cr.ErrorKind {
			return mismatch(a.Type, a.Value, string(cr.ErrorKind))
		}
		return nil
	case AssertErrorContains:
		if !strings.Contains(cr.Error, a.Value) {
			return mismatch(a.Type, a.Value, cr.Error)
		}
		return nil
	}

	if failed {
		return mismatch(a.Type, "successful compilation", cr.Error)
	}
	switch a.Type {
	case AssertSQLContains:
		if !strings.Contains(cr.SQL, a.Value) {
			return mismatch(a.Type, a.Value, cr.SQL)
		}
	case AssertSQLNotContains:
		if strings.Contains(cr.SQL, a.Value) {
			return mismatch(a.Type, "no "+a.Value, cr.SQL)
		}
	case AssertArgCount:
		if len(cr.Args) != a.Count {
			return mismatch(a.Type, fmt.Sprint(a.Count), fmt.Sprint(len(cr.Args)))
		}
	case AssertAQL:
		if cr.AQL != a.Value {
			return mismatch(a.Type, a.Value, cr.AQL)
		}
	case AssertColumns:
		names := make([]string, len(cr.Columns))
		for i, col := range cr.Columns {
			names[i] = col.Name
		}
		if !slices.Equal(names, a.Values) {
			return mismatch(a.Type, strings.Join(a.Values, ", "), strings.Join(names, ", "))
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

func mismatch(typ, expected, actual string) error {
	return &AssertionError{Type: typ, Expected: expected, Actual: actual}
}
