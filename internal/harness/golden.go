package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/aqlc/internal/explain"
)

// snapshot returns the canonical form of the case outcomes. The SQL and its
// arguments are left out so that rendering changes only break sql assertions.
func snapshot(name string, res *Result) explain.Object {
	cases := make(explain.Array, len(res.Cases))
	for i, cr := range res.Cases {
		c := explain.Object{"name": cr.Name}
		if cr.ErrorKind != "" {
			c["error"] = string(cr.ErrorKind)
		} else {
			c["aql"] = cr.AQL
			cols := make(explain.Array, len(cr.Columns))
			for j, col := range cr.Columns {
				cols[j] = explain.Object{"name": col.Name, "kind": string(col.Kind), "value": col.Value}
			}
			c["columns"] = cols
			if cr.Limit != nil {
				c["limit"] = *cr.Limit
			}
			if cr.Offset != nil {
				c["offset"] = *cr.Offset
			}
		}
		cases[i] = c
	}
	return explain.Object{"scenario": name, "cases": cases}
}

// Snapshot returns the golden file content of a result.
func Snapshot(name string, res *Result) ([]byte, error) {
	return explain.Marshal(snapshot(name, res))
}

// DiffGolden compares two snapshots of the same scenario and returns the
// names of the cases that differ, were added or were removed, in the order
// they appear in current followed by removed ones.
func DiffGolden(golden, current []byte) ([]string, error) {
	old, err := snapshotCases(golden)
	if err != nil {
		return nil, fmt.Errorf("golden: %w", err)
	}
	cur, err := snapshotCases(current)
	if err != nil {
		return nil, fmt.Errorf("current: %w", err)
	}

	seen := make(map[string]bool, len(cur.order))
	var changed []string
	for _, name := range cur.order {
		seen[name] = true
		if !reflect.DeepEqual(old.cases[name], cur.cases[name]) {
			changed = append(changed, name)
		}
	}
	for _, name := range old.order {
		if !seen[name] {
			changed = append(changed, name)
		}
	}
	return changed, nil
}

type decodedSnapshot struct {
	order []string
	cases map[string]map[string]any
}

func snapshotCases(data []byte) (decodedSnapshot, error) {
	var raw struct {
		Cases []map[string]any `json:"cases"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return decodedSnapshot{}, err
	}
	out := decodedSnapshot{cases: make(map[string]map[string]any, len(raw.Cases))}
	for i, c := range raw.Cases {
		name, _ := c["name"].(string)
		if name == "" {
			return decodedSnapshot{}, fmt.Errorf("cases[%d]: missing name", i)
		}
		out.order = append(out.order, name)
		out.cases[name] = c
	}
	return out, nil
}

// RunWithGolden runs a scenario and compares its outcomes against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
