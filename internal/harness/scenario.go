package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/prepass"
)

// Scenario is a named list of compile cases sharing one configuration.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is an optional options file. Defaults apply without one.
	Config string `yaml:"config,omitempty"`

	// Templates is an optional knowledge fixture read with
	// knowledge.ReadTemplates.
	Templates string `yaml:"templates,omitempty"`

	Cases []Case `yaml:"cases"`
}

// Case is a single compilation with its expectations.
type Case struct {
	Name       string         `yaml:"name"`
	Query      string         `yaml:"query"`
	Params     map[string]any `yaml:"params,omitempty"`
	Page       prepass.Page   `yaml:"page,omitempty"`
	Assertions []Assertion    `yaml:"assertions"`
}

// Assertion validates one aspect of a case outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Value is the expected substring, error kind or query text.
	Value string `yaml:"value,omitempty"`

	// Values are the expected column names (used by columns).
	Values []string `yaml:"values,omitempty"`

	// Count is the expected number of arguments (used by arg_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSQLContains    = "sql_contains"
	AssertSQLNotContains = "sql_not_contains"
	AssertArgCount       = "arg_count"
	AssertErrorKind      = "error_kind"
	AssertErrorContains  = "error_contains"
	AssertAQL            = "aql"
	AssertColumns        = "columns"
)

// LoadScenario reads and parses a scenario YAML file. Relative config and
// templates paths are resolved against the directory of path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields so typos like "assertion:" fail loudly.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.Config = resolve(base, scenario.Config)
	scenario.Templates = resolve(base, scenario.Templates)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every scenario file of dir, ordered by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := ScenarioFiles(dir)
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ScenarioFiles lists the .yaml and .yml files directly in dir, sorted.
func ScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}
	for _, p := range []string{s.Config, s.Templates} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	seen := make(map[string]bool)
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Query == "" {
			return fmt.Errorf("cases[%d]: query is required", i)
		}
		for j := range c.Assertions {
			if err := validateAssertion(i, j, &c.Assertions[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(caseIndex, index int, a *Assertion) error {
	prefix := fmt.Sprintf("cases[%d].assertions[%d]", caseIndex, index)
	switch a.Type {
	case "":
		return fmt.Errorf("%s: type is required", prefix)
	case AssertSQLContains, AssertSQLNotContains, AssertErrorContains, AssertAQL:
		if a.Value == "" {
			return fmt.Errorf("%s: value is required for %s", prefix, a.Type)
		}
	case AssertErrorKind:
		switch aql.ErrorKind(a.Value) {
		case aql.KindParse, aql.KindIllegal, aql.KindNotImplemented,
			aql.KindParameter, aql.KindPagination, aql.KindInternal:
		default:
			return fmt.Errorf("%s: unknown error kind %q", prefix, a.Value)
		}
	case AssertArgCount:
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative for arg_count", prefix)
		}
	case AssertColumns:
		if len(a.Values) == 0 {
			return fmt.Errorf("%s: values are required for columns", prefix)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", prefix, a.Type)
	}
	return nil
}
