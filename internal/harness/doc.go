// Package harness runs YAML compile scenarios against the compiler.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config: options.yaml        # optional, .cue or .yaml
//	templates: templates.yaml   # optional knowledge fixture
//	cases:
//	  - name: composition_uid
//	    query: SELECT c/uid/value FROM COMPOSITION c WHERE c/name/value = $name
//	    params: { name: "Vital signs" }
//	    page: { fetch: 10, offset: 20 }
//	    assertions:
//	      - type: sql_contains
//	        value: '"ehr"."comp_version"'
//	      - type: arg_count
//	        count: 3
//
// Paths of config and templates are relative to the scenario file.
//
// # Assertion Types
//
//   - sql_contains / sql_not_contains: substring of the generated SQL
//   - arg_count: number of bound arguments
//   - error_kind: the aql.ErrorKind the compilation fails with
//   - error_contains: substring of the error message
//   - aql: the query text after the pre-passes
//   - columns: the result column names in order
//
// A case without an error_kind assertion must compile.
//
// # Golden Files
//
// RunWithGolden snapshots the outcome of every case as canonical JSON under
// testdata/golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
