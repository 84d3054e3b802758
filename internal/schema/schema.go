package schema

import (
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// DDL returns the statements creating the ehr schema, its tables and the
// helper functions the generated SQL calls.
func DDL() string {
	return schemaSQL
}
