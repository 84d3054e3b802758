// Package schema describes the PostgreSQL storage the compiler targets:
// source relations with their version and data tables, the structure
// columns, and the RM paths answered by dedicated columns.
package schema
