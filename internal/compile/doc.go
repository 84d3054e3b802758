// Package compile runs the whole AQL to SQL pipeline.
//
// A compilation parses the query text, applies the pre-passes (EHR path
// rewriting, parameter substitution, limit reconciliation), checks the
// query against the supported subset, wraps and analyzes it, builds the
// algebra and renders it as one parameterized PostgreSQL statement.
//
// Every stage reports failures as *aql.Error, so callers dispatch on
// aql.KindOf regardless of where compilation stopped.
package compile
