// Package querywrapper normalizes a checked AQL query into the form the
// algebra builder consumes.
//
// Wrap resolves every identified path to the containment it is rooted at,
// flattens the CONTAINS tree into a chain with an optional trailing set
// operation, pushes NOT down to the leaves of the WHERE clause and runs the
// path analysis for each containment that paths refer to.
//
// The input query must have passed the feature checker; constructs the
// checker rejects surface here as internal errors.
package querywrapper
