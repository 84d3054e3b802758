// Package prepass holds the query rewrites that run before feature
// checking: EHR status path rebasing, parameter substitution and
// LIMIT/OFFSET reconciliation. Each pass returns a rewritten copy and
// leaves its input untouched.
package prepass
