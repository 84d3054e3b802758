// Package testutil holds fixtures shared by package tests: discarding and
// capturing loggers, a template knowledge fixture and a call counting
// knowledge lookup.
package testutil
