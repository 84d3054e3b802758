// Package explain describes a compiled query algebra as canonical JSON.
//
// The description lists every query with its alias, source relation and
// exposed fields, every join with its type and conditions, and the root
// clauses. Object keys are sorted by UTF-16 code units and strings are NFC
// normalized, so equal algebras always produce identical bytes and the
// same Fingerprint.
package explain
