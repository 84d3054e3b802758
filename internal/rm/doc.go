// Package rm carries the slice of the openEHR reference model the query
// compiler needs: type inheritance, attribute targets, the storage aliases of
// types and attributes, and the structure types that own database rows.
//
// The model is declared in model.yaml and embedded; Default loads it once.
package rm
