// Package featurecheck rejects queries outside the supported AQL subset
// before any algebra is built.
//
// Two outcomes are distinguished: an illegal query (aql.KindIllegal) can
// never be answered, a not implemented one (aql.KindNotImplemented) is
// valid AQL this compiler does not translate yet.
package featurecheck
