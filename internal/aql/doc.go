// Package aql holds the Archetype Query Language syntax tree together with
// a parser and a canonical renderer.
//
// Parse binds every identified path to the FROM containment carrying the
// same alias; roots are compared by pointer identity everywhere downstream.
// Render is the inverse of Parse up to whitespace, keyword case and the
// predicate shorthand, so Parse(q.Render()).Render() == q.Render().
//
// Values are typed at parse time: quoted strings matching the ISO-8601
// date, time or date-time grammar become Temporal, other strings String.
package aql
