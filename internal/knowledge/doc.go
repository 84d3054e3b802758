// Package knowledge is the read-only template index consulted while
// compiling: template id to internal UUID resolution, template names for
// ORDER BY, and the archetypes each template uses so that CONTAINS chains
// no template can satisfy are answered without touching the database.
//
// Two implementations exist: Memory for tests and fixtures, SQLiteLookup
// for a persistent index filled by "aqlc templates import".
package knowledge
