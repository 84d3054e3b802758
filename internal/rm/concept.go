package rm

import (
	"strings"

	"github.com/roach88/aqlc/internal/aql"
)

// TypeAndConcept is the storage form of an archetype_node_id value:
// rm_entity holds the type alias, entity_concept the concept.
type TypeAndConcept struct {
	// Alias is empty for at-codes and other node ids.
	Alias   string
	Concept string
}

// FromArchetypeNodeID splits an archetype_node_id into its stored columns.
// openEHR-EHR-OBSERVATION.bp.v2 becomes {OB, .bp.v2}; any other value is
// stored as the concept alone.
func (m *Model) FromArchetypeNodeID(nodeID string) TypeAndConcept {
	if !strings.HasPrefix(nodeID, "openEHR-EHR-") {
		return TypeAndConcept{Concept: nodeID}
	}
	id, err := aql.ParseArchetypeID(nodeID)
	if err != nil {
		return TypeAndConcept{Concept: nodeID}
	}
	alias, ok := m.TypeAlias(id.RMEntity)
	if !ok {
		alias = id.RMEntity
	}
	return TypeAndConcept{Alias: alias, Concept: id.ConceptWithVersion()}
}

// FromArchetypeNodeIDPattern splits a LIKE pattern on archetype_node_id.
// A literal RM type maps to its alias and the rest of the pattern applies
// to the concept: openEHR-EHR-OBSERVATION.bp* becomes {OB, .bp*}. A "*"
// type leaves the alias unconstrained.
func (m *Model) FromArchetypeNodeIDPattern(pattern string) TypeAndConcept {
	rest, ok := strings.CutPrefix(pattern, "openEHR-EHR-")
	if !ok {
		return TypeAndConcept{Concept: pattern}
	}
	entity, concept, ok := strings.Cut(rest, ".")
	switch {
	case !ok || entity == "":
		return TypeAndConcept{Concept: pattern}
	case entity == "*":
		return TypeAndConcept{Concept: "." + concept}
	case strings.ContainsAny(entity, `*?\`):
		return TypeAndConcept{Concept: pattern}
	}
	alias, found := m.TypeAlias(entity)
	if !found {
		alias = entity
	}
	return TypeAndConcept{Alias: alias, Concept: "." + concept}
}
