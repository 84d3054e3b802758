package aql

import (
	"fmt"
	"regexp"
	"strings"
)

var archetypeIDPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)-([A-Za-z][A-Za-z0-9_]*)-([A-Z][A-Z0-9_]*)\.([A-Za-z][A-Za-z0-9_-]*)\.(v[0-9]+(?:\.[0-9]+)*(?:-[A-Za-z0-9.]+)?)$`)

// ArchetypeID is a parsed archetype identifier like
// openEHR-EHR-OBSERVATION.blood_pressure.v2.
type ArchetypeID struct {
	Originator string // openEHR
	RMName     string // EHR
	RMEntity   string // OBSERVATION
	Concept    string // blood_pressure
	Version    string // v2
}

// ParseArchetypeID parses an archetype identifier.
func ParseArchetypeID(s string) (ArchetypeID, error) {
	m := archetypeIDPattern.FindStringSubmatch(s)
	if m == nil {
		return ArchetypeID{}, fmt.Errorf("invalid archetype id %q", s)
	}
	return ArchetypeID{Originator: m[1], RMName: m[2], RMEntity: m[3], Concept: m[4], Version: m[5]}, nil
}

// ConceptWithVersion returns the storage concept key, e.g. ".blood_pressure.v2".
func (a ArchetypeID) ConceptWithVersion() string {
	return "." + a.Concept + "." + a.Version
}

func (a ArchetypeID) String() string {
	return strings.Join([]string{a.Originator, a.RMName, a.RMEntity}, "-") + "." + a.Concept + "." + a.Version
}

// IsNodeID reports whether s is an at- or id-code such as at0001 or id1.2.
func IsNodeID(s string) bool {
	head, _, _ := strings.Cut(s, ".")
	if !isNodeIDPrefix(head) {
		return false
	}
	for _, part := range strings.Split(s, ".")[1:] {
		if part == "" || strings.Trim(part, "0123456789") != "" {
			return false
		}
	}
	return true
}
