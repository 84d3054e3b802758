package rm

import (
	"slices"
	"strings"
)

// StructureRoot is the top-level stored object a structure node belongs to.
type StructureRoot string

const (
	RootNone        StructureRoot = ""
	RootComposition StructureRoot = "COMPOSITION"
	RootFolder      StructureRoot = "FOLDER"
	RootEhrStatus   StructureRoot = "EHR_STATUS"
)

// StructureType is an RM type stored as its own row in a data table.
type StructureType struct {
	Name  string
	Alias string
	// Root is RootNone when the type appears below several roots.
	Root StructureRoot
	// Entry types may be used in CONTAINS.
	Entry   bool
	Parents []string
}

// Distinguishing reports whether the type determines its root.
func (s *StructureType) Distinguishing() bool { return s.Root != RootNone }

// IsRoot reports whether the type is itself a stored root.
func (s *StructureType) IsRoot() bool { return string(s.Root) == s.Name }

var itemStructureParents = []string{
	"FOLDER", "EHR_STATUS", "FEEDER_AUDIT_DETAILS", "EVENT_CONTEXT", "ADMIN_ENTRY",
	"OBSERVATION", "INSTRUCTION", "ACTION", "EVALUATION", "INSTRUCTION_DETAILS",
	"ACTIVITY", "HISTORY", "POINT_EVENT", "INTERVAL_EVENT",
}

// structureTypes is ordered the way the storage layer enumerates them.
var structureTypes = []*StructureType{
	{Name: "COMPOSITION", Alias: "CO", Root: RootComposition, Entry: true},
	{Name: "FOLDER", Alias: "F", Root: RootFolder, Entry: true, Parents: []string{"FOLDER"}},
	{Name: "EHR_STATUS", Alias: "ES", Root: RootEhrStatus, Entry: true},
	{Name: "EVENT_CONTEXT", Alias: "EC", Root: RootComposition, Entry: true, Parents: []string{"COMPOSITION"}},
	{Name: "SECTION", Alias: "SE", Root: RootComposition, Entry: true, Parents: []string{"COMPOSITION", "SECTION"}},
	{Name: "GENERIC_ENTRY", Alias: "GE", Root: RootComposition, Entry: true, Parents: []string{"COMPOSITION", "SECTION"}},
	{Name: "ADMIN_ENTRY", Alias: "AE", Root: RootComposition, Entry: true, Parents: []string{"COMPOSITION", "SECTION"}},
	{Name: "OBSERVATION", Alias: "OB", Root: RootComposition, Entry: true, Parents: []string{"COMPOSITION", "SECTION"}},
	{Name: "INSTRUCTION", Alias: "IN", Root: RootComposition, Entry: true, Parents: []string{"COMPOSITION", "SECTION"}},
	{Name: "ACTION", Alias: "AN", Root: RootComposition, Entry: true, Parents: []string{"COMPOSITION", "SECTION"}},
	{Name: "EVALUATION", Alias: "EV", Root: RootComposition, Entry: true, Parents: []string{"COMPOSITION", "SECTION"}},
	{Name: "INSTRUCTION_DETAILS", Alias: "ID", Root: RootComposition, Parents: []string{"ACTION"}},
	{Name: "ACTIVITY", Alias: "AY", Root: RootComposition, Entry: true, Parents: []string{"INSTRUCTION"}},
	{Name: "HISTORY", Alias: "HI", Root: RootComposition, Entry: true, Parents: []string{"OBSERVATION"}},
	{Name: "POINT_EVENT", Alias: "PE", Root: RootComposition, Entry: true, Parents: []string{"HISTORY"}},
	{Name: "INTERVAL_EVENT", Alias: "IE", Root: RootComposition, Entry: true, Parents: []string{"HISTORY"}},
	{Name: "FEEDER_AUDIT", Alias: "FA", Entry: true, Parents: []string{
		"COMPOSITION", "FOLDER", "EHR_STATUS", "SECTION", "GENERIC_ENTRY", "ADMIN_ENTRY",
		"OBSERVATION", "INSTRUCTION", "ACTION", "EVALUATION", "ACTIVITY", "HISTORY",
		"POINT_EVENT", "INTERVAL_EVENT", "ITEM_LIST", "ITEM_SINGLE", "ITEM_TABLE",
		"ITEM_TREE", "CLUSTER", "ELEMENT",
	}},
	{Name: "FEEDER_AUDIT_DETAILS", Alias: "FD", Parents: []string{"FEEDER_AUDIT"}},
	{Name: "ITEM_LIST", Alias: "IL", Entry: true, Parents: itemStructureParents},
	{Name: "ITEM_SINGLE", Alias: "IS", Entry: true, Parents: itemStructureParents},
	{Name: "ITEM_TABLE", Alias: "TA", Entry: true, Parents: itemStructureParents},
	{Name: "ITEM_TREE", Alias: "TR", Entry: true, Parents: append(slices.Clone(itemStructureParents), "GENERIC_ENTRY")},
	{Name: "CLUSTER", Alias: "CL", Entry: true, Parents: []string{"ITEM_TABLE", "ITEM_TREE", "CLUSTER"}},
	{Name: "ELEMENT", Alias: "E", Entry: true, Parents: []string{"ITEM_LIST", "ITEM_SINGLE", "ITEM_TREE", "CLUSTER"}},
}

var structureByName = func() map[string]*StructureType {
	m := make(map[string]*StructureType, len(structureTypes))
	for _, s := range structureTypes {
		m[s.Name] = s
	}
	return m
}()

// StructureTypes returns all structure types in storage order.
func StructureTypes() []*StructureType { return structureTypes }

// Structure returns the structure type of the given RM type name.
func Structure(name string) (*StructureType, bool) {
	s, ok := structureByName[name]
	return s, ok
}

// IsStructure reports whether name is a structure type.
func IsStructure(name string) bool {
	_, ok := structureByName[name]
	return ok
}

// AncestorType is an abstract RM type whose concrete descendants are
// structure types, usable in CONTAINS.
type AncestorType struct {
	Name string
	// Descendants are the concrete structure descendants in storage order.
	Descendants []*StructureType
	// NonStructureDescendants are concrete descendants without own rows.
	NonStructureDescendants []string
	// Root is set when all descendants share a root.
	Root StructureRoot
}

var ancestorNames = []string{"CONTENT_ITEM", "ENTRY", "CARE_ENTRY", "EVENT", "ITEM_STRUCTURE", "ITEM"}

// Ancestors returns the abstract structure ancestors for m.
func (m *Model) Ancestors() []*AncestorType {
	out := make([]*AncestorType, 0, len(ancestorNames))
	for _, n := range ancestorNames {
		a, _ := m.Ancestor(n)
		out = append(out, a)
	}
	return out
}

// Ancestor resolves an abstract structure ancestor by name.
func (m *Model) Ancestor(name string) (*AncestorType, bool) {
	if !slices.Contains(ancestorNames, name) {
		return nil, false
	}
	a := &AncestorType{Name: name}
	for _, c := range m.ConcreteTypes(name) {
		if s, ok := structureByName[c]; ok {
			a.Descendants = append(a.Descendants, s)
		} else {
			a.NonStructureDescendants = append(a.NonStructureDescendants, c)
		}
	}
	slices.SortFunc(a.Descendants, func(x, y *StructureType) int {
		return slices.Index(structureTypes, x) - slices.Index(structureTypes, y)
	})
	for i, d := range a.Descendants {
		if i == 0 {
			a.Root = d.Root
		} else if a.Root != d.Root {
			a.Root = RootNone
			break
		}
	}
	return a, true
}

// DescendantNames returns the descendant type names.
func (a *AncestorType) DescendantNames() []string {
	out := make([]string, len(a.Descendants))
	for i, d := range a.Descendants {
		out[i] = d.Name
	}
	return out
}

// ContainsTypeList lists the types allowed in FROM after EHR, comma separated.
func (m *Model) ContainsTypeList() string {
	var names []string
	for _, a := range m.Ancestors() {
		if len(a.NonStructureDescendants) > 0 {
			continue
		}
		entries := true
		for _, d := range a.Descendants {
			entries = entries && d.Entry
		}
		if entries {
			names = append(names, a.Name)
		}
	}
	for _, s := range structureTypes {
		if s.Entry {
			names = append(names, s.Name)
		}
	}
	return strings.Join(names, ", ")
}
