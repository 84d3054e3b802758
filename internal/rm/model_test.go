package rm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Loads(t *testing.T) {
	m := Default()
	require.NotNil(t, m)
	assert.Same(t, m, Default())

	ty, ok := m.Type("OBSERVATION")
	require.True(t, ok)
	assert.Equal(t, "CARE_ENTRY", ty.Parent)
	// inherited from LOCATABLE and ENTRY
	assert.Contains(t, ty.Attributes, "name")
	assert.Contains(t, ty.Attributes, "subject")
	assert.Equal(t, "HISTORY", ty.Attributes["data"].Type)
}

func TestConcreteTypes(t *testing.T) {
	m := Default()
	tests := []struct {
		name string
		want []string
	}{
		{"ENTRY", []string{"ACTION", "ADMIN_ENTRY", "EVALUATION", "INSTRUCTION", "OBSERVATION"}},
		{"EVENT", []string{"INTERVAL_EVENT", "POINT_EVENT"}},
		{"DV_TEXT", []string{"DV_CODED_TEXT", "DV_TEXT"}},
		{"STRING", []string{"STRING"}},
		{"UNKNOWN_TYPE", []string{"UNKNOWN_TYPE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ConcreteTypes(tt.name))
		})
	}
}

func TestDvOrdered(t *testing.T) {
	m := Default()
	assert.ElementsMatch(t, []string{
		"DV_COUNT", "DV_DATE", "DV_DATE_TIME", "DV_DURATION", "DV_ORDINAL",
		"DV_PROPORTION", "DV_QUANTITY", "DV_SCALE", "DV_TIME",
	}, m.DvOrderedTypes())
	assert.True(t, m.IsDvOrdered("DV_QUANTITY"))
	assert.False(t, m.IsDvOrdered("DV_TEXT"))
	assert.False(t, m.IsDvOrdered("DV_AMOUNT"))
}

func TestTypedAttribute(t *testing.T) {
	m := Default()
	byParent, ok := m.TypedAttribute("events")
	require.True(t, ok)
	assert.Equal(t, map[string][]string{"HISTORY": {"INTERVAL_EVENT", "POINT_EVENT"}}, byParent)

	data, ok := m.TypedAttribute("data")
	require.True(t, ok)
	assert.Equal(t, []string{"HISTORY"}, data["OBSERVATION"])
	assert.Equal(t, []string{"ITEM_TREE"}, data["GENERIC_ENTRY"])

	assert.False(t, m.HasAttribute("no_such_attribute"))
}

func TestAliases(t *testing.T) {
	m := Default()

	a, err := m.AttributeAlias("archetype_node_id")
	require.NoError(t, err)
	assert.Equal(t, "A", a)

	attr, ok := m.AttributeForAlias("V")
	require.True(t, ok)
	assert.Equal(t, "value", attr)

	_, err = m.AttributeAlias("unknown")
	assert.Error(t, err)

	alias, ok := m.TypeAlias("OBSERVATION")
	require.True(t, ok)
	assert.Equal(t, "OB", alias)
	alias, ok = m.TypeAlias("DV_QUANTITY")
	require.True(t, ok)
	assert.Equal(t, "q", alias)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"bad yaml", "types: [", "failed to parse model"},
		{"unknown parent", "types:\n  A:\n    parent: B\n", "unknown parent type B"},
		{"cycle", "types:\n  A:\n    parent: B\n  B:\n    parent: A\n", "inheritance cycle"},
		{"unknown attribute type", "types:\n  A:\n    attributes:\n      x: {type: NOPE}\n", "A.x: unknown type NOPE"},
		{"duplicate alias", "attribute_aliases:\n  a: x\n  b: x\n", "alias \"x\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestFromArchetypeNodeID(t *testing.T) {
	m := Default()
	assert.Equal(t, TypeAndConcept{Alias: "OB", Concept: ".blood_pressure.v2"},
		m.FromArchetypeNodeID("openEHR-EHR-OBSERVATION.blood_pressure.v2"))
	assert.Equal(t, TypeAndConcept{Concept: "at0001"}, m.FromArchetypeNodeID("at0001"))
}

func TestFromArchetypeNodeIDPattern(t *testing.T) {
	m := Default()
	tests := []struct {
		pattern string
		want    TypeAndConcept
	}{
		{"openEHR-EHR-OBSERVATION.blood*", TypeAndConcept{Alias: "OB", Concept: ".blood*"}},
		{"openEHR-EHR-*.blood_pressure.v2", TypeAndConcept{Concept: ".blood_pressure.v2"}},
		{"openEHR-EHR-OBS*.blood_pressure.v2", TypeAndConcept{Concept: "openEHR-EHR-OBS*.blood_pressure.v2"}},
		{"openEHR-EHR-*", TypeAndConcept{Concept: "openEHR-EHR-*"}},
		{"at00*", TypeAndConcept{Concept: "at00*"}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, m.FromArchetypeNodeIDPattern(tt.pattern))
		})
	}
}
