package knowledge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
templates:
  - template_id: vital_signs.v1
    archetypes:
      - openEHR-EHR-COMPOSITION.encounter.v1
      - openEHR-EHR-OBSERVATION.blood_pressure.v2
      - openEHR-EHR-OBSERVATION.pulse.v2
  - template_id: discharge.v1
    uuid: 2c1f6e4a-6b4e-4c39-9a39-7d0f0b1f3a11
    archetypes:
      - openEHR-EHR-COMPOSITION.report.v1
      - openEHR-EHR-EVALUATION.problem_diagnosis.v1
`

func loadFixture(t *testing.T) []Template {
	t.Helper()
	ts, err := ReadTemplates(strings.NewReader(fixture))
	require.NoError(t, err)
	return ts
}

func TestReadTemplates(t *testing.T) {
	ts := loadFixture(t)
	require.Len(t, ts, 2)
	assert.Equal(t, DeriveUUID("vital_signs.v1"), ts[0].UUID)
	assert.Equal(t, uuid.MustParse("2c1f6e4a-6b4e-4c39-9a39-7d0f0b1f3a11"), ts[1].UUID)
}

func TestReadTemplates_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"missing id", "templates:\n  - archetypes: []\n", "template_id is required"},
		{"duplicate", "templates:\n  - template_id: a\n  - template_id: a\n", "duplicate template_id"},
		{"unknown field", "templates:\n  - template_id: a\n    bogus: 1\n", "decode templates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTemplates(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	ts, err := ReadTemplates(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ts)
}

// lookups runs the same assertions against both implementations.
func lookups(t *testing.T) map[string]Lookup {
	t.Helper()
	ts := loadFixture(t)

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Import(context.Background(), ts))

	return map[string]Lookup{
		"memory": NewMemory(ts...),
		"sqlite": db,
	}
}

func TestLookup_TemplatesContaining(t *testing.T) {
	ctx := context.Background()
	for name, l := range lookups(t) {
		t.Run(name, func(t *testing.T) {
			all, err := l.TemplatesContaining(ctx, nil)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "discharge.v1", all[0].TemplateID)

			bp, err := l.TemplatesContaining(ctx, []string{
				"openEHR-EHR-COMPOSITION.encounter.v1",
				"openEHR-EHR-OBSERVATION.blood_pressure.v2",
			})
			require.NoError(t, err)
			require.Len(t, bp, 1)
			assert.Equal(t, "vital_signs.v1", bp[0].TemplateID)
			assert.Len(t, bp[0].Archetypes, 3)

			none, err := l.TemplatesContaining(ctx, []string{
				"openEHR-EHR-COMPOSITION.report.v1",
				"openEHR-EHR-OBSERVATION.blood_pressure.v2",
			})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestLookup_TemplateUUID(t *testing.T) {
	ctx := context.Background()
	for name, l := range lookups(t) {
		t.Run(name, func(t *testing.T) {
			id, ok, err := l.TemplateUUID(ctx, "discharge.v1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, uuid.MustParse("2c1f6e4a-6b4e-4c39-9a39-7d0f0b1f3a11"), id)

			_, ok, err = l.TemplateUUID(ctx, "unknown.v1")
			require.NoError(t, err)
			assert.False(t, ok)

			ids, err := l.TemplateIDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, "vital_signs.v1", ids[DeriveUUID("vital_signs.v1")])
		})
	}
}

func TestSQLiteLookup_ImportReplaces(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	defer db.Close()

	first := Template{UUID: DeriveUUID("a"), TemplateID: "a", Archetypes: []string{"x", "y"}}
	require.NoError(t, db.Import(ctx, []Template{first}))
	second := Template{UUID: DeriveUUID("a"), TemplateID: "a", Archetypes: []string{"z"}}
	require.NoError(t, db.Import(ctx, []Template{second}))

	got, err := db.TemplatesContaining(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"z"}, got[0].Archetypes)
}
