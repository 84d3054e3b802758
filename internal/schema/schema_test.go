package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/rm"
)

func TestFindExtractedColumn(t *testing.T) {
	tests := []struct {
		typ  string
		path *aql.ObjectPath
		want ExtractedColumn
		ok   bool
	}{
		{"COMPOSITION", aql.NewPath("uid", "value"), VoID, true},
		{"ORIGINAL_VERSION", aql.NewPath("uid", "value"), VoID, true},
		{"COMPOSITION", aql.ArchetypeNodeIDPath, RootConcept, true},
		{"OBSERVATION", aql.ArchetypeNodeIDPath, ArchetypeNodeID, true},
		{"CONTENT_ITEM", aql.NameValuePath, NameValue, true},
		{"EHR", aql.NewPath("ehr_id", "value"), EhrIDCol, true},
		{"ORIGINAL_VERSION", aql.NewPath("commit_audit", "time_committed"), OvTimeCommittedDv, true},
		{"AUDIT_DETAILS", aql.NewPath("change_type", "defining_code", "code_string"), AdChangeTypeCode, true},
		{"OBSERVATION", aql.NewPath("uid", "value"), "", false},
		{"COMPOSITION", aql.NewPath("name"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.path.String(), func(t *testing.T) {
			got, ok := FindExtractedColumn(tt.typ, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindExtractedColumnFrom(t *testing.T) {
	got, ok := FindExtractedColumnFrom("AUDIT_DETAILS", aql.NewPath("commit_audit", "description", "value"), 1)
	require.True(t, ok)
	assert.Equal(t, AdDescriptionValue, got)
	assert.True(t, got.RequiresVersionTable())
	assert.Equal(t, []string{ColDescription}, got.Columns())
}

func TestExtractedColumn_Metadata(t *testing.T) {
	assert.Equal(t, []string{ColVoID, ColSysVersion}, VoID.Columns())
	assert.Empty(t, EhrSystemID.Columns())
	assert.Equal(t, TypeUUID, EhrIDCol.ColumnType())
	assert.NotContains(t, ArchetypeNodeID.AllowedTypes(), "COMPOSITION")
	assert.Len(t, ExtractedColumns(), 22)
}

func TestRelations(t *testing.T) {
	assert.Equal(t, "ehr.comp_version", RelationComposition.VersionTable().String())
	assert.Equal(t, "ehr.comp_data", RelationComposition.DataTable().String())
	assert.True(t, RelationEHR.VersionTable().IsZero())
	assert.Equal(t, []string{ColID}, RelationAuditDetails.PrimaryKey())

	r, err := RelationForRoot(rm.RootFolder)
	require.NoError(t, err)
	assert.Equal(t, RelationFolder, r)
	_, err = RelationForRoot(rm.RootNone)
	assert.Error(t, err)
}

func TestStructureColumnsFor(t *testing.T) {
	names := func(cols []StructureColumn) []string {
		var out []string
		for _, c := range cols {
			out = append(out, c.Name)
		}
		return out
	}
	assert.Contains(t, names(StructureColumnsFor(RelationComposition)), ColTemplateID)
	assert.NotContains(t, names(StructureColumnsFor(RelationEHRStatus)), ColTemplateID)
	assert.Contains(t, names(StructureColumnsFor(RelationFolder)), ColEhrFoldersIdx)
	assert.Equal(t, []string{ColID, ColCreationDate}, names(StructureColumnsFor(RelationEHR)))
}

func TestIsNonLocatable(t *testing.T) {
	assert.True(t, IsNonLocatable("EVENT_CONTEXT"))
	assert.True(t, IsNonLocatable("FEEDER_AUDIT"))
	assert.False(t, IsNonLocatable("OBSERVATION"))
}

func TestDDL(t *testing.T) {
	ddl := DDL()
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS ehr.comp_data")
	assert.Contains(t, ddl, "jsonb_dv_ordered_magnitude")
}

func TestChangeType(t *testing.T) {
	ct, ok := ChangeTypeByCode("249")
	require.True(t, ok)
	assert.Equal(t, ChangeCreation, ct)
	assert.Equal(t, "249", ct.Code())

	ct, ok = ChangeTypeByTerm("unknown")
	require.True(t, ok)
	assert.Equal(t, ChangeUnknown, ct)
	assert.Equal(t, "unknown", ct.Term())

	_, ok = ChangeTypeByTerm("Unknown")
	assert.False(t, ok)
	_, ok = ChangeTypeByCode("999")
	assert.False(t, ok)
}
