package schema

import (
	"slices"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/rm"
)

// ExtractedColumn is an RM path that is stored in a dedicated column (or
// answered from constants) instead of the JSON data.
type ExtractedColumn string

const (
	NameValue       ExtractedColumn = "NAME_VALUE"
	VoID            ExtractedColumn = "VO_ID"
	RootConcept     ExtractedColumn = "ROOT_CONCEPT"
	ArchetypeNodeID ExtractedColumn = "ARCHETYPE_NODE_ID"
	TemplateID      ExtractedColumn = "TEMPLATE_ID"

	EhrIDCol            ExtractedColumn = "EHR_ID"
	EhrSystemID         ExtractedColumn = "EHR_SYSTEM_ID"
	EhrSystemIDDv       ExtractedColumn = "EHR_SYSTEM_ID_DV"
	EhrTimeCreatedDv    ExtractedColumn = "EHR_TIME_CREATED_DV"
	EhrTimeCreated      ExtractedColumn = "EHR_TIME_CREATED"
	FolderItemID        ExtractedColumn = "FOLDER_ITEM_ID"
	OvContributionID    ExtractedColumn = "OV_CONTRIBUTION_ID"
	OvTimeCommittedDv   ExtractedColumn = "OV_TIME_COMMITTED_DV"
	OvTimeCommitted     ExtractedColumn = "OV_TIME_COMMITTED"
	AdSystemID          ExtractedColumn = "AD_SYSTEM_ID"
	AdDescriptionDv     ExtractedColumn = "AD_DESCRIPTION_DV"
	AdDescriptionValue  ExtractedColumn = "AD_DESCRIPTION_VALUE"
	AdChangeTypeDv      ExtractedColumn = "AD_CHANGE_TYPE_DV"
	AdChangeTypeValue   ExtractedColumn = "AD_CHANGE_TYPE_VALUE"
	AdChangeTypeCode    ExtractedColumn = "AD_CHANGE_TYPE_CODE_STRING"
	AdChangeTypeTerm    ExtractedColumn = "AD_CHANGE_TYPE_PREFERRED_TERM"
	AdChangeTypeTermID  ExtractedColumn = "AD_CHANGE_TYPE_TERMINOLOGY_ID_VALUE"
	extractedColumnNone ExtractedColumn = ""
)

// Pseudo RM type names used as containment types.
const (
	TypeEHR             = "EHR"
	TypeOriginalVersion = "ORIGINAL_VERSION"
	TypeAuditDetails    = "AUDIT_DETAILS"
	TypeFolder          = "FOLDER"
)

type extractedInfo struct {
	path           *aql.ObjectPath
	columns        []string
	colType        ColumnType
	requireVersion bool
	allowed        []string
}

var extractedOrder = []ExtractedColumn{
	NameValue, VoID, RootConcept, ArchetypeNodeID, TemplateID,
	EhrIDCol, EhrSystemID, EhrSystemIDDv, EhrTimeCreatedDv, EhrTimeCreated,
	FolderItemID,
	OvContributionID, OvTimeCommittedDv, OvTimeCommitted,
	AdSystemID, AdDescriptionDv, AdDescriptionValue, AdChangeTypeDv, AdChangeTypeValue,
	AdChangeTypeCode, AdChangeTypeTerm, AdChangeTypeTermID,
}

var extracted = func() map[ExtractedColumn]extractedInfo {
	structureAndAncestors := func(skip string) []string {
		var out []string
		for _, s := range rm.StructureTypes() {
			if s.Name != skip {
				out = append(out, s.Name)
			}
		}
		for _, a := range rm.Default().Ancestors() {
			out = append(out, a.Name)
		}
		return out
	}
	p := func(s ...string) *aql.ObjectPath { return aql.NewPath(s...) }
	ehr := []string{TypeEHR}
	ov := []string{TypeOriginalVersion}
	ad := []string{TypeAuditDetails}
	return map[ExtractedColumn]extractedInfo{
		NameValue:       {aql.NameValuePath, []string{ColEntityName}, TypeString, false, structureAndAncestors("")},
		VoID:            {p("uid", "value"), []string{ColVoID, ColSysVersion}, TypeString, true, []string{"COMPOSITION", "EHR_STATUS", TypeOriginalVersion}},
		RootConcept:     {aql.ArchetypeNodeIDPath, []string{ColRootConcept}, TypeString, true, []string{"COMPOSITION"}},
		ArchetypeNodeID: {aql.ArchetypeNodeIDPath, []string{ColRmEntity, ColEntityConcept}, TypeString, false, structureAndAncestors("COMPOSITION")},
		TemplateID:      {p("archetype_details", "template_id", "value"), []string{ColTemplateID}, TypeString, true, []string{"COMPOSITION"}},

		EhrIDCol:         {p("ehr_id", "value"), []string{ColID}, TypeUUID, false, ehr},
		EhrSystemID:      {p("system_id", "value"), nil, TypeString, false, ehr},
		EhrSystemIDDv:    {p("system_id"), nil, TypeString, false, ehr},
		EhrTimeCreatedDv: {p("time_created"), []string{ColCreationDate}, TypeString, false, ehr},
		EhrTimeCreated:   {p("time_created", "value"), []string{ColCreationDate}, TypeString, false, ehr},

		FolderItemID: {p("items", "id", "value"), nil, TypeUUID, false, []string{TypeFolder}},

		OvContributionID:  {p("contribution", "id", "value"), []string{ColContributionID}, TypeString, true, ov},
		OvTimeCommittedDv: {p("commit_audit", "time_committed"), []string{ColSysPeriodLower}, TypeString, true, ov},
		OvTimeCommitted:   {p("commit_audit", "time_committed", "value"), []string{ColSysPeriodLower}, TypeString, true, ov},

		AdSystemID:         {p("system_id"), nil, TypeString, true, ad},
		AdDescriptionDv:    {p("description"), []string{ColDescription}, TypeString, true, ad},
		AdDescriptionValue: {p("description", "value"), []string{ColDescription}, TypeString, true, ad},
		AdChangeTypeDv:     {p("change_type"), []string{ColChangeType}, TypeString, true, ad},
		AdChangeTypeValue:  {p("change_type", "value"), []string{ColChangeType}, TypeString, true, ad},
		AdChangeTypeCode:   {p("change_type", "defining_code", "code_string"), []string{ColChangeType}, TypeString, true, ad},
		AdChangeTypeTerm:   {p("change_type", "defining_code", "preferred_term"), []string{ColChangeType}, TypeString, true, ad},
		AdChangeTypeTermID: {p("change_type", "defining_code", "terminology_id", "value"), nil, TypeString, true, ad},
	}
}()

// ExtractedColumns returns all extracted columns in lookup order.
func ExtractedColumns() []ExtractedColumn { return slices.Clone(extractedOrder) }

// Path returns the RM path the column answers.
func (e ExtractedColumn) Path() *aql.ObjectPath { return extracted[e].path }

// Columns returns the backing columns; empty for constant answers.
func (e ExtractedColumn) Columns() []string { return extracted[e].columns }

// ColumnType is the value kind of the first backing column.
func (e ExtractedColumn) ColumnType() ColumnType { return extracted[e].colType }

// RequiresVersionTable reports whether the column lives in the version table.
func (e ExtractedColumn) RequiresVersionTable() bool { return extracted[e].requireVersion }

// AllowedTypes lists the containment types the column applies to.
func (e ExtractedColumn) AllowedTypes() []string { return extracted[e].allowed }

// Matches reports whether the column answers path on a containment of type t.
func (e ExtractedColumn) Matches(t string, path *aql.ObjectPath) bool {
	info := extracted[e]
	return slices.Contains(info.allowed, t) && info.path.Equal(path)
}

// FindExtractedColumn returns the first extracted column answering path on
// a containment of the given type.
func FindExtractedColumn(containmentType string, path *aql.ObjectPath) (ExtractedColumn, bool) {
	for _, e := range extractedOrder {
		if e.Matches(containmentType, path) {
			return e, true
		}
	}
	return extractedColumnNone, false
}

// FindExtractedColumnFrom matches the path with its first skip nodes removed.
func FindExtractedColumnFrom(containmentType string, path *aql.ObjectPath, skip int) (ExtractedColumn, bool) {
	return FindExtractedColumn(containmentType, path.Sub(skip, path.Len()))
}

// IsNonLocatable reports whether the structure type carries no
// archetype_node_id and therefore no entity_concept.
func IsNonLocatable(structureType string) bool {
	return !rm.Default().IsDescendant(structureType, "LOCATABLE")
}
