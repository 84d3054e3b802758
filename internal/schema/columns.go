package schema

// Column names of the ehr schema.
const (
	ColID           = "id"
	ColCreationDate = "creation_date"

	ColVoID           = "vo_id"
	ColEhrID          = "ehr_id"
	ColEhrFoldersIdx  = "ehr_folders_idx"
	ColContributionID = "contribution_id"
	ColAuditID        = "audit_id"
	ColSysVersion     = "sys_version"
	ColSysPeriodLower = "sys_period_lower"
	ColRootConcept    = "root_concept"
	ColTemplateID     = "template_id"

	ColNum             = "num"
	ColNumCap          = "num_cap"
	ColParentNum       = "parent_num"
	ColCitemNum        = "citem_num"
	ColEntityIdx       = "entity_idx"
	ColEntityIdxCap    = "entity_idx_cap"
	ColEntityIdxLen    = "entity_idx_len"
	ColEntityConcept   = "entity_concept"
	ColEntityName      = "entity_name"
	ColRmEntity        = "rm_entity"
	ColEntityAttribute = "entity_attribute"
	ColData            = "data"

	ColDescription = "description"
	ColChangeType  = "change_type"
)

// StructureColumn is a column every structure data row carries.
type StructureColumn struct {
	Name string
	// FromVersion marks columns read from the version table.
	FromVersion bool
	// Type is the Go-side kind of the column value.
	Type ColumnType
}

// ColumnType is the value kind of a column.
type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeUUID      ColumnType = "uuid"
	TypeInt       ColumnType = "int"
	TypeJSON      ColumnType = "jsonb"
	TypeTimestamp ColumnType = "timestamp"
)

// StructureColumns are the columns a structure query selects, in order.
var StructureColumns = []StructureColumn{
	{ColVoID, false, TypeUUID},
	{ColNum, false, TypeInt},
	{ColEhrID, false, TypeUUID},
	{ColEntityIdx, false, TypeString},
	{ColEntityIdxCap, false, TypeString},
	{ColEntityIdxLen, false, TypeInt},
	{ColEntityConcept, false, TypeString},
	{ColEntityName, false, TypeString},
	{ColRmEntity, false, TypeString},
	{ColNumCap, false, TypeInt},
	{ColParentNum, false, TypeInt},
	{ColCitemNum, false, TypeInt},
	{ColSysVersion, true, TypeInt},
	{ColAuditID, true, TypeUUID},
	{ColContributionID, true, TypeUUID},
	{ColSysPeriodLower, true, TypeTimestamp},
	{ColRootConcept, true, TypeString},
	{ColTemplateID, true, TypeUUID},
}

// FolderColumns are additionally selected for FOLDER structure queries.
var FolderColumns = []StructureColumn{
	{ColEhrFoldersIdx, false, TypeInt},
}

// StructureColumnsFor returns the columns selected for a relation. Version
// columns missing on a relation are dropped.
func StructureColumnsFor(r SourceRelation) []StructureColumn {
	switch r {
	case RelationEHR:
		return []StructureColumn{{ColID, false, TypeUUID}, {ColCreationDate, false, TypeTimestamp}}
	case RelationAuditDetails:
		return []StructureColumn{
			{ColID, false, TypeUUID},
			{ColDescription, false, TypeString},
			{ColChangeType, false, TypeString},
		}
	}
	out := make([]StructureColumn, 0, len(StructureColumns)+1)
	for _, c := range StructureColumns {
		if r != RelationComposition && (c.Name == ColRootConcept || c.Name == ColTemplateID) {
			continue
		}
		out = append(out, c)
	}
	if r == RelationFolder {
		out = append(out, FolderColumns...)
	}
	return out
}
