package schema

import (
	"fmt"

	"github.com/roach88/aqlc/internal/rm"
)

// SourceRelation names the pair of tables a structure query reads from.
type SourceRelation string

const (
	RelationEHR          SourceRelation = "EHR"
	RelationEHRStatus    SourceRelation = "EHR_STATUS"
	RelationComposition  SourceRelation = "COMPOSITION"
	RelationFolder       SourceRelation = "FOLDER"
	RelationAuditDetails SourceRelation = "AUDIT_DETAILS"
)

// Table is a qualified table name.
type Table struct {
	Schema string
	Name   string
}

func (t Table) String() string { return t.Schema + "." + t.Name }

// IsZero reports whether the table is unset.
func (t Table) IsZero() bool { return t.Name == "" }

type relationTables struct {
	root    rm.StructureRoot
	version Table
	data    Table
	pkey    []string
}

var relations = map[SourceRelation]relationTables{
	RelationEHR: {
		data: Table{"ehr", "ehr"},
		pkey: []string{ColID},
	},
	RelationEHRStatus: {
		root:    rm.RootEhrStatus,
		version: Table{"ehr", "ehr_status_version"},
		data:    Table{"ehr", "ehr_status_data"},
		pkey:    []string{ColVoID},
	},
	RelationComposition: {
		root:    rm.RootComposition,
		version: Table{"ehr", "comp_version"},
		data:    Table{"ehr", "comp_data"},
		pkey:    []string{ColVoID},
	},
	RelationFolder: {
		root:    rm.RootFolder,
		version: Table{"ehr", "ehr_folder_version"},
		data:    Table{"ehr", "ehr_folder_data"},
		pkey:    []string{ColEhrID, ColEhrFoldersIdx},
	},
	RelationAuditDetails: {
		data: Table{"ehr", "audit_details"},
		pkey: []string{ColID},
	},
}

// VersionTable returns the version table, zero for EHR and AUDIT_DETAILS.
func (r SourceRelation) VersionTable() Table { return relations[r].version }

// DataTable returns the data table.
func (r SourceRelation) DataTable() Table { return relations[r].data }

// PrimaryKey returns the primary key columns of the first of version and
// data table that exists.
func (r SourceRelation) PrimaryKey() []string { return relations[r].pkey }

// Root returns the structure root stored in the relation.
func (r SourceRelation) Root() rm.StructureRoot { return relations[r].root }

// RelationForRoot returns the relation storing a structure root.
func RelationForRoot(root rm.StructureRoot) (SourceRelation, error) {
	switch root {
	case rm.RootComposition:
		return RelationComposition, nil
	case rm.RootEhrStatus:
		return RelationEHRStatus, nil
	case rm.RootFolder:
		return RelationFolder, nil
	default:
		return "", fmt.Errorf("no relation for structure root %q", root)
	}
}
