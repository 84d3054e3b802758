package schema

import "strings"

// ChangeType is a value of the audit_details.change_type column.
type ChangeType string

const (
	ChangeCreation     ChangeType = "creation"
	ChangeAmendment    ChangeType = "amendment"
	ChangeModification ChangeType = "modification"
	ChangeSynthesis    ChangeType = "synthesis"
	ChangeDeleted      ChangeType = "deleted"
	ChangeAttestation  ChangeType = "attestation"
	ChangeUnknown      ChangeType = "Unknown"
)

// changeTypeCodes maps the openehr terminology codes of the audit change
// type group to the stored values.
var changeTypeCodes = map[string]ChangeType{
	"249": ChangeCreation,
	"250": ChangeAmendment,
	"251": ChangeModification,
	"252": ChangeSynthesis,
	"253": ChangeUnknown,
	"523": ChangeDeleted,
	"666": ChangeAttestation,
}

// ChangeTypeByCode resolves a terminology code.
func ChangeTypeByCode(code string) (ChangeType, bool) {
	ct, ok := changeTypeCodes[code]
	return ct, ok
}

// ChangeTypeByTerm resolves a preferred term such as "creation". The
// stored literal of the unknown type is capitalized, the term is not.
func ChangeTypeByTerm(term string) (ChangeType, bool) {
	if term == "unknown" {
		return ChangeUnknown, true
	}
	for _, ct := range changeTypeCodes {
		if string(ct) == term && ct != ChangeUnknown {
			return ct, true
		}
	}
	return "", false
}

// Code returns the terminology code of the change type.
func (c ChangeType) Code() string {
	for code, ct := range changeTypeCodes {
		if ct == c {
			return code
		}
	}
	return ""
}

// Term returns the preferred term, lower case.
func (c ChangeType) Term() string { return strings.ToLower(string(c)) }
