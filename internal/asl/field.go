package asl

import (
	"slices"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/schema"
)

// FieldSource locates a field in the algebra. Owner is the query the value
// originates from. Provider exposes the field to its consumer and reads it
// from InternalProvider, one of Provider's children.
type FieldSource struct {
	Owner            Query
	InternalProvider Query
	Provider         Query
}

func sourceOf(owner Query) FieldSource {
	return FieldSource{Owner: owner, InternalProvider: owner, Provider: owner}
}

func (s FieldSource) withProvider(p Query) FieldSource {
	return FieldSource{Owner: s.Owner, InternalProvider: s.Provider, Provider: p}
}

// Field is a value exposed by a query.
//
// This is a sealed interface - only types in this package implement it.
//
// Field types:
//   - *ColumnField
//   - *ConstantField
//   - *SubqueryField
//   - *AggregatingField
//   - *ComplexExtractedColumnField
//   - *FolderItemIDField
//   - *RmPathField
//   - *StringAggregationField
type Field interface {
	Source() FieldSource
	// WithProvider returns a copy exposed through p.
	WithProvider(p Query) Field
	aslField() // Marker method - seals interface to this package
}

type source struct {
	src FieldSource
}

func (s source) Source() FieldSource { return s.src }

// ColumnField is a physical column of the owner.
type ColumnField struct {
	source
	Column string
	// FromVersion reads the column from the version table.
	FromVersion bool
	Type        schema.ColumnType
	Extracted   schema.ExtractedColumn
	// DvOrderedTypes is set for JSON values that may be DV_ORDERED.
	DvOrderedTypes []string
}

func (*ColumnField) aslField() {}

// AliasedName is the name the column is exposed under outside its owner.
func (f *ColumnField) AliasedName() string {
	return f.src.Owner.Alias() + "_" + f.Column
}

func (f *ColumnField) WithProvider(p Query) Field {
	c := *f
	c.src = f.src.withProvider(p)
	return &c
}

// ConstantField is a literal, e.g. the system id.
type ConstantField struct {
	source
	Value     any
	Extracted schema.ExtractedColumn
}

func (*ConstantField) aslField() {}

func (f *ConstantField) WithProvider(p Query) Field {
	c := *f
	c.src = f.src.withProvider(p)
	return &c
}

// NewConstantField returns a constant owned by owner.
func NewConstantField(owner Query, value any, ec schema.ExtractedColumn) *ConstantField {
	return &ConstantField{source: source{sourceOf(owner)}, Value: value, Extracted: ec}
}

// SubqueryField is the correlated object data subquery of a structure node.
type SubqueryField struct {
	source
	Query *ObjectDataQuery
	// Filter restricts the subquery to rows passing path root predicates.
	Filter []Condition
}

func (*SubqueryField) aslField() {}

func (f *SubqueryField) WithProvider(p Query) Field {
	c := *f
	c.src = f.src.withProvider(p)
	return &c
}

// WithFilter returns a copy with additional filter conditions.
func (f *SubqueryField) WithFilter(conds ...Condition) *SubqueryField {
	c := *f
	c.Filter = append(slices.Clone(f.Filter), conds...)
	return &c
}

// AggregatingField applies an aggregate function to Base; Base is nil for
// COUNT(*).
type AggregatingField struct {
	source
	Function aql.AggregateName
	Distinct bool
	Base     Field
}

func (*AggregatingField) aslField() {}

func (f *AggregatingField) WithProvider(p Query) Field {
	c := *f
	c.src = f.src.withProvider(p)
	return &c
}

// ComplexExtractedColumnField is an extracted column backed by several
// columns: VO_ID (vo_id, sys_version) and ARCHETYPE_NODE_ID (rm_entity,
// entity_concept).
type ComplexExtractedColumnField struct {
	source
	Extracted schema.ExtractedColumn
}

func (*ComplexExtractedColumnField) aslField() {}

func (f *ComplexExtractedColumnField) WithProvider(p Query) Field {
	c := *f
	c.src = f.src.withProvider(p)
	return &c
}

// NewComplexExtractedColumnField returns a complex extracted column owned
// by owner.
func NewComplexExtractedColumnField(owner Query, ec schema.ExtractedColumn) *ComplexExtractedColumnField {
	return &ComplexExtractedColumnField{source: source{sourceOf(owner)}, Extracted: ec}
}

// Columns returns the backing columns.
func (f *ComplexExtractedColumnField) Columns() []string {
	return f.Extracted.Columns()
}

// AliasedName returns the exposed name of one backing column.
func (f *ComplexExtractedColumnField) AliasedName(column string) string {
	return f.src.Owner.Alias() + "_" + column
}

// FromVersion reports whether a backing column is read from the version
// table.
func (f *ComplexExtractedColumnField) FromVersion(column string) bool {
	for _, c := range schema.StructureColumns {
		if c.Name == column {
			return c.FromVersion
		}
	}
	return false
}

// FolderItemIDField is the array of composition ids a FOLDER (and its
// subfolders) references.
type FolderItemIDField struct {
	source
}

func (*FolderItemIDField) aslField() {}

func (f *FolderItemIDField) WithProvider(p Query) Field {
	c := *f
	c.src = f.src.withProvider(p)
	return &c
}

// NewFolderItemIDField returns the item id array of a FOLDER query.
func NewFolderItemIDField(owner Query) *FolderItemIDField {
	return &FolderItemIDField{source: source{sourceOf(owner)}}
}

// FolderItemIDColumn names the virtual column.
const FolderItemIDColumn = "item_id_values"

// AliasedName is the name the array is exposed under.
func (f *FolderItemIDField) AliasedName() string {
	return f.src.Owner.Alias() + "_" + FolderItemIDColumn
}

// RmPathField navigates Path inside the JSON of Base.
type RmPathField struct {
	source
	Base           Field
	Path           []aql.PathNode
	DvOrderedTypes []string
	Type           schema.ColumnType
}

func (*RmPathField) aslField() {}

func (f *RmPathField) WithProvider(p Query) Field {
	c := *f
	c.src = f.src.withProvider(p)
	c.Base = f.Base.WithProvider(p)
	return &c
}

// StringAggregationField concatenates the text of several fields, e.g. the
// columns of a complex extracted column for COUNT(DISTINCT).
type StringAggregationField struct {
	source
	Parts     []Field
	Separator string
}

func (*StringAggregationField) aslField() {}

func (f *StringAggregationField) WithProvider(p Query) Field {
	c := *f
	c.src = f.src.withProvider(p)
	return &c
}

// ExtractedColumn returns the extracted column a field answers, if any.
func ExtractedColumn(f Field) schema.ExtractedColumn {
	switch v := f.(type) {
	case *ColumnField:
		return v.Extracted
	case *ConstantField:
		return v.Extracted
	case *ComplexExtractedColumnField:
		return v.Extracted
	case *FolderItemIDField:
		return schema.FolderItemID
	default:
		return ""
	}
}

// DvOrderedTypes returns the DV_ORDERED types a JSON field may hold.
func DvOrderedTypes(f Field) []string {
	switch v := f.(type) {
	case *ColumnField:
		return v.DvOrderedTypes
	case *RmPathField:
		return v.DvOrderedTypes
	default:
		return nil
	}
}

func fieldType(f Field) schema.ColumnType {
	switch v := f.(type) {
	case *ColumnField:
		return v.Type
	case *RmPathField:
		return v.Type
	case *SubqueryField:
		return schema.TypeJSON
	default:
		return schema.TypeString
	}
}

// FieldType returns the value kind of f.
func FieldType(f Field) schema.ColumnType { return fieldType(f) }

// FindField returns the field of provider originating from owner's column.
func FindField(provider Query, owner Query, column string) (Field, bool) {
	for _, f := range provider.Fields() {
		if f.Source().Owner != owner {
			continue
		}
		switch v := f.(type) {
		case *ColumnField:
			if v.Column == column {
				return f, true
			}
		case *FolderItemIDField:
			if column == FolderItemIDColumn {
				return f, true
			}
		}
	}
	return nil, false
}
