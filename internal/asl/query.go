package asl

import (
	"slices"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/schema"
)

// Query is a node of the algebra.
//
// This is a sealed interface - only types in this package implement it.
//
// Query types:
//   - *StructureQuery
//   - *EncapsulatingQuery
//   - *RootQuery
//   - *PathDataQuery
//   - *ObjectDataQuery
//   - *FilteringQuery
type Query interface {
	Alias() string
	// Fields are the exposed columns in select order.
	Fields() []Field
	aslQuery() // Marker method - seals interface to this package
}

// JoinType is the SQL join of a child query.
type JoinType string

const (
	JoinInner JoinType = "JOIN"
	JoinLeft  JoinType = "LEFT OUTER JOIN"
)

// Join connects a child to the queries before it in its container.
type Join struct {
	// Left is the query the child is primarily joined to.
	Left       Query
	Type       JoinType
	Conditions []Condition
}

// Child is a query inside an encapsulating query. Join is nil for the
// first child, which forms the FROM item.
type Child struct {
	Query Query
	Join  *Join
}

type fieldList struct {
	fields []Field
}

func (l *fieldList) Fields() []Field { return l.fields }

// StructureQuery reads the rows of one relation: the version table joined
// to the data table when version columns are needed.
type StructureQuery struct {
	fieldList
	alias string

	Relation            schema.SourceRelation
	RequiresVersionJoin bool
	// RMTypes are the structure types the rows may have.
	RMTypes []string
	// Conditions filter the rows. They hold the type, attribute and
	// containment predicate restrictions.
	Conditions []Condition
	// RepresentsVersion is set when the query also stands for a VERSION
	// containment.
	RepresentsVersion bool
	// Root marks the num = 0 row of a COMPOSITION or EHR_STATUS. Its
	// descendants need no num range.
	Root bool
}

func (*StructureQuery) aslQuery()        {}
func (q *StructureQuery) Alias() string { return q.alias }

// NewStructureQuery creates a structure query selecting the given columns.
// rmTypesConstraint restricts rm_entity, attribute restricts
// entity_attribute; both are ignored for EHR and AUDIT_DETAILS.
func NewStructureQuery(alias string, rel schema.SourceRelation, columns []schema.StructureColumn, rmTypes, rmTypesConstraint []string, attribute string, requiresVersionJoin bool) *StructureQuery {
	q := &StructureQuery{
		alias:               alias,
		Relation:            rel,
		RequiresVersionJoin: requiresVersionJoin,
		RMTypes:             rmTypes,
	}
	for _, c := range columns {
		q.AddColumn(c, "")
	}
	if rel == schema.RelationEHR || rel == schema.RelationAuditDetails {
		return q
	}

	if len(rmTypes) > 0 && allNonLocatable(rmTypes) {
		q.Conditions = append(q.Conditions, &FieldValueCondition{
			Field:    q.ownColumn(schema.ColEntityConcept, schema.TypeString),
			Operator: OpIsNull,
		})
	}
	if len(rmTypesConstraint) > 0 {
		values := make([]any, len(rmTypesConstraint))
		for i, t := range rmTypesConstraint {
			values[i] = structureAlias(t)
		}
		q.Conditions = append(q.Conditions, &FieldValueCondition{
			Field:    q.ownColumn(schema.ColRmEntity, schema.TypeString),
			Operator: OpIn,
			Values:   values,
		})
	}
	if attribute != "" {
		alias, err := rm.Default().AttributeAlias(attribute)
		if err != nil {
			alias = attribute
		}
		q.Conditions = append(q.Conditions, &FieldValueCondition{
			Field:    q.ownColumn(schema.ColEntityAttribute, schema.TypeString),
			Operator: OpEQ,
			Values:   []any{alias},
		})
	}
	return q
}

func allNonLocatable(types []string) bool {
	for _, t := range types {
		if !schema.IsNonLocatable(t) {
			return false
		}
	}
	return true
}

func structureAlias(t string) string {
	if s, ok := rm.Structure(t); ok {
		return s.Alias
	}
	return t
}

// AddColumn adds a column field owned by q and returns it.
func (q *StructureQuery) AddColumn(c schema.StructureColumn, ec schema.ExtractedColumn) *ColumnField {
	f := &ColumnField{
		source:      source{sourceOf(q)},
		Column:      c.Name,
		FromVersion: c.FromVersion,
		Type:        c.Type,
		Extracted:   ec,
	}
	q.fields = append(q.fields, f)
	return f
}

// AddField adds a field created for q, such as a complex extracted column.
func (q *StructureQuery) AddField(f Field) {
	q.fields = append(q.fields, f)
}

// ownColumn is a column of q's tables that is not selected.
func (q *StructureQuery) ownColumn(name string, t schema.ColumnType) *ColumnField {
	return &ColumnField{source: source{sourceOf(q)}, Column: name, Type: t}
}

// Column returns the selected column field called name.
func (q *StructureQuery) Column(name string) (*ColumnField, bool) {
	for _, f := range q.fields {
		if cf, ok := f.(*ColumnField); ok && cf.Column == name {
			return cf, true
		}
	}
	return nil, false
}

// RemoveFields drops the selected fields keep rejects.
func (q *StructureQuery) RemoveFields(keep func(Field) bool) {
	out := q.fields[:0]
	for _, f := range q.fields {
		if keep(f) {
			out = append(out, f)
		}
	}
	q.fields = out
}

// EncapsulatingQuery joins its children and exposes their fields. The
// exposed fields follow the children, so nodes may be added after the query
// itself was joined.
type EncapsulatingQuery struct {
	alias string
	// self is the query fields are exposed through: q, or the embedding
	// root query.
	self     Query
	Children []Child
	// Conditions are ANDed into the WHERE clause.
	Conditions []Condition
	// AnyOf requires at least one condition to hold; a fork of path nodes
	// yields a row if any branch does.
	AnyOf []Condition
}

func (*EncapsulatingQuery) aslQuery()        {}
func (q *EncapsulatingQuery) Alias() string { return q.alias }

// NewEncapsulatingQuery returns an empty container.
func NewEncapsulatingQuery(alias string) *EncapsulatingQuery {
	q := &EncapsulatingQuery{alias: alias}
	q.self = q
	return q
}

// Fields exposes the fields of all children except path data and filtering
// queries, which the root reads directly.
func (q *EncapsulatingQuery) Fields() []Field {
	var out []Field
	for _, ch := range q.Children {
		switch ch.Query.(type) {
		case *PathDataQuery, *FilteringQuery:
			continue
		}
		for _, f := range ch.Query.Fields() {
			out = append(out, f.WithProvider(q.self))
		}
	}
	return out
}

// AddChild appends a child. join must be nil for the first child only.
func (q *EncapsulatingQuery) AddChild(child Query, join *Join) {
	q.Children = append(q.Children, Child{Query: child, Join: join})
}

func (q *EncapsulatingQuery) encapsulating() *EncapsulatingQuery { return q }

// AddCondition ANDs c into the WHERE clause.
func (q *EncapsulatingQuery) AddCondition(c Condition) {
	if c != nil {
		q.Conditions = append(q.Conditions, c)
	}
}

// Filter returns the combined WHERE condition, nil if there is none.
func (q *EncapsulatingQuery) Filter() Condition {
	return And(append(slices.Clone(q.Conditions), Or(q.AnyOf...))...)
}

// Child returns the child entry of query c.
func (q *EncapsulatingQuery) Child(c Query) (Child, bool) {
	for _, ch := range q.Children {
		if ch.Query == c {
			return ch, true
		}
	}
	return Child{}, false
}

// OrderByField is one ORDER BY entry of the root query.
type OrderByField struct {
	Field     Field
	Direction aql.Direction
}

// RootQuery is the outermost query.
type RootQuery struct {
	EncapsulatingQuery

	Selects []Field
	GroupBy []Field

	// GroupByDvOrderedMagnitude lists DV_ORDERED fields whose magnitude is
	// ordered by in a grouping query.
	GroupByDvOrderedMagnitude []Field

	OrderBy []OrderByField
	Limit   *int64
	Offset  *int64

	// AliasCount is the number of aliases handed out while building.
	AliasCount int
}

func (*RootQuery) aslQuery() {}

// NewRootQuery returns an empty root query.
func NewRootQuery() *RootQuery {
	q := &RootQuery{EncapsulatingQuery: EncapsulatingQuery{alias: "root"}}
	q.self = q
	return q
}

// PathDataQuery navigates into the JSON data of Base. A multiple-valued
// query unnests the addressed array, yielding one row per element.
type PathDataQuery struct {
	fieldList
	alias string
	// Base is the structure or path data query holding the JSON.
	Base Query
	// Data is Base's JSON field as seen by the query joining this one.
	Data           Field
	Path           []aql.PathNode
	Multiple       bool
	DvOrderedTypes []string
	Type           schema.ColumnType
}

func (*PathDataQuery) aslQuery()        {}
func (q *PathDataQuery) Alias() string { return q.alias }

// NewPathDataQuery creates the query and its single data field.
func NewPathDataQuery(alias string, base Query, data Field, path []aql.PathNode, multiple bool, dvOrderedTypes []string, t schema.ColumnType) *PathDataQuery {
	q := &PathDataQuery{
		alias:          alias,
		Base:           base,
		Data:           data,
		Path:           path,
		Multiple:       multiple,
		DvOrderedTypes: dvOrderedTypes,
		Type:           t,
	}
	q.fields = []Field{&ColumnField{source: source{sourceOf(q)}, Column: schema.ColData, Type: t, DvOrderedTypes: dvOrderedTypes}}
	return q
}

// DataField returns the single field of q.
func (q *PathDataQuery) DataField() *ColumnField {
	return q.fields[0].(*ColumnField)
}

// ObjectDataQuery aggregates the rows below one structure node into a
// JSON object. It is used as a correlated subquery.
type ObjectDataQuery struct {
	fieldList
	alias string
	// Base is the structure query whose object is aggregated.
	Base *StructureQuery
	// Provider is the query exposing Base's fields to the subquery.
	Provider Query
}

func (*ObjectDataQuery) aslQuery()        {}
func (q *ObjectDataQuery) Alias() string { return q.alias }

// NewObjectDataQuery creates an object data query for base.
func NewObjectDataQuery(alias string, base *StructureQuery, provider Query) *ObjectDataQuery {
	q := &ObjectDataQuery{alias: alias, Base: base, Provider: provider}
	q.fields = []Field{&ColumnField{source: source{sourceOf(q)}, Column: schema.ColData, Type: schema.TypeJSON}}
	return q
}

// FilteringQuery exposes Source only for rows passing its join conditions.
type FilteringQuery struct {
	fieldList
	alias  string
	Source Field
}

func (*FilteringQuery) aslQuery()        {}
func (q *FilteringQuery) Alias() string { return q.alias }

// NewFilteringQuery creates a filtering query over src. A complex extracted
// column keeps its backing columns.
func NewFilteringQuery(alias string, src Field) *FilteringQuery {
	q := &FilteringQuery{alias: alias, Source: src}
	if c, ok := src.(*ComplexExtractedColumnField); ok {
		q.fields = []Field{&ComplexExtractedColumnField{source: source{sourceOf(q)}, Extracted: c.Extracted}}
		return q
	}
	q.fields = []Field{&ColumnField{
		source:         source{sourceOf(q)},
		Column:         "value",
		Type:           fieldType(src),
		DvOrderedTypes: DvOrderedTypes(src),
		Extracted:      ExtractedColumn(src),
	}}
	return q
}

// ValueField returns the single field of q.
func (q *FilteringQuery) ValueField() Field {
	return q.fields[0]
}

// Lateral reports whether q must be joined as a LATERAL subquery.
func Lateral(q Query) bool {
	switch q.(type) {
	case *PathDataQuery, *FilteringQuery, *ObjectDataQuery:
		return true
	default:
		return false
	}
}
