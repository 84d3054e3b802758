package asl

import (
	"github.com/roach88/aqlc/internal/schema"
)

// Operator compares a field with values or another field.
type Operator string

const (
	OpEQ        Operator = "="
	OpNEQ       Operator = "<>"
	OpGT        Operator = ">"
	OpGE        Operator = ">="
	OpLT        Operator = "<"
	OpLE        Operator = "<="
	OpIn        Operator = "IN"
	OpLike      Operator = "LIKE"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// Condition is a filter or join condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Condition types:
//   - *AndCondition, *OrCondition, *NotCondition
//   - *TrueCondition, *FalseCondition
//   - *FieldValueCondition, *DvOrderedValueCondition, *NotNullCondition
//   - *FieldFieldJoinCondition, *CoalesceJoinCondition
//   - *FolderItemJoinCondition, *PathChildCondition
//   - *DescendantCondition, *PathFilterJoinCondition
type Condition interface {
	aslCondition() // Marker method - seals interface to this package
}

type AndCondition struct{ Operands []Condition }
type OrCondition struct{ Operands []Condition }
type NotCondition struct{ Operand Condition }
type TrueCondition struct{}
type FalseCondition struct{}

func (*AndCondition) aslCondition()   {}
func (*OrCondition) aslCondition()    {}
func (*NotCondition) aslCondition()   {}
func (*TrueCondition) aslCondition()  {}
func (*FalseCondition) aslCondition() {}

// FieldValueCondition compares a field with literal values. IN takes any
// number of values, IS NULL none, the other operators one.
type FieldValueCondition struct {
	Field    Field
	Operator Operator
	Values   []any
}

func (*FieldValueCondition) aslCondition() {}

// DvOrderedValueCondition compares the magnitude of a DV_ORDERED JSON
// value, restricted to Types.
type DvOrderedValueCondition struct {
	Field Field
	// Types is never empty.
	Types    []string
	Operator Operator
	Values   []any
}

func (*DvOrderedValueCondition) aslCondition() {}

// NotNullCondition requires a row of a left joined query.
type NotNullCondition struct {
	Field Field
}

func (*NotNullCondition) aslCondition() {}

// FieldFieldJoinCondition compares two fields.
type FieldFieldJoinCondition struct {
	Left     Field
	Operator Operator
	Right    Field
}

func (*FieldFieldJoinCondition) aslCondition() {}

// CoalesceJoinCondition compares two fields and falls back to Default when
// either side is NULL.
type CoalesceJoinCondition struct {
	Left     Field
	Operator Operator
	Right    Field
	Default  bool
}

func (*CoalesceJoinCondition) aslCondition() {}

// FolderItemJoinCondition matches compositions referenced by a folder.
type FolderItemJoinCondition struct {
	ItemIDs Field
	VoID    Field
}

func (*FolderItemJoinCondition) aslCondition() {}

// PathChildCondition joins a path structure node to its parent row.
type PathChildCondition struct {
	Relation schema.SourceRelation
	Parent   Query
	Child    Query
	// Expanded is the equivalent conjunction of field comparisons.
	Expanded []Condition
}

func (*PathChildCondition) aslCondition() {}

// DescendantCondition joins a containment to rows below its parent.
type DescendantCondition struct {
	ParentRelation schema.SourceRelation
	Parent         Query
	Child          Query
	// Expanded is the equivalent conjunction of field comparisons.
	Expanded []Condition
}

func (*DescendantCondition) aslCondition() {}

// PathFilterJoinCondition carries a path root predicate evaluated on the
// query joined to.
type PathFilterJoinCondition struct {
	Condition Condition
}

func (*PathFilterJoinCondition) aslCondition() {}

// And combines conditions, dropping True operands and collapsing to False
// if any operand is False. An empty result is nil.
func And(conds ...Condition) Condition {
	return reduce(conds, true)
}

// Or combines conditions, dropping False operands and collapsing to True
// if any operand is True. An empty result is nil.
func Or(conds ...Condition) Condition {
	return reduce(conds, false)
}

func reduce(conds []Condition, and bool) Condition {
	var out []Condition
	for _, c := range conds {
		switch c.(type) {
		case nil:
			continue
		case *TrueCondition:
			if and {
				continue
			}
			return &TrueCondition{}
		case *FalseCondition:
			if !and {
				continue
			}
			return &FalseCondition{}
		}
		out = append(out, c)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	if and {
		return &AndCondition{Operands: out}
	}
	return &OrCondition{Operands: out}
}

// ConditionWithProvider returns a copy of c whose fields are exposed
// through p.
func ConditionWithProvider(c Condition, p Query) Condition {
	return MapFields(c, func(f Field) Field { return f.WithProvider(p) })
}

// MapFields returns a copy of c with every field replaced by fn(field).
func MapFields(c Condition, fn func(Field) Field) Condition {
	switch v := c.(type) {
	case *AndCondition:
		return &AndCondition{Operands: mapAll(v.Operands, fn)}
	case *OrCondition:
		return &OrCondition{Operands: mapAll(v.Operands, fn)}
	case *NotCondition:
		return &NotCondition{Operand: MapFields(v.Operand, fn)}
	case *FieldValueCondition:
		return &FieldValueCondition{Field: fn(v.Field), Operator: v.Operator, Values: v.Values}
	case *DvOrderedValueCondition:
		return &DvOrderedValueCondition{Field: fn(v.Field), Types: v.Types, Operator: v.Operator, Values: v.Values}
	case *NotNullCondition:
		return &NotNullCondition{Field: fn(v.Field)}
	case *FieldFieldJoinCondition:
		return &FieldFieldJoinCondition{Left: fn(v.Left), Operator: v.Operator, Right: fn(v.Right)}
	case *CoalesceJoinCondition:
		return &CoalesceJoinCondition{Left: fn(v.Left), Operator: v.Operator, Right: fn(v.Right), Default: v.Default}
	case *FolderItemJoinCondition:
		return &FolderItemJoinCondition{ItemIDs: fn(v.ItemIDs), VoID: fn(v.VoID)}
	case *PathChildCondition:
		out := *v
		out.Expanded = mapAll(v.Expanded, fn)
		return &out
	case *DescendantCondition:
		out := *v
		out.Expanded = mapAll(v.Expanded, fn)
		return &out
	case *PathFilterJoinCondition:
		return &PathFilterJoinCondition{Condition: MapFields(v.Condition, fn)}
	default:
		return c
	}
}

func mapAll(cs []Condition, fn func(Field) Field) []Condition {
	out := make([]Condition, len(cs))
	for i, c := range cs {
		out[i] = MapFields(c, fn)
	}
	return out
}

// WalkFields calls fn for every field referenced by c.
func WalkFields(c Condition, fn func(Field)) {
	MapFields(c, func(f Field) Field {
		fn(f)
		return f
	})
}
