package asl

import (
	"slices"
	"time"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/querywrapper"
	"github.com/roach88/aqlc/internal/schema"
)

// numericDvOrdered are compared by a numeric magnitude.
var numericDvOrdered = []string{"DV_ORDINAL", "DV_SCALE", "DV_PROPORTION", "DV_COUNT", "DV_QUANTITY"}

// temporalDvOrdered are compared by a magnitude derived from the temporal
// value, one type at a time.
var temporalDvOrdered = []string{"DV_DATE_TIME", "DV_DATE", "DV_TIME"}

// where compiles the normalized WHERE tree.
func (st *build) where(c querywrapper.Condition) (Condition, error) {
	switch v := c.(type) {
	case *querywrapper.LogicalCondition:
		ops := make([]Condition, 0, len(v.Values))
		for _, o := range v.Values {
			oc, err := st.where(o)
			if err != nil {
				return nil, err
			}
			ops = append(ops, oc)
		}
		switch v.Operator {
		case querywrapper.LogicalAnd:
			return And(ops...), nil
		case querywrapper.LogicalOr:
			return Or(ops...), nil
		case querywrapper.LogicalNot:
			if len(ops) != 1 {
				return nil, aql.NewInternalError("NOT with %d operands", len(ops))
			}
			return not(ops[0]), nil
		default:
			return nil, aql.NewInternalError("unexpected logical operator %s", v.Operator)
		}
	case *querywrapper.ComparisonCondition:
		f, err := st.field(v.Path)
		if err != nil {
			return nil, err
		}
		if types := DvOrderedTypes(f); len(types) > 0 {
			return dvOrderedCondition(f, types, v.Operator, v.Values)
		}
		return st.fieldValueCondition(f, v)
	default:
		return nil, aql.NewInternalError("unexpected condition %T", c)
	}
}

func not(c Condition) Condition {
	switch c.(type) {
	case nil:
		return nil
	case *TrueCondition:
		return &FalseCondition{}
	case *FalseCondition:
		return &TrueCondition{}
	default:
		return &NotCondition{Operand: c}
	}
}

func comparisonOperator(op querywrapper.Operator) (Operator, error) {
	switch op {
	case querywrapper.OpEQ:
		return OpEQ, nil
	case querywrapper.OpNEQ:
		return OpNEQ, nil
	case querywrapper.OpGT:
		return OpGT, nil
	case querywrapper.OpGE:
		return OpGE, nil
	case querywrapper.OpLT:
		return OpLT, nil
	case querywrapper.OpLE:
		return OpLE, nil
	case querywrapper.OpMatches:
		return OpIn, nil
	case querywrapper.OpLike:
		return OpLike, nil
	default:
		return "", aql.NewInternalError("unexpected comparison operator %s", op)
	}
}

func (st *build) fieldValueCondition(f Field, c *querywrapper.ComparisonCondition) (Condition, error) {
	ec := ExtractedColumn(f)
	if c.Operator == querywrapper.OpExists {
		if ec != "" {
			return &TrueCondition{}, nil
		}
		return &NotNullCondition{Field: f}, nil
	}
	op, err := comparisonOperator(c.Operator)
	if err != nil {
		return nil, err
	}
	vals, err := st.whereValues(f, ec, op, c.Values)
	if err != nil {
		return nil, err
	}
	return valueCondition(f, op, vals)
}

// whereValues converts the compared values to the representation stored in
// the field's column. Values without a representation are dropped.
func (st *build) whereValues(f Field, ec schema.ExtractedColumn, op Operator, values []aql.Primitive) ([]any, error) {
	switch ec {
	case schema.TemplateID:
		return st.templateIDValues(values, op)
	case schema.ArchetypeNodeID:
		return archetypeNodeIDValues(st.model, values, op), nil
	case schema.RootConcept:
		return rootConceptValues(st.model, values, op), nil
	case schema.OvTimeCommittedDv, schema.OvTimeCommitted, schema.EhrTimeCreatedDv, schema.EhrTimeCreated:
		var out []any
		for _, p := range values {
			t, ok := timestampValue(p)
			switch {
			case ok:
				out = append(out, t)
			case isOrdering(op):
				return nil, aql.NewIllegalError("%s on %s requires a date-time value, got %v", op, ec, p.Value())
			}
		}
		return out, nil
	case schema.AdChangeTypeCode:
		var out []any
		for _, s := range stringValues(values) {
			if ct, ok := schema.ChangeTypeByCode(s); ok {
				out = append(out, string(ct))
			}
		}
		return out, nil
	case schema.AdChangeTypeTerm, schema.AdChangeTypeValue:
		var out []any
		for _, s := range stringValues(values) {
			if ct, ok := schema.ChangeTypeByTerm(s); ok {
				out = append(out, string(ct))
			}
		}
		return out, nil
	}
	t := fieldType(f)
	vals := conditionValues(values, op, t)
	if t == schema.TypeUUID && (op == OpEQ || op == OpNEQ || op == OpIn) {
		vals = uuidValues(vals)
	}
	return vals, nil
}

func stringValues(values []aql.Primitive) []string {
	var out []string
	for _, p := range values {
		if s, ok := p.Value().(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// timestampValue interprets a date or date-time, down to a bare year.
// Values without offset are UTC; a date is its start of day.
func timestampValue(p aql.Primitive) (time.Time, bool) {
	s, ok := p.Value().(string)
	if !ok {
		return time.Time{}, false
	}
	tp, ok := aql.ParseTemporal(s)
	if !ok {
		return aql.ParsePartialTimestamp(s)
	}
	if !tp.HasDate {
		return time.Time{}, false
	}
	t := tp.Date
	if tp.HasTime {
		t = t.Add(time.Duration(tp.Seconds * float64(time.Second)))
		if tp.HasOffset {
			t = t.Add(-time.Duration(tp.Offset) * time.Second)
		}
	}
	return t.UTC(), true
}

func isOrdering(op Operator) bool {
	switch op {
	case OpGT, OpGE, OpLT, OpLE:
		return true
	}
	return false
}

// dvOrderedCondition compares DV_ORDERED values by magnitude. Every group of
// comparable types gets its own condition; a value matching no allowed type
// is dropped.
func dvOrderedCondition(f Field, allowed []string, op querywrapper.Operator, values []aql.Primitive) (Condition, error) {
	switch op {
	case querywrapper.OpExists:
		return &NotNullCondition{Field: f}, nil
	case querywrapper.OpLike:
		return nil, aql.NewInternalError("LIKE on DV_ORDERED is not supported")
	}
	aop, err := comparisonOperator(op)
	if err != nil {
		return nil, err
	}
	isEquals := op == querywrapper.OpEQ || op == querywrapper.OpMatches

	var numeric []any
	temporal := make(map[string][]any)
	numericTypes := intersect(allowed, numericDvOrdered)
	for _, p := range values {
		switch v := p.Value().(type) {
		case int64, float64:
			if len(numericTypes) > 0 && !slices.Contains(numeric, v) {
				numeric = append(numeric, v)
			}
		case string:
			tp, ok := aql.ParseTemporal(v)
			if !ok {
				continue
			}
			for typ, m := range temporalMagnitudes(tp, allowed, isEquals) {
				if !slices.Contains(temporal[typ], m) {
					temporal[typ] = append(temporal[typ], m)
				}
			}
		}
	}

	var ors []Condition
	if len(numeric) > 0 {
		ors = append(ors, &DvOrderedValueCondition{Field: f, Types: numericTypes, Operator: aop, Values: numeric})
	}
	for _, typ := range temporalDvOrdered {
		if vals := temporal[typ]; len(vals) > 0 {
			ors = append(ors, &DvOrderedValueCondition{Field: f, Types: []string{typ}, Operator: aop, Values: vals})
		}
	}
	if len(ors) == 0 {
		return &FalseCondition{}, nil
	}
	return Or(ors...), nil
}

// temporalMagnitudes returns the magnitude of tp per allowed temporal type.
// A date-time never equals a date.
//
//	DV_DATE_TIME  seconds since the epoch, UTC unless an offset is given
//	DV_DATE       days since the epoch
//	DV_TIME       seconds since midnight, UTC unless an offset is given
func temporalMagnitudes(tp aql.TemporalParts, allowed []string, isEquals bool) map[string]any {
	out := make(map[string]any)
	offset := 0.0
	if tp.HasOffset {
		offset = float64(tp.Offset)
	}
	switch {
	case tp.HasDate:
		if (!tp.HasTime || !isEquals) && slices.Contains(allowed, "DV_DATE") {
			out["DV_DATE"] = tp.Date.Unix() / 86400
		}
		if slices.Contains(allowed, "DV_DATE_TIME") {
			secs := float64(tp.Date.Unix())
			if tp.HasTime {
				secs += tp.Seconds - offset
			}
			out["DV_DATE_TIME"] = secs
		}
	case tp.HasTime && slices.Contains(allowed, "DV_TIME"):
		out["DV_TIME"] = tp.Seconds - offset
	}
	return out
}

func intersect(a, b []string) []string {
	var out []string
	for _, s := range a {
		if slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}
