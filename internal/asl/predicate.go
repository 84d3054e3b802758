package asl

import (
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/knowledge"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/schema"
)

// predicates turns OR-of-AND predicates into a condition; nil when there
// are none.
func predicates(ors []aql.AndPredicate, fn func(aql.ComparisonPredicate) (Condition, error)) (Condition, error) {
	var branches []Condition
	for _, and := range ors {
		var ops []Condition
		for _, cp := range and.Operands {
			c, err := fn(cp)
			if err != nil {
				return nil, err
			}
			ops = append(ops, c)
		}
		if c := And(ops...); c != nil {
			branches = append(branches, c)
		} else if len(ops) > 0 {
			// every operand was True
			branches = append(branches, &TrueCondition{})
		}
	}
	return Or(branches...), nil
}

func predicateOperator(op aql.PredicateOperator) (Operator, error) {
	switch op {
	case aql.PredEQ:
		return OpEQ, nil
	case aql.PredNEQ:
		return OpNEQ, nil
	case aql.PredGT:
		return OpGT, nil
	case aql.PredGE:
		return OpGE, nil
	case aql.PredLT:
		return OpLT, nil
	case aql.PredLE:
		return OpLE, nil
	default:
		return "", aql.NewInternalError("unexpected predicate operator %s", op)
	}
}

// structurePredicate translates a containment predicate on sq. Only
// predicates answered by extracted columns are possible here.
func (st *build) structurePredicate(cp aql.ComparisonPredicate, sq *StructureQuery) (Condition, error) {
	candidates := sq.RMTypes
	if len(candidates) == 0 && sq.Relation == schema.RelationEHR {
		candidates = []string{schema.TypeEHR}
	}
	if len(candidates) == 0 {
		return nil, aql.NewInternalError("structure query %s has no RM type", sq.Alias())
	}
	ec, ok := schema.FindExtractedColumn(candidates[0], cp.Path)
	if !ok || !containsAll(ec.AllowedTypes(), candidates) {
		return nil, aql.NewInternalError("unexpected structure predicate on %s", cp.Path)
	}
	op, err := predicateOperator(cp.Operator)
	if err != nil {
		return nil, err
	}
	p, ok := cp.Value.(aql.Primitive)
	if !ok {
		return nil, aql.NewInternalError("unresolved predicate value %s", aql.RenderOperand(cp.Value))
	}
	values := []aql.Primitive{p}

	var (
		field Field
		vals  []any
	)
	switch ec {
	case schema.NameValue:
		if field, err = findField(sq, sq, schema.ColEntityName); err != nil {
			return nil, err
		}
		vals = conditionValues(values, op, schema.TypeString)
	case schema.VoID:
		field = &ComplexExtractedColumnField{source: source{sourceOf(sq)}, Extracted: schema.VoID}
		vals = conditionValues(values, op, schema.TypeString)
	case schema.EhrIDCol:
		if field, err = findField(sq, sq, schema.ColID); err != nil {
			return nil, err
		}
		vals = uuidValues(conditionValues(values, op, schema.TypeString))
	case schema.ArchetypeNodeID:
		field = &ComplexExtractedColumnField{source: source{sourceOf(sq)}, Extracted: schema.ArchetypeNodeID}
		vals = archetypeNodeIDValues(st.model, values, op)
	case schema.RootConcept:
		if field, err = findField(sq, sq, schema.ColRootConcept); err != nil {
			return nil, err
		}
		vals = rootConceptValues(st.model, values, op)
	case schema.TemplateID:
		if field, err = findField(sq, sq, schema.ColTemplateID); err != nil {
			return nil, err
		}
		if vals, err = st.templateIDValues(values, op); err != nil {
			return nil, err
		}
	default:
		return nil, aql.NewInternalError("unexpected structure predicate on %s", ec)
	}
	return valueCondition(field, op, vals)
}

// valueCondition builds field op values. Without values EQ, IN and LIKE
// match nothing and NEQ matches everything.
func valueCondition(field Field, op Operator, values []any) (Condition, error) {
	if len(values) == 0 {
		switch op {
		case OpIn, OpEQ, OpLike:
			return &FalseCondition{}, nil
		case OpNEQ:
			return &TrueCondition{}, nil
		default:
			return nil, aql.NewInternalError("unexpected operator %s without values", op)
		}
	}
	return &FieldValueCondition{Field: field, Operator: op, Values: values}, nil
}

func containsAll(list, sub []string) bool {
	for _, s := range sub {
		if !slices.Contains(list, s) {
			return false
		}
	}
	return true
}

// conditionValues keeps the values usable with op on a field of type t.
// Equality drops values of another kind; LIKE patterns stay untranslated
// until the SQL is rendered.
func conditionValues(values []aql.Primitive, op Operator, t schema.ColumnType) []any {
	var out []any
	for _, p := range values {
		v := p.Value()
		switch op {
		case OpEQ, OpNEQ, OpIn:
			if t == schema.TypeJSON || valueOfType(v, t) {
				out = append(out, v)
			}
		case OpLike:
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		default:
			out = append(out, v)
		}
	}
	return out
}

// valueOfType reports whether v can be compared with a column of type t.
// Uuid and timestamp columns are compared with their text form.
func valueOfType(v any, t schema.ColumnType) bool {
	switch v.(type) {
	case string:
		return t != schema.TypeInt
	case int64:
		return t == schema.TypeInt
	default:
		return false
	}
}

func uuidValues(values []any) []any {
	var out []any
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func archetypeNodeIDValues(m *rm.Model, values []aql.Primitive, op Operator) []any {
	var out []any
	for _, v := range conditionValues(values, op, schema.TypeString) {
		s, ok := v.(string)
		switch {
		case !ok:
		case op == OpLike:
			out = append(out, m.FromArchetypeNodeIDPattern(s))
		default:
			out = append(out, m.FromArchetypeNodeID(s))
		}
	}
	return out
}

// rootConceptValues keeps the concepts of COMPOSITION archetypes.
func rootConceptValues(m *rm.Model, values []aql.Primitive, op Operator) []any {
	var out []any
	for _, v := range archetypeNodeIDValues(m, values, op) {
		tc := v.(rm.TypeAndConcept)
		if tc.Alias == "CO" {
			out = append(out, tc.Concept)
		}
	}
	return out
}

// templateIDValues resolves template ids to the stored uuids. Unknown
// template ids are dropped.
func (st *build) templateIDValues(values []aql.Primitive, op Operator) ([]any, error) {
	switch op {
	case OpEQ, OpNEQ, OpIn:
	default:
		return nil, aql.NewInternalError("unexpected operator for template_id: %s", op)
	}
	var out []any
	for _, v := range conditionValues(values, op, schema.TypeString) {
		s := v.(string)
		if st.Knowledge == nil {
			out = append(out, knowledge.DeriveUUID(s))
			continue
		}
		id, ok, err := st.Knowledge.TemplateUUID(st.ctx, s)
		if err != nil {
			return nil, aql.WrapInternalError(err, "template lookup failed")
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// descendantCondition joins right, a containment below left.
//
//	EHR          l.id = r.ehr_id
//	EHR_STATUS   l.ehr_id = r.ehr_id
//	COMPOSITION  l.vo_id = r.vo_id
//	FOLDER       l.ehr_id = r.ehr_id AND l.ehr_folders_idx = r.ehr_folders_idx
//
// Below a non-root row, r.num must also lie in (l.num, l.num_cap].
func descendantCondition(left Query, leftOwner *StructureQuery, right Query, rightOwner *StructureQuery) (*DescendantCondition, error) {
	var expanded []Condition
	var err error
	switch leftOwner.Relation {
	case schema.RelationEHR:
		c, err := columnsEqual(left, leftOwner, schema.ColID, right, rightOwner, schema.ColEhrID)
		if err != nil {
			return nil, err
		}
		expanded = append(expanded, c)
	case schema.RelationEHRStatus, schema.RelationComposition, schema.RelationFolder:
		if expanded, err = sameRootConditions(left, leftOwner, right, rightOwner); err != nil {
			return nil, err
		}
		if !leftOwner.Root {
			lNum, err := findField(left, leftOwner, schema.ColNum)
			if err != nil {
				return nil, err
			}
			lCap, err := findField(left, leftOwner, schema.ColNumCap)
			if err != nil {
				return nil, err
			}
			rNum, err := findField(right, rightOwner, schema.ColNum)
			if err != nil {
				return nil, err
			}
			expanded = append(expanded,
				&FieldFieldJoinCondition{Left: lNum, Operator: OpLT, Right: rNum},
				&CoalesceJoinCondition{Left: lCap, Operator: OpGE, Right: rNum, Default: false},
			)
		}
	default:
		return nil, aql.NewInternalError("descendant condition not applicable to %s", leftOwner.Relation)
	}
	return &DescendantCondition{
		ParentRelation: leftOwner.Relation,
		Parent:         left,
		Child:          right,
		Expanded:       expanded,
	}, nil
}

// pathChildCondition joins right, a direct child of left within the same
// root object.
func pathChildCondition(left Query, leftOwner *StructureQuery, right Query, rightOwner *StructureQuery) (*PathChildCondition, error) {
	expanded, err := sameRootConditions(left, leftOwner, right, rightOwner)
	if err != nil {
		return nil, err
	}
	rParent, err := findField(right, rightOwner, schema.ColParentNum)
	if err != nil {
		return nil, err
	}
	if leftOwner.Root {
		expanded = append(expanded, &FieldFieldJoinCondition{
			Left:     rParent,
			Operator: OpEQ,
			Right:    NewConstantField(nil, 0, ""),
		})
	} else {
		lNum, err := findField(left, leftOwner, schema.ColNum)
		if err != nil {
			return nil, err
		}
		expanded = append(expanded, &FieldFieldJoinCondition{Left: lNum, Operator: OpEQ, Right: rParent})
	}
	return &PathChildCondition{
		Relation: leftOwner.Relation,
		Parent:   left,
		Child:    right,
		Expanded: expanded,
	}, nil
}

func sameRootConditions(left Query, leftOwner *StructureQuery, right Query, rightOwner *StructureQuery) ([]Condition, error) {
	var columns []string
	switch leftOwner.Relation {
	case schema.RelationEHRStatus:
		columns = []string{schema.ColEhrID}
	case schema.RelationComposition:
		columns = []string{schema.ColVoID}
	case schema.RelationFolder:
		columns = []string{schema.ColEhrID, schema.ColEhrFoldersIdx}
	default:
		return nil, aql.NewInternalError("unexpected parent relation type %s", leftOwner.Relation)
	}
	switch rightOwner.Relation {
	case schema.RelationEHRStatus, schema.RelationComposition, schema.RelationFolder:
	default:
		return nil, aql.NewInternalError("unexpected descendant relation type %s", rightOwner.Relation)
	}
	out := make([]Condition, 0, len(columns))
	for _, col := range columns {
		c, err := columnsEqual(left, leftOwner, col, right, rightOwner, col)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func columnsEqual(left Query, leftOwner *StructureQuery, leftCol string, right Query, rightOwner *StructureQuery, rightCol string) (Condition, error) {
	l, err := findField(left, leftOwner, leftCol)
	if err != nil {
		return nil, err
	}
	r, err := findField(right, rightOwner, rightCol)
	if err != nil {
		return nil, err
	}
	return &FieldFieldJoinCondition{Left: l, Operator: OpEQ, Right: r}, nil
}
