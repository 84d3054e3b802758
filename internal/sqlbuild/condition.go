package sqlbuild

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/asl"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/schema"
)

// conditions renders a conjunction; an empty list is true.
func (r *render) conditions(cs []asl.Condition, sc scope) (string, error) {
	c := asl.And(cs...)
	if c == nil {
		return "true", nil
	}
	return r.condition(c, sc)
}

func (r *render) junction(cs []asl.Condition, sep string, sc scope) (string, error) {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		s, err := r.condition(c, sc)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	switch len(parts) {
	case 0:
		if sep == " OR " {
			return "false", nil
		}
		return "true", nil
	case 1:
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (r *render) condition(c asl.Condition, sc scope) (string, error) {
	switch v := c.(type) {
	case nil, *asl.TrueCondition:
		return "true", nil
	case *asl.FalseCondition:
		return "false", nil
	case *asl.AndCondition:
		return r.junction(v.Operands, " AND ", sc)
	case *asl.OrCondition:
		return r.junction(v.Operands, " OR ", sc)
	case *asl.NotCondition:
		s, err := r.condition(v.Operand, sc)
		if err != nil {
			return "", err
		}
		return "NOT (" + s + ")", nil
	case *asl.FieldValueCondition:
		return r.fieldValueCondition(v, sc)
	case *asl.DvOrderedValueCondition:
		return r.dvOrderedCondition(v, sc)
	case *asl.NotNullCondition:
		return r.notNullCondition(v, sc)
	case *asl.FieldFieldJoinCondition:
		return r.compareFields(v.Left, v.Operator, v.Right, sc)
	case *asl.CoalesceJoinCondition:
		s, err := r.compareFields(v.Left, v.Operator, v.Right, sc)
		if err != nil {
			return "", err
		}
		return "COALESCE(" + s + ", " + strconv.FormatBool(v.Default) + ")", nil
	case *asl.FolderItemJoinCondition:
		items, err := r.valueExpr(v.ItemIDs, sc)
		if err != nil {
			return "", err
		}
		id, err := r.voIDColumn(v.VoID, sc)
		if err != nil {
			return "", err
		}
		return id + " = ANY(" + items + ")", nil
	case *asl.PathChildCondition:
		return r.junction(v.Expanded, " AND ", sc)
	case *asl.DescendantCondition:
		return r.junction(v.Expanded, " AND ", sc)
	case *asl.PathFilterJoinCondition:
		return r.condition(v.Condition, sc)
	default:
		return "", aql.NewInternalError("unexpected condition %T", c)
	}
}

func (r *render) voIDColumn(f asl.Field, sc scope) (string, error) {
	if c, ok := f.(*asl.ComplexExtractedColumnField); ok {
		return r.complexColumn(c, schema.ColVoID, sc), nil
	}
	return r.valueExpr(f, sc)
}

func (r *render) compareFields(left asl.Field, op asl.Operator, right asl.Field, sc scope) (string, error) {
	l, err := r.valueExpr(left, sc)
	if err != nil {
		return "", err
	}
	rr, err := r.valueExpr(right, sc)
	if err != nil {
		return "", err
	}
	return l + " " + string(op) + " " + rr, nil
}

func (r *render) notNullCondition(c *asl.NotNullCondition, sc scope) (string, error) {
	switch v := c.Field.(type) {
	case *asl.ConstantField:
		return "true", nil
	case *asl.ComplexExtractedColumnField:
		return r.complexColumn(v, v.Columns()[0], sc) + " IS NOT NULL", nil
	default:
		e, err := r.valueExpr(c.Field, sc)
		if err != nil {
			return "", err
		}
		return e + " IS NOT NULL", nil
	}
}

func (r *render) fieldValueCondition(c *asl.FieldValueCondition, sc scope) (string, error) {
	switch v := c.Field.(type) {
	case *asl.ComplexExtractedColumnField:
		switch v.Extracted {
		case schema.VoID:
			return r.voIDCondition(v, c.Operator, c.Values, sc)
		case schema.ArchetypeNodeID:
			return r.archetypeNodeIDCondition(v, c.Operator, c.Values, sc)
		}
		return "", aql.NewInternalError("unexpected complex column %s", v.Extracted)
	case *asl.ConstantField:
		return r.applyOperator(r.typedArg(v.Value), schema.TypeString, c.Operator, c.Values)
	default:
		e, err := r.valueExpr(c.Field, sc)
		if err != nil {
			return "", err
		}
		return r.applyOperator(e, asl.FieldType(c.Field), c.Operator, c.Values)
	}
}

func isOrderOperator(op asl.Operator) bool {
	switch op {
	case asl.OpGT, asl.OpGE, asl.OpLT, asl.OpLE:
		return true
	}
	return false
}

func matchesType(v any, t schema.ColumnType) bool {
	switch t {
	case schema.TypeJSON:
		return true
	case schema.TypeString:
		_, ok := v.(string)
		return ok
	case schema.TypeUUID:
		_, ok := v.(uuid.UUID)
		return ok
	case schema.TypeTimestamp:
		_, ok := v.(time.Time)
		return ok
	case schema.TypeInt:
		switch v.(type) {
		case int, int32, int64:
			return true
		}
	}
	return false
}

// conditionValue converts v for a column of type t. Values that cannot
// match a uuid column are dropped.
func conditionValue(v any, t schema.ColumnType) (any, bool) {
	if t != schema.TypeUUID {
		return v, true
	}
	switch x := v.(type) {
	case uuid.UUID:
		return x, true
	case string:
		id, err := uuid.Parse(x)
		return id, err == nil
	}
	return nil, false
}

// applyOperator compares expression e of type t with values.
func (r *render) applyOperator(e string, t schema.ColumnType, op asl.Operator, values []any) (string, error) {
	jsonField := t == schema.TypeJSON
	switch op {
	case asl.OpIsNull, asl.OpIsNotNull:
		return e + " " + string(op), nil
	case asl.OpLike:
		if len(values) != 1 {
			return "", aql.NewInternalError("LIKE takes one pattern")
		}
		pattern, ok := values[0].(string)
		if !ok {
			return "false", nil
		}
		translate := TranslateLike
		if jsonField {
			translate = TranslateLikeJSON
		}
		p, err := translate(pattern)
		if err != nil {
			return "", err
		}
		return "CAST(" + e + " AS text) LIKE " + r.typedArg(p), nil
	}

	vals := make([]any, 0, len(values))
	for _, v := range values {
		if cv, ok := conditionValue(v, t); ok {
			vals = append(vals, cv)
		}
	}
	sqlOp := string(op)
	if op == asl.OpIn {
		sqlOp = string(asl.OpEQ)
	}

	switch len(vals) {
	case 0:
		switch op {
		case asl.OpEQ, asl.OpIn:
			return "false", nil
		case asl.OpNEQ:
			return "true", nil
		}
		return "", aql.NewInternalError("%s without value", op)
	case 1:
		v := vals[0]
		switch {
		case jsonField:
			return e + " " + sqlOp + " to_jsonb(" + r.typedArg(v) + ")", nil
		case isOrderOperator(op) && !matchesType(v, t):
			return "to_jsonb(" + e + ") " + sqlOp + " to_jsonb(" + r.typedArg(v) + ")", nil
		default:
			return e + " " + sqlOp + " " + r.arg(v), nil
		}
	}
	if op != asl.OpIn {
		return "", aql.NewInternalError("%s with %d values", op, len(vals))
	}
	list := make([]string, len(vals))
	for i, v := range vals {
		if jsonField {
			list[i] = "to_jsonb(" + r.typedArg(v) + ")"
		} else {
			list[i] = r.arg(v)
		}
	}
	return e + " IN (" + strings.Join(list, ", ") + ")", nil
}

type versionedID struct {
	id      uuid.UUID
	version int64
}

// voIDCondition compares version ids: plain uuids against vo_id, versioned
// ids as a row of (vo_id, sys_version).
func (r *render) voIDCondition(f *asl.ComplexExtractedColumnField, op asl.Operator, values []any, sc scope) (string, error) {
	idCol := r.complexColumn(f, schema.ColVoID, sc)
	verCol := r.complexColumn(f, schema.ColSysVersion, sc)
	switch op {
	case asl.OpIsNull, asl.OpIsNotNull:
		return idCol + " " + string(op), nil
	case asl.OpLike:
		return "", aql.NewInternalError("LIKE on %s", f.Extracted)
	}

	var (
		plain     []uuid.UUID
		versioned []versionedID
	)
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, "::")
		id, err := uuid.Parse(parts[0])
		if err != nil {
			continue
		}
		if len(parts) < 3 {
			plain = append(plain, id)
			continue
		}
		ver, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		versioned = append(versioned, versionedID{id, ver})
	}

	var parts []string
	if len(plain) > 0 {
		sqlOp := string(op)
		if op == asl.OpIn {
			sqlOp = string(asl.OpEQ)
		}
		if len(plain) == 1 {
			parts = append(parts, idCol+" "+sqlOp+" "+r.arg(plain[0]))
		} else {
			list := make([]string, len(plain))
			for i, id := range plain {
				list[i] = r.arg(id)
			}
			parts = append(parts, r.inList(idCol, op, list))
		}
	}
	if len(versioned) > 0 {
		row := "(" + idCol + ", " + verCol + ")"
		sqlOp := string(op)
		if op == asl.OpIn {
			sqlOp = string(asl.OpEQ)
		}
		list := make([]string, len(versioned))
		for i, v := range versioned {
			list[i] = "(" + r.arg(v.id) + ", " + r.arg(v.version) + ")"
		}
		if len(list) == 1 {
			parts = append(parts, row+" "+sqlOp+" "+list[0])
		} else {
			parts = append(parts, r.inList(row, op, list))
		}
	}

	switch len(parts) {
	case 0:
		if op == asl.OpNEQ {
			return "true", nil
		}
		return "false", nil
	case 1:
		return parts[0], nil
	}
	if op == asl.OpNEQ {
		return "(" + strings.Join(parts, " AND ") + ")", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func (r *render) inList(e string, op asl.Operator, list []string) string {
	if op == asl.OpNEQ {
		return e + " NOT IN (" + strings.Join(list, ", ") + ")"
	}
	return e + " IN (" + strings.Join(list, ", ") + ")"
}

// archetypeNodeIDCondition compares the type alias and concept columns.
func (r *render) archetypeNodeIDCondition(f *asl.ComplexExtractedColumnField, op asl.Operator, values []any, sc scope) (string, error) {
	entity := r.complexColumn(f, schema.ColRmEntity, sc)
	concept := r.complexColumn(f, schema.ColEntityConcept, sc)
	switch op {
	case asl.OpEQ, asl.OpNEQ, asl.OpIn:
	case asl.OpIsNull, asl.OpIsNotNull:
		return concept + " " + string(op), nil
	case asl.OpLike:
		return r.archetypeNodeIDLike(entity, concept, values)
	default:
		return "", aql.NewInternalError("%s on %s", op, f.Extracted)
	}

	var alts []string
	for _, v := range values {
		tc, ok := v.(rm.TypeAndConcept)
		if !ok {
			continue
		}
		if op == asl.OpNEQ {
			var ors []string
			if tc.Alias != "" {
				ors = append(ors, entity+" <> "+r.arg(tc.Alias))
			}
			ors = append(ors, concept+" <> "+r.arg(tc.Concept))
			alts = append(alts, "("+strings.Join(ors, " OR ")+")")
			continue
		}
		var ands []string
		if tc.Alias != "" {
			ands = append(ands, entity+" = "+r.arg(tc.Alias))
		}
		ands = append(ands, concept+" = "+r.arg(tc.Concept))
		alts = append(alts, "("+strings.Join(ands, " AND ")+")")
	}

	switch len(alts) {
	case 0:
		if op == asl.OpNEQ {
			return "true", nil
		}
		return "false", nil
	case 1:
		return alts[0], nil
	}
	if op == asl.OpNEQ {
		return "(" + strings.Join(alts, " AND ") + ")", nil
	}
	return "(" + strings.Join(alts, " OR ") + ")", nil
}

// archetypeNodeIDLike matches the concept against the pattern, restricted
// to the type alias when the pattern names one.
func (r *render) archetypeNodeIDLike(entity, concept string, values []any) (string, error) {
	if len(values) != 1 {
		return "", aql.NewInternalError("LIKE takes one pattern")
	}
	tc, ok := values[0].(rm.TypeAndConcept)
	if !ok {
		return "false", nil
	}
	p, err := TranslateLike(tc.Concept)
	if err != nil {
		return "", err
	}
	var ands []string
	if tc.Alias != "" {
		ands = append(ands, entity+" = "+r.arg(tc.Alias))
	}
	ands = append(ands, concept+" LIKE "+r.typedArg(p))
	return "(" + strings.Join(ands, " AND ") + ")", nil
}

// dvOrderedCondition compares the magnitude of values of the given
// DV_ORDERED types.
func (r *render) dvOrderedCondition(c *asl.DvOrderedValueCondition, sc scope) (string, error) {
	e, err := r.valueExpr(c.Field, sc)
	if err != nil {
		return "", err
	}
	aliases := make([]string, len(c.Types))
	for i, t := range c.Types {
		aliases[i] = literal(r.typeAlias(t))
	}
	typeCond := "(" + e + "->>" + literal(r.attributeAlias("_type")) + ") IN (" + strings.Join(aliases, ", ") + ")"

	m := magnitude(e)
	var cmp string
	switch {
	case len(c.Values) == 0:
		return "", aql.NewInternalError("%s without value", c.Operator)
	case len(c.Values) == 1:
		op := c.Operator
		if op == asl.OpIn {
			op = asl.OpEQ
		}
		cmp = m + " " + string(op) + " " + r.arg(c.Values[0])
	case c.Operator == asl.OpIn:
		list := make([]string, len(c.Values))
		for i, v := range c.Values {
			list[i] = r.arg(v)
		}
		cmp = m + " IN (" + strings.Join(list, ", ") + ")"
	default:
		return "", aql.NewInternalError("%s with %d values", c.Operator, len(c.Values))
	}
	return "(" + typeCond + " AND " + cmp + ")", nil
}
