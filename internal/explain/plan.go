package explain

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/asl"
	"github.com/roach88/aqlc/internal/rm"
)

// Describe returns the plan description of root.
func Describe(root *asl.RootQuery) (Object, error) {
	selects := make(Array, len(root.Selects))
	for i, f := range root.Selects {
		selects[i] = FieldName(f)
	}
	from, err := children(root.Children)
	if err != nil {
		return nil, err
	}
	plan := Object{
		"selects": selects,
		"from":    from,
		"aliases": root.AliasCount,
	}
	if c := root.Filter(); c != nil {
		w, err := condition(c)
		if err != nil {
			return nil, err
		}
		plan["where"] = w
	}
	if len(root.GroupBy) > 0 {
		plan["group_by"] = fieldNames(root.GroupBy)
	}
	if len(root.GroupByDvOrderedMagnitude) > 0 {
		plan["group_by_magnitude"] = fieldNames(root.GroupByDvOrderedMagnitude)
	}
	if len(root.OrderBy) > 0 {
		obs := make(Array, len(root.OrderBy))
		for i, ob := range root.OrderBy {
			obs[i] = Object{"field": FieldName(ob.Field), "direction": string(ob.Direction)}
		}
		plan["order_by"] = obs
	}
	if root.Limit != nil {
		plan["limit"] = *root.Limit
	}
	if root.Offset != nil {
		plan["offset"] = *root.Offset
	}
	return plan, nil
}

func children(chs []asl.Child) (Array, error) {
	out := make(Array, 0, len(chs))
	for _, ch := range chs {
		q, err := query(ch.Query)
		if err != nil {
			return nil, err
		}
		o := Object{"query": q}
		if asl.Lateral(ch.Query) {
			o["lateral"] = true
		}
		if ch.Join != nil {
			o["join"] = string(ch.Join.Type)
			on, err := conditions(ch.Join.Conditions)
			if err != nil {
				return nil, err
			}
			o["on"] = on
		}
		out = append(out, o)
	}
	return out, nil
}

func query(q asl.Query) (Object, error) {
	switch v := q.(type) {
	case *asl.StructureQuery:
		conds, err := conditions(v.Conditions)
		if err != nil {
			return nil, err
		}
		o := Object{
			"kind":     "structure",
			"alias":    v.Alias(),
			"relation": string(v.Relation),
			"fields":   fieldNames(v.Fields()),
		}
		if len(v.RMTypes) > 0 {
			o["rm_types"] = v.RMTypes
		}
		if v.RequiresVersionJoin {
			o["version_join"] = true
		}
		if v.Root {
			o["root"] = true
		}
		if len(conds) > 0 {
			o["conditions"] = conds
		}
		return o, nil
	case *asl.EncapsulatingQuery:
		chs, err := children(v.Children)
		if err != nil {
			return nil, err
		}
		o := Object{"kind": "encapsulating", "alias": v.Alias(), "children": chs}
		if c := v.Filter(); c != nil {
			w, err := condition(c)
			if err != nil {
				return nil, err
			}
			o["where"] = w
		}
		return o, nil
	case *asl.PathDataQuery:
		o := Object{
			"kind":  "path_data",
			"alias": v.Alias(),
			"base":  v.Base.Alias(),
			"data":  FieldName(v.Data),
			"path":  pathString(v.Path),
			"type":  string(v.Type),
		}
		if v.Multiple {
			o["multiple"] = true
		}
		if len(v.DvOrderedTypes) > 0 {
			o["dv_ordered"] = v.DvOrderedTypes
		}
		return o, nil
	case *asl.FilteringQuery:
		return Object{"kind": "filtering", "alias": v.Alias(), "source": FieldName(v.Source)}, nil
	case *asl.ObjectDataQuery:
		return Object{"kind": "object_data", "alias": v.Alias(), "base": v.Base.Alias()}, nil
	default:
		return nil, fmt.Errorf("unexpected query %T", q)
	}
}

func conditions(cs []asl.Condition) (Array, error) {
	out := make(Array, 0, len(cs))
	for _, c := range cs {
		d, err := condition(c)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func condition(c asl.Condition) (any, error) {
	switch v := c.(type) {
	case *asl.TrueCondition:
		return true, nil
	case *asl.FalseCondition:
		return false, nil
	case *asl.AndCondition:
		ops, err := conditions(v.Operands)
		return Object{"and": ops}, err
	case *asl.OrCondition:
		ops, err := conditions(v.Operands)
		return Object{"or": ops}, err
	case *asl.NotCondition:
		op, err := condition(v.Operand)
		return Object{"not": op}, err
	case *asl.FieldValueCondition:
		o := Object{"field": FieldName(v.Field), "op": string(v.Operator)}
		if len(v.Values) > 0 {
			o["values"] = values(v.Values)
		}
		return o, nil
	case *asl.DvOrderedValueCondition:
		return Object{
			"magnitude": FieldName(v.Field),
			"op":        string(v.Operator),
			"types":     v.Types,
			"values":    values(v.Values),
		}, nil
	case *asl.NotNullCondition:
		return Object{"not_null": FieldName(v.Field)}, nil
	case *asl.FieldFieldJoinCondition:
		return Object{"left": FieldName(v.Left), "op": string(v.Operator), "right": FieldName(v.Right)}, nil
	case *asl.CoalesceJoinCondition:
		return Object{"left": FieldName(v.Left), "op": string(v.Operator), "right": FieldName(v.Right), "default": v.Default}, nil
	case *asl.FolderItemJoinCondition:
		return Object{"folder_items": FieldName(v.ItemIDs), "vo_id": FieldName(v.VoID)}, nil
	case *asl.PathChildCondition:
		ex, err := conditions(v.Expanded)
		return Object{"path_child": Object{"parent": v.Parent.Alias(), "child": v.Child.Alias(), "on": ex}}, err
	case *asl.DescendantCondition:
		ex, err := conditions(v.Expanded)
		return Object{"descendant": Object{"parent": v.Parent.Alias(), "child": v.Child.Alias(), "on": ex}}, err
	case *asl.PathFilterJoinCondition:
		inner, err := condition(v.Condition)
		return Object{"path_filter": inner}, err
	default:
		return nil, fmt.Errorf("unexpected condition %T", c)
	}
}

func values(vs []any) Array {
	out := make(Array, len(vs))
	for i, v := range vs {
		out[i] = value(v)
	}
	return out
}

func value(v any) any {
	switch x := v.(type) {
	case string, bool, int, int64, float64:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case rm.TypeAndConcept:
		if x.Alias == "" {
			return x.Concept
		}
		return x.Alias + x.Concept
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func fieldNames(fs []asl.Field) Array {
	out := make(Array, len(fs))
	for i, f := range fs {
		out[i] = FieldName(f)
	}
	return out
}

// FieldName renders a field as owner.column, the form used in plan
// descriptions.
func FieldName(f asl.Field) string {
	owner := func() string {
		if o := f.Source().Owner; o != nil {
			return o.Alias()
		}
		return "?"
	}
	switch v := f.(type) {
	case *asl.ColumnField:
		name := owner() + "." + v.Column
		if v.Extracted != "" {
			name += "[" + string(v.Extracted) + "]"
		}
		return name
	case *asl.ConstantField:
		return fmt.Sprintf("const(%v)", value(v.Value))
	case *asl.SubqueryField:
		return "object(" + v.Query.Base.Alias() + ")"
	case *asl.AggregatingField:
		arg := "*"
		if v.Base != nil {
			arg = FieldName(v.Base)
		}
		if v.Distinct {
			arg = "DISTINCT " + arg
		}
		return string(v.Function) + "(" + arg + ")"
	case *asl.ComplexExtractedColumnField:
		return owner() + "[" + string(v.Extracted) + "]"
	case *asl.FolderItemIDField:
		return owner() + "." + asl.FolderItemIDColumn
	case *asl.RmPathField:
		return FieldName(v.Base) + pathString(v.Path)
	case *asl.StringAggregationField:
		parts := make([]string, len(v.Parts))
		for i, p := range v.Parts {
			parts[i] = FieldName(p)
		}
		return "concat(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("%T", f)
	}
}

func pathString(nodes []aql.PathNode) string {
	if len(nodes) == 0 {
		return ""
	}
	return "/" + (&aql.ObjectPath{Nodes: nodes}).String()
}
