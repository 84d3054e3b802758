package asl

import (
	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/querywrapper"
	"github.com/roach88/aqlc/internal/schema"
)

// addSelect compiles SELECT and ORDER BY. A query selecting only
// primitives counts the matching rows instead.
func (st *build) addSelect() error {
	selects := st.w.NonPrimitiveSelects()
	if len(selects) == 0 {
		return st.addSyntheticSelect()
	}

	aggregating := false
	for _, s := range selects {
		switch s.Kind {
		case querywrapper.SelectPath:
			f, err := st.field(s.Path)
			if err != nil {
				return err
			}
			st.root.Selects = append(st.root.Selects, f)
		case querywrapper.SelectAggregate:
			af, ok := s.Aggregate()
			if !ok {
				return aql.NewInternalError("select %s is no aggregate function", s.Name())
			}
			var base Field
			if s.Path != nil {
				f, err := st.field(s.Path)
				if err != nil {
					return err
				}
				base = f
			}
			st.root.Selects = append(st.root.Selects, &AggregatingField{
				source:   source{sourceOf(st.root)},
				Function: af.Name,
				Distinct: af.Distinct,
				Base:     base,
			})
			aggregating = true
		case querywrapper.SelectFunction:
			return aql.NewNotImplementedError("Functions are not supported: %s", s.Name())
		default:
			return aql.NewInternalError("unexpected select kind %s", s.Kind)
		}
	}

	switch {
	case aggregating:
		for i, s := range selects {
			if s.Kind != querywrapper.SelectAggregate {
				st.root.GroupBy = appendGroupBy(st.root.GroupBy, st.root.Selects[i])
			}
		}
	case st.w.Distinct:
		for _, f := range st.root.Selects {
			st.root.GroupBy = appendGroupBy(st.root.GroupBy, f)
		}
	}
	return st.addOrderBy(aggregating || st.w.Distinct)
}

// appendGroupBy adds f unless it is a constant or already present.
func appendGroupBy(groupBy []Field, f Field) []Field {
	if _, ok := f.(*ConstantField); ok {
		return groupBy
	}
	for _, g := range groupBy {
		if g == f {
			return groupBy
		}
	}
	return append(groupBy, f)
}

func (st *build) addOrderBy(grouping bool) error {
	for _, ob := range st.w.OrderBy {
		f, err := st.field(ob.Path)
		if err != nil {
			return err
		}
		st.root.OrderBy = append(st.root.OrderBy, OrderByField{Field: f, Direction: ob.Direction})
		if grouping && len(DvOrderedTypes(f)) > 0 && fieldType(f) != schema.TypeString {
			st.root.GroupByDvOrderedMagnitude = appendGroupBy(st.root.GroupByDvOrderedMagnitude, f)
		}
	}
	return nil
}

// addSyntheticSelect counts the rows of the first containment.
func (st *build) addSyntheticSelect() error {
	first := st.w.Chain.Chain[0]
	op, ok := st.owners[first]
	if !ok {
		op, ok = st.owners[first.RMWrapper()]
	}
	if !ok {
		return aql.NewInternalError("containment %s has no structure query", first.Alias())
	}
	for _, f := range st.root.Fields() {
		cf, ok := f.(*ColumnField)
		if !ok || cf.Source().Owner != op.owner {
			continue
		}
		if cf.Column == schema.ColID || cf.Column == schema.ColVoID {
			st.root.Selects = append(st.root.Selects, &AggregatingField{
				source:   source{sourceOf(st.root)},
				Function: aql.AggCount,
				Base:     cf,
			})
			return nil
		}
	}
	return aql.NewInternalError("no id column for the synthetic select of %s", op.owner.Alias())
}
