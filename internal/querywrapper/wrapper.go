package querywrapper

import (
	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/pathanalysis"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/schema"
)

// OrderByWrapper is one ORDER BY expression.
type OrderByWrapper struct {
	Path      *aql.IdentifiedPath
	Direction aql.Direction
	Root      *ContainsWrapper
}

// QueryWrapper is the normalized form of a query.
type QueryWrapper struct {
	Distinct bool
	Selects  []*SelectWrapper
	Chain    *ContainsChain
	// Where is nil when the query has no WHERE clause.
	Where   Condition
	OrderBy []*OrderByWrapper
	Limit   *int64
	Offset  *int64
	// PathInfos holds the path analysis of every containment paths refer
	// to, except EHR whose paths are all extracted columns.
	PathInfos map[*ContainsWrapper]*pathanalysis.PathInfo

	roots map[aql.Root]*ContainsWrapper
}

// NonPrimitiveSelects returns the selects reading from the data.
func (w *QueryWrapper) NonPrimitiveSelects() []*SelectWrapper {
	var out []*SelectWrapper
	for _, s := range w.Selects {
		if s.Kind != SelectPrimitive {
			out = append(out, s)
		}
	}
	return out
}

// IsAggregating reports whether any select is an aggregate function.
func (w *QueryWrapper) IsAggregating() bool {
	for _, s := range w.Selects {
		if s.Kind == SelectAggregate {
			return true
		}
	}
	return false
}

// Wrapper returns the wrapper of a FROM containment.
func (w *QueryWrapper) Wrapper(r aql.Root) (*ContainsWrapper, bool) {
	cw, ok := w.roots[r]
	return cw, ok
}

// Wrap normalizes q. A nil model uses rm.Default().
func Wrap(q *aql.Query, m *rm.Model) (*QueryWrapper, error) {
	if m == nil {
		m = rm.Default()
	}
	cb := &chainBuilder{byRoot: make(map[aql.Root]*ContainsWrapper)}
	chain, err := cb.build(q.From, nil)
	if err != nil {
		return nil, err
	}

	w := &QueryWrapper{
		Distinct:  q.Select.Distinct,
		Chain:     chain,
		Limit:     q.Limit,
		Offset:    q.Offset,
		PathInfos: make(map[*ContainsWrapper]*pathanalysis.PathInfo),
		roots:     cb.byRoot,
	}
	for _, item := range q.Select.Items {
		sw, err := wrapSelect(item, cb.byRoot)
		if err != nil {
			return nil, err
		}
		w.Selects = append(w.Selects, sw)
	}
	if q.Where != nil {
		condBuilder := &conditionBuilder{roots: cb.byRoot}
		if w.Where, err = condBuilder.build(q.Where, false); err != nil {
			return nil, err
		}
	}
	for _, ob := range q.OrderBy {
		root, err := rootOf(ob.Path, cb.byRoot)
		if err != nil {
			return nil, err
		}
		w.OrderBy = append(w.OrderBy, &OrderByWrapper{Path: ob.Path, Direction: ob.Direction, Root: root})
	}

	clauses := pathanalysis.ClausesByPath(q)
	for root, tree := range pathanalysis.AnalyzeCohesion(q) {
		cw, ok := cb.byRoot[root]
		if !ok {
			return nil, aql.NewInternalError("Path root %s is not part of the FROM clause", root.RootIdentifier())
		}
		if cw.Kind == ContainsRM && cw.Type() == schema.TypeEHR {
			continue
		}
		pi, err := pathanalysis.NewPathInfo(m, tree, clauses)
		if err != nil {
			return nil, err
		}
		w.PathInfos[cw] = pi
	}
	return w, nil
}
