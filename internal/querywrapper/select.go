package querywrapper

import (
	"github.com/roach88/aqlc/internal/aql"
)

// SelectKind classifies a SELECT item.
type SelectKind string

const (
	SelectPath      SelectKind = "PATH"
	SelectAggregate SelectKind = "AGGREGATE_FUNCTION"
	SelectFunction  SelectKind = "FUNCTION"
	SelectPrimitive SelectKind = "PRIMITIVE"
)

// SelectWrapper is one SELECT item with the containment its path is
// rooted at.
type SelectWrapper struct {
	Item aql.SelectItem
	Kind SelectKind
	// Path is the selected path, or the argument of an aggregate; nil for
	// COUNT(*), functions and primitives.
	Path *aql.IdentifiedPath
	// Root is nil when Path is.
	Root *ContainsWrapper
}

// Name returns the alias, or the rendered expression without one.
func (s *SelectWrapper) Name() string {
	if s.Item.Alias != "" {
		return s.Item.Alias
	}
	return aql.RenderColumnExpr(s.Item.Expr)
}

// Aggregate returns the aggregate function of an AGGREGATE_FUNCTION item.
func (s *SelectWrapper) Aggregate() (*aql.AggregateFunction, bool) {
	af, ok := s.Item.Expr.(*aql.AggregateFunction)
	return af, ok
}

// Primitive returns the constant of a PRIMITIVE item.
func (s *SelectWrapper) Primitive() (aql.Primitive, bool) {
	p, ok := s.Item.Expr.(aql.Primitive)
	return p, ok
}

func wrapSelect(item aql.SelectItem, roots map[aql.Root]*ContainsWrapper) (*SelectWrapper, error) {
	sw := &SelectWrapper{Item: item}
	switch v := item.Expr.(type) {
	case *aql.IdentifiedPath:
		sw.Kind, sw.Path = SelectPath, v
	case *aql.AggregateFunction:
		sw.Kind, sw.Path = SelectAggregate, v.Path
	case *aql.Function:
		sw.Kind = SelectFunction
		return sw, nil
	case aql.Primitive:
		sw.Kind = SelectPrimitive
		return sw, nil
	default:
		return nil, aql.NewInternalError("Unsupported select expression %T", item.Expr)
	}
	if sw.Path != nil {
		root, err := rootOf(sw.Path, roots)
		if err != nil {
			return nil, err
		}
		sw.Root = root
	}
	return sw, nil
}

func rootOf(ip *aql.IdentifiedPath, roots map[aql.Root]*ContainsWrapper) (*ContainsWrapper, error) {
	w, ok := roots[ip.Root]
	if !ok {
		return nil, aql.NewInternalError("Path %s is not rooted in the FROM clause", ip)
	}
	return w, nil
}
