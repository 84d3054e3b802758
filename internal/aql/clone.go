package aql

// Clone returns a deep copy of the query. Identified paths of the copy are
// bound to the copied containments.
func (q *Query) Clone() *Query {
	c := &cloner{roots: make(map[Root]Root)}
	out := &Query{}
	out.From = c.containment(q.From)
	out.Select.Distinct = q.Select.Distinct
	out.Select.Items = make([]SelectItem, len(q.Select.Items))
	for i, item := range q.Select.Items {
		out.Select.Items[i] = SelectItem{Expr: c.columnExpr(item.Expr), Alias: item.Alias}
	}
	out.Where = c.condition(q.Where)
	if q.OrderBy != nil {
		out.OrderBy = make([]OrderBy, len(q.OrderBy))
		for i, ob := range q.OrderBy {
			out.OrderBy[i] = OrderBy{Path: c.identifiedPath(ob.Path), Direction: ob.Direction}
		}
	}
	if q.Limit != nil {
		n := *q.Limit
		out.Limit = &n
	}
	if q.Offset != nil {
		n := *q.Offset
		out.Offset = &n
	}
	return out
}

type cloner struct {
	roots map[Root]Root
}

func (c *cloner) containment(in Containment) Containment {
	switch v := in.(type) {
	case nil:
		return nil
	case *ContainmentClass:
		out := &ContainmentClass{Type: v.Type, Identifier: v.Identifier, Predicates: ClonePredicates(v.Predicates)}
		c.roots[v] = out
		out.Contains = c.containment(v.Contains)
		return out
	case *ContainmentVersion:
		out := &ContainmentVersion{Identifier: v.Identifier, PredicateKind: v.PredicateKind}
		if v.Predicate != nil {
			p := cloneComparisonPredicate(*v.Predicate)
			out.Predicate = &p
		}
		c.roots[v] = out
		out.Contains = c.containment(v.Contains)
		return out
	case *ContainmentSet:
		out := &ContainmentSet{Operator: v.Operator, Values: make([]Containment, len(v.Values))}
		for i, val := range v.Values {
			out.Values[i] = c.containment(val)
		}
		return out
	case *ContainmentNot:
		return &ContainmentNot{Contains: c.containment(v.Contains)}
	default:
		return in
	}
}

func (c *cloner) root(r Root) Root {
	if r == nil {
		return nil
	}
	if n, ok := c.roots[r]; ok {
		return n
	}
	return r
}

func (c *cloner) identifiedPath(p *IdentifiedPath) *IdentifiedPath {
	if p == nil {
		return nil
	}
	return &IdentifiedPath{
		Root:          c.root(p.Root),
		RootPredicate: ClonePredicates(p.RootPredicate),
		Path:          p.Path.Clone(),
	}
}

func (c *cloner) columnExpr(e ColumnExpr) ColumnExpr {
	switch v := e.(type) {
	case *IdentifiedPath:
		return c.identifiedPath(v)
	case *AggregateFunction:
		return &AggregateFunction{Name: v.Name, Distinct: v.Distinct, Path: c.identifiedPath(v.Path)}
	case *Function:
		return c.function(v)
	default:
		return e
	}
}

func (c *cloner) function(f *Function) *Function {
	out := &Function{Name: f.Name, Args: make([]Operand, len(f.Args))}
	for i, a := range f.Args {
		out.Args[i] = c.operand(a)
	}
	return out
}

func (c *cloner) operand(o Operand) Operand {
	switch v := o.(type) {
	case *IdentifiedPath:
		return c.identifiedPath(v)
	case *Function:
		return c.function(v)
	case *Parameter:
		return &Parameter{Name: v.Name}
	default:
		return o
	}
}

func (c *cloner) condition(in Condition) Condition {
	switch v := in.(type) {
	case nil:
		return nil
	case *ComparisonCondition:
		return &ComparisonCondition{Left: c.operand(v.Left), Operator: v.Operator, Value: c.operand(v.Value)}
	case *MatchesCondition:
		out := &MatchesCondition{Path: c.identifiedPath(v.Path), Values: make([]Operand, len(v.Values))}
		for i, val := range v.Values {
			out.Values[i] = c.operand(val)
		}
		return out
	case *LikeCondition:
		return &LikeCondition{Path: c.identifiedPath(v.Path), Value: c.operand(v.Value)}
	case *ExistsCondition:
		return &ExistsCondition{Path: c.identifiedPath(v.Path)}
	case *NotCondition:
		return &NotCondition{Condition: c.condition(v.Condition)}
	case *LogicalCondition:
		out := &LogicalCondition{Operator: v.Operator, Values: make([]Condition, len(v.Values))}
		for i, val := range v.Values {
			out.Values[i] = c.condition(val)
		}
		return out
	default:
		return in
	}
}

// Clone returns a deep copy of the path.
func (p *ObjectPath) Clone() *ObjectPath {
	if p == nil {
		return nil
	}
	nodes := make([]PathNode, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = PathNode{Attribute: n.Attribute, Predicates: ClonePredicates(n.Predicates)}
	}
	return &ObjectPath{Nodes: nodes}
}

// ClonePredicates deep-copies an OR of AND predicates.
func ClonePredicates(ors []AndPredicate) []AndPredicate {
	if ors == nil {
		return nil
	}
	out := make([]AndPredicate, len(ors))
	for i, and := range ors {
		ops := make([]ComparisonPredicate, len(and.Operands))
		for j, cmp := range and.Operands {
			ops[j] = cloneComparisonPredicate(cmp)
		}
		out[i] = AndPredicate{Operands: ops}
	}
	return out
}

func cloneComparisonPredicate(cmp ComparisonPredicate) ComparisonPredicate {
	out := ComparisonPredicate{Path: cmp.Path.Clone(), Operator: cmp.Operator, Value: cmp.Value}
	if p, ok := cmp.Value.(*Parameter); ok {
		out.Value = &Parameter{Name: p.Name}
	}
	return out
}
