package aql

// Roots returns the class and VERSION containments of the tree in
// depth-first order.
func Roots(c Containment) []Root {
	var out []Root
	var walk func(Containment)
	walk = func(c Containment) {
		switch v := c.(type) {
		case *ContainmentClass:
			out = append(out, v)
			walk(v.Contains)
		case *ContainmentVersion:
			out = append(out, v)
			walk(v.Contains)
		case *ContainmentSet:
			for _, val := range v.Values {
				walk(val)
			}
		case *ContainmentNot:
			walk(v.Contains)
		}
	}
	walk(c)
	return out
}

// RootByIdentifier returns the containment with the given alias.
func (q *Query) RootByIdentifier(alias string) (Root, bool) {
	for _, r := range Roots(q.From) {
		if r.RootIdentifier() == alias {
			return r, true
		}
	}
	return nil, false
}

// ClauseKind names the clause an identified path appears in.
type ClauseKind string

const (
	ClauseSelect  ClauseKind = "SELECT"
	ClauseWhere   ClauseKind = "WHERE"
	ClauseOrderBy ClauseKind = "ORDER BY"
)

// PathUse is an identified path together with its clause.
type PathUse struct {
	Path   *IdentifiedPath
	Clause ClauseKind
}

// IdentifiedPaths returns every identified path of SELECT, WHERE and
// ORDER BY in query order.
func (q *Query) IdentifiedPaths() []PathUse {
	var out []PathUse
	add := func(clause ClauseKind) func(*IdentifiedPath) {
		return func(p *IdentifiedPath) { out = append(out, PathUse{Path: p, Clause: clause}) }
	}
	sel := add(ClauseSelect)
	for _, item := range q.Select.Items {
		switch v := item.Expr.(type) {
		case *IdentifiedPath:
			sel(v)
		case *AggregateFunction:
			if v.Path != nil {
				sel(v.Path)
			}
		case *Function:
			operandPaths(v, sel)
		}
	}
	where := add(ClauseWhere)
	WalkConditions(q.Where, func(c Condition) {
		switch v := c.(type) {
		case *ComparisonCondition:
			operandPaths(v.Left, where)
			operandPaths(v.Value, where)
		case *MatchesCondition:
			where(v.Path)
		case *LikeCondition:
			where(v.Path)
		case *ExistsCondition:
			where(v.Path)
		}
	})
	ord := add(ClauseOrderBy)
	for _, ob := range q.OrderBy {
		ord(ob.Path)
	}
	return out
}

func operandPaths(o Operand, fn func(*IdentifiedPath)) {
	switch v := o.(type) {
	case *IdentifiedPath:
		fn(v)
	case *Function:
		for _, a := range v.Args {
			operandPaths(a, fn)
		}
	}
}

// WalkConditions calls fn for every leaf condition (comparison, MATCHES,
// LIKE, EXISTS) below c.
func WalkConditions(c Condition, fn func(Condition)) {
	switch v := c.(type) {
	case nil:
	case *NotCondition:
		WalkConditions(v.Condition, fn)
	case *LogicalCondition:
		for _, val := range v.Values {
			WalkConditions(val, fn)
		}
	default:
		fn(c)
	}
}
