package aql

// Query is a parsed AQL query.
//
// A Query is treated as immutable once it leaves the parser: every pre-pass
// works on a Clone and returns the rewritten copy.
type Query struct {
	Select  Select
	From    Containment
	Where   Condition // nil if absent
	OrderBy []OrderBy
	Limit   *int64
	Offset  *int64
}

// Select is the SELECT clause.
type Select struct {
	Distinct bool
	Items    []SelectItem
}

// SelectItem is one column of the SELECT clause.
type SelectItem struct {
	Expr  ColumnExpr
	Alias string // optional AS name
}

// ColumnExpr is a SELECT column expression.
//
// This is a sealed interface - only types in this package implement it.
//
// ColumnExpr types:
//   - *IdentifiedPath
//   - *AggregateFunction
//   - *Function
//   - any Primitive
type ColumnExpr interface {
	columnExpr() // Marker method - seals interface to this package
}

// Operand is a value position in a condition, a predicate, a MATCHES list
// or a function argument.
//
// Operand types:
//   - any Primitive
//   - *Parameter
//   - *IdentifiedPath
//   - *Function
type Operand interface {
	operand() // Marker method - seals interface to this package
}

// Containment is a node of the FROM clause.
//
// Containment types:
//   - *ContainmentClass: TYPE alias[predicates] [CONTAINS ...]
//   - *ContainmentVersion: VERSION alias[predicate] [CONTAINS ...]
//   - *ContainmentSet: AND/OR over containments
//   - *ContainmentNot: NOT CONTAINS
type Containment interface {
	containment() // Marker method - seals interface to this package
}

// Root is a containment that can be referenced by an identified path.
// Identified paths compare roots by pointer identity.
type Root interface {
	Containment
	RootIdentifier() string
	RootPredicates() []AndPredicate
	// RootType is the RM type of the containment, ORIGINAL_VERSION for VERSION.
	RootType() string
	Child() Containment
}

// Condition is a node of the WHERE clause.
//
// Condition types:
//   - *ComparisonCondition
//   - *MatchesCondition
//   - *LikeCondition
//   - *ExistsCondition
//   - *NotCondition
//   - *LogicalCondition
type Condition interface {
	condition() // Marker method - seals interface to this package
}

// ContainmentClass is a class expression like COMPOSITION c[openEHR-EHR-COMPOSITION.x.v1].
type ContainmentClass struct {
	Type       string
	Identifier string
	Predicates []AndPredicate // OR of AND predicates
	Contains   Containment
}

func (*ContainmentClass) containment() {}

func (c *ContainmentClass) RootIdentifier() string         { return c.Identifier }
func (c *ContainmentClass) RootPredicates() []AndPredicate { return c.Predicates }
func (c *ContainmentClass) RootType() string               { return c.Type }
func (c *ContainmentClass) Child() Containment             { return c.Contains }

// VersionPredicateKind selects the version filter of a VERSION containment.
type VersionPredicateKind int

const (
	// VersionNone has no predicate.
	VersionNone VersionPredicateKind = iota
	// VersionLatest is [LATEST_VERSION].
	VersionLatest
	// VersionAll is [ALL_VERSIONS].
	VersionAll
	// VersionStandard is a comparison like [commit_audit/time_committed>'...'].
	VersionStandard
)

// ContainmentVersion is VERSION v[...] CONTAINS ...
type ContainmentVersion struct {
	Identifier    string
	PredicateKind VersionPredicateKind
	Predicate     *ComparisonPredicate // set for VersionStandard
	Contains      Containment
}

func (*ContainmentVersion) containment() {}

func (c *ContainmentVersion) RootIdentifier() string { return c.Identifier }

func (c *ContainmentVersion) RootPredicates() []AndPredicate {
	if c.Predicate == nil {
		return nil
	}
	return []AndPredicate{{Operands: []ComparisonPredicate{*c.Predicate}}}
}

func (c *ContainmentVersion) RootType() string   { return "ORIGINAL_VERSION" }
func (c *ContainmentVersion) Child() Containment { return c.Contains }

// SetOperator joins containments.
type SetOperator string

const (
	SetAnd SetOperator = "AND"
	SetOr  SetOperator = "OR"
)

// ContainmentSet is a parenthesized AND/OR group of containments.
type ContainmentSet struct {
	Operator SetOperator
	Values   []Containment
}

func (*ContainmentSet) containment() {}

// ContainmentNot is NOT CONTAINS.
type ContainmentNot struct {
	Contains Containment
}

func (*ContainmentNot) containment() {}

// IdentifiedPath is alias[rootPredicate]/path.
type IdentifiedPath struct {
	Root          Root
	RootPredicate []AndPredicate
	Path          *ObjectPath // nil selects the whole object
}

func (*IdentifiedPath) columnExpr() {}
func (*IdentifiedPath) operand()    {}

// ObjectPath is a slash-separated list of attribute nodes.
type ObjectPath struct {
	Nodes []PathNode
}

// PathNode is one attribute of an ObjectPath with its optional predicates.
type PathNode struct {
	Attribute  string
	Predicates []AndPredicate // OR of AND predicates
}

// AndPredicate is a conjunction of comparison predicates.
type AndPredicate struct {
	Operands []ComparisonPredicate
}

// PredicateOperator compares inside path predicates.
type PredicateOperator string

const (
	PredEQ  PredicateOperator = "="
	PredNEQ PredicateOperator = "!="
	PredGT  PredicateOperator = ">"
	PredGE  PredicateOperator = ">="
	PredLT  PredicateOperator = "<"
	PredLE  PredicateOperator = "<="
)

// ComparisonPredicate is path op value inside a predicate.
type ComparisonPredicate struct {
	Path     *ObjectPath
	Operator PredicateOperator
	Value    Operand // Primitive or *Parameter
}

// ComparisonOperator compares in WHERE conditions.
type ComparisonOperator string

const (
	OpEQ  ComparisonOperator = "="
	OpNEQ ComparisonOperator = "!="
	OpGT  ComparisonOperator = ">"
	OpGE  ComparisonOperator = ">="
	OpLT  ComparisonOperator = "<"
	OpLE  ComparisonOperator = "<="
)

// Negate returns the operator matching NOT (a op b).
func (o ComparisonOperator) Negate() ComparisonOperator {
	switch o {
	case OpEQ:
		return OpNEQ
	case OpNEQ:
		return OpEQ
	case OpGT:
		return OpLE
	case OpGE:
		return OpLT
	case OpLT:
		return OpGE
	default:
		return OpGT
	}
}

// ComparisonCondition is left op value.
type ComparisonCondition struct {
	Left     Operand // *IdentifiedPath or *Function
	Operator ComparisonOperator
	Value    Operand
}

func (*ComparisonCondition) condition() {}

// MatchesCondition is path MATCHES {v1, v2}.
type MatchesCondition struct {
	Path   *IdentifiedPath
	Values []Operand // Primitive or *Parameter
}

func (*MatchesCondition) condition() {}

// LikeCondition is path LIKE 'pattern'.
type LikeCondition struct {
	Path  *IdentifiedPath
	Value Operand // String or *Parameter
}

func (*LikeCondition) condition() {}

// ExistsCondition is EXISTS path.
type ExistsCondition struct {
	Path *IdentifiedPath
}

func (*ExistsCondition) condition() {}

// NotCondition is NOT condition.
type NotCondition struct {
	Condition Condition
}

func (*NotCondition) condition() {}

// LogicalOperator joins conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// LogicalCondition is an AND/OR over two or more conditions.
type LogicalCondition struct {
	Operator LogicalOperator
	Values   []Condition
}

func (*LogicalCondition) condition() {}

// AggregateName names an aggregate function.
type AggregateName string

const (
	AggCount AggregateName = "COUNT"
	AggMin   AggregateName = "MIN"
	AggMax   AggregateName = "MAX"
	AggSum   AggregateName = "SUM"
	AggAvg   AggregateName = "AVG"
)

// AggregateFunction is COUNT/MIN/MAX/SUM/AVG over an identified path.
type AggregateFunction struct {
	Name     AggregateName
	Distinct bool
	Path     *IdentifiedPath // nil for COUNT(*)
}

func (*AggregateFunction) columnExpr() {}

// Function is a single-row function call like LENGTH(x).
type Function struct {
	Name string
	Args []Operand
}

func (*Function) columnExpr() {}
func (*Function) operand()    {}

// Parameter is a $name placeholder.
type Parameter struct {
	Name string
}

func (*Parameter) operand() {}

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderBy is one ORDER BY expression.
type OrderBy struct {
	Path      *IdentifiedPath
	Direction Direction
}

// Well-known single attribute paths.
var (
	ArchetypeNodeIDPath = &ObjectPath{Nodes: []PathNode{{Attribute: "archetype_node_id"}}}
	NameValuePath       = &ObjectPath{Nodes: []PathNode{{Attribute: "name"}, {Attribute: "value"}}}
)

// Attributes returns the attribute names of the path.
func (p *ObjectPath) Attributes() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		out[i] = n.Attribute
	}
	return out
}

// Len returns the number of nodes; a nil path has length 0.
func (p *ObjectPath) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Nodes)
}

// Sub returns the nodes [from, to) as a new path, nil if empty.
func (p *ObjectPath) Sub(from, to int) *ObjectPath {
	if p == nil || from >= to {
		return nil
	}
	nodes := make([]PathNode, to-from)
	copy(nodes, p.Nodes[from:to])
	return &ObjectPath{Nodes: nodes}
}

// Equal compares two paths including their predicates.
func (p *ObjectPath) Equal(o *ObjectPath) bool {
	if p.Len() == 0 || o.Len() == 0 {
		return p.Len() == o.Len()
	}
	return p.String() == o.String()
}

// EqualAttributes compares the attribute names only.
func (p *ObjectPath) EqualAttributes(attrs ...string) bool {
	if p.Len() != len(attrs) {
		return false
	}
	for i, a := range attrs {
		if p.Nodes[i].Attribute != a {
			return false
		}
	}
	return true
}

// HasPredicates reports whether any node carries predicates.
func (p *ObjectPath) HasPredicates() bool {
	if p == nil {
		return false
	}
	for _, n := range p.Nodes {
		if len(n.Predicates) > 0 {
			return true
		}
	}
	return false
}

// WithoutPredicates returns a copy of the path with all node predicates removed.
func (p *ObjectPath) WithoutPredicates() *ObjectPath {
	if p == nil {
		return nil
	}
	nodes := make([]PathNode, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = PathNode{Attribute: n.Attribute}
	}
	return &ObjectPath{Nodes: nodes}
}

// NewPath builds a predicate-free path from attribute names.
func NewPath(attrs ...string) *ObjectPath {
	if len(attrs) == 0 {
		return nil
	}
	nodes := make([]PathNode, len(attrs))
	for i, a := range attrs {
		nodes[i] = PathNode{Attribute: a}
	}
	return &ObjectPath{Nodes: nodes}
}
