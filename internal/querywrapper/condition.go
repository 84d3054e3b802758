package querywrapper

import (
	"github.com/roach88/aqlc/internal/aql"
)

// Operator is a comparison operator of a normalized condition.
type Operator string

const (
	OpEQ      Operator = "="
	OpNEQ     Operator = "!="
	OpGT      Operator = ">"
	OpGE      Operator = ">="
	OpLT      Operator = "<"
	OpLE      Operator = "<="
	OpMatches Operator = "MATCHES"
	OpLike    Operator = "LIKE"
	OpExists  Operator = "EXISTS"
)

// LogicalOperator joins normalized conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
	// LogicalNot has exactly one operand, a LIKE or EXISTS comparison.
	LogicalNot LogicalOperator = "NOT"
)

// Condition is a node of the normalized WHERE tree.
//
// This is a sealed interface - only types in this package implement it.
//
// Condition types:
//   - *ComparisonCondition
//   - *LogicalCondition
type Condition interface {
	conditionWrapper() // Marker method - seals interface to this package
}

// ComparisonCondition compares a path with constant values. EXISTS has no
// values, MATCHES any number, the other operators exactly one.
type ComparisonCondition struct {
	Path     *aql.IdentifiedPath
	Root     *ContainsWrapper
	Operator Operator
	Values   []aql.Primitive
}

func (*ComparisonCondition) conditionWrapper() {}

// LogicalCondition is AND, OR or NOT over normalized conditions.
type LogicalCondition struct {
	Operator LogicalOperator
	Values   []Condition
}

func (*LogicalCondition) conditionWrapper() {}

type conditionBuilder struct {
	roots map[aql.Root]*ContainsWrapper
}

// build normalizes c; negate is set below an odd number of NOTs.
func (b *conditionBuilder) build(c aql.Condition, negate bool) (Condition, error) {
	switch v := c.(type) {
	case *aql.ComparisonCondition:
		ip, ok := v.Left.(*aql.IdentifiedPath)
		if !ok {
			return nil, aql.NewInternalError("Unsupported left operand %T", v.Left)
		}
		op := v.Operator
		if negate {
			op = op.Negate()
		}
		return b.comparison(ip, Operator(op), v.Value)
	case *aql.MatchesCondition:
		if !negate {
			return b.comparison(v.Path, OpMatches, v.Values...)
		}
		and := &LogicalCondition{Operator: LogicalAnd}
		for _, val := range v.Values {
			cmp, err := b.comparison(v.Path, OpNEQ, val)
			if err != nil {
				return nil, err
			}
			and.Values = append(and.Values, cmp)
		}
		return and, nil
	case *aql.LikeCondition:
		cmp, err := b.comparison(v.Path, OpLike, v.Value)
		if err != nil {
			return nil, err
		}
		return not(cmp, negate), nil
	case *aql.ExistsCondition:
		cmp, err := b.comparison(v.Path, OpExists)
		if err != nil {
			return nil, err
		}
		return not(cmp, negate), nil
	case *aql.NotCondition:
		return b.build(v.Condition, !negate)
	case *aql.LogicalCondition:
		op := LogicalOperator(v.Operator)
		if negate {
			if op == LogicalAnd {
				op = LogicalOr
			} else {
				op = LogicalAnd
			}
		}
		out := &LogicalCondition{Operator: op}
		for _, val := range v.Values {
			w, err := b.build(val, negate)
			if err != nil {
				return nil, err
			}
			out.Values = append(out.Values, w)
		}
		return out, nil
	default:
		return nil, aql.NewInternalError("Unsupported condition %T", c)
	}
}

func not(c Condition, negate bool) Condition {
	if !negate {
		return c
	}
	return &LogicalCondition{Operator: LogicalNot, Values: []Condition{c}}
}

func (b *conditionBuilder) comparison(path *aql.IdentifiedPath, op Operator, values ...aql.Operand) (*ComparisonCondition, error) {
	root, err := rootOf(path, b.roots)
	if err != nil {
		return nil, err
	}
	cmp := &ComparisonCondition{Path: path, Root: root, Operator: op, Values: make([]aql.Primitive, 0, len(values))}
	for _, v := range values {
		p, ok := v.(aql.Primitive)
		if !ok {
			return nil, aql.NewInternalError("Unsupported operand %s in WHERE", aql.RenderOperand(v))
		}
		cmp.Values = append(cmp.Values, p)
	}
	return cmp, nil
}
