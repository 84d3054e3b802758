package querywrapper

import (
	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/schema"
)

// ContainsKind tells class and VERSION containments apart.
type ContainsKind string

const (
	ContainsRM      ContainsKind = "RM"
	ContainsVersion ContainsKind = "VERSION"
)

// ContainsWrapper is one class or VERSION containment of the FROM clause.
//
// A VERSION wrapper stands for itself and for the class containment it
// wraps; both share one position in the chain.
type ContainsWrapper struct {
	Kind ContainsKind
	// Class is the containment of an RM wrapper and the wrapped class of a
	// VERSION wrapper.
	Class   *aql.ContainmentClass
	Version *aql.ContainmentVersion
	// Child is the wrapped class of a VERSION wrapper.
	Child  *ContainsWrapper
	Parent *ContainsWrapper
}

// Alias returns the identifier of the containment.
func (w *ContainsWrapper) Alias() string {
	if w.Kind == ContainsVersion {
		return w.Version.Identifier
	}
	return w.Class.Identifier
}

// Type returns the RM type, ORIGINAL_VERSION for VERSION wrappers.
func (w *ContainsWrapper) Type() string {
	if w.Kind == ContainsVersion {
		return schema.TypeOriginalVersion
	}
	return w.Class.Type
}

// Root returns the containment identified paths refer to.
func (w *ContainsWrapper) Root() aql.Root {
	if w.Kind == ContainsVersion {
		return w.Version
	}
	return w.Class
}

// Predicates returns the containment predicates of the class.
func (w *ContainsWrapper) Predicates() []aql.AndPredicate {
	if w.Class == nil {
		return nil
	}
	return w.Class.Predicates
}

// RMWrapper returns the class wrapper, the wrapped child for VERSION.
func (w *ContainsWrapper) RMWrapper() *ContainsWrapper {
	if w.Kind == ContainsVersion {
		return w.Child
	}
	return w
}

// ContainsChain is a linear CONTAINS chain with an optional trailing set
// operation, e.g. EHR e CONTAINS COMPOSITION c CONTAINS (A a AND B b).
type ContainsChain struct {
	Chain        []*ContainsWrapper
	SetOperation *SetOperationWrapper
}

// Empty reports whether the chain holds neither containments nor a set.
func (c *ContainsChain) Empty() bool {
	return len(c.Chain) == 0 && c.SetOperation == nil
}

// Last returns the last chain element or nil.
func (c *ContainsChain) Last() *ContainsWrapper {
	if len(c.Chain) == 0 {
		return nil
	}
	return c.Chain[len(c.Chain)-1]
}

// SetOperationWrapper is an AND/OR of chains sharing a parent.
type SetOperationWrapper struct {
	Operator aql.SetOperator
	Operands []*ContainsChain
}

// chainBuilder turns the containment tree into chains and records the
// wrapper of every root.
type chainBuilder struct {
	byRoot map[aql.Root]*ContainsWrapper
}

func (b *chainBuilder) build(c aql.Containment, parent *ContainsWrapper) (*ContainsChain, error) {
	chain := &ContainsChain{}
	next := c
	for next != nil {
		switch v := next.(type) {
		case *aql.ContainmentClass:
			w := &ContainsWrapper{Kind: ContainsRM, Class: v, Parent: parent}
			b.byRoot[v] = w
			chain.Chain = append(chain.Chain, w)
			parent, next = w, v.Contains
		case *aql.ContainmentVersion:
			class, ok := v.Contains.(*aql.ContainmentClass)
			if !ok {
				return nil, aql.NewInternalError("VERSION %s must contain a class expression", v.Identifier)
			}
			w := &ContainsWrapper{Kind: ContainsVersion, Version: v, Class: class, Parent: parent}
			w.Child = &ContainsWrapper{Kind: ContainsRM, Class: class, Parent: parent}
			b.byRoot[v] = w
			b.byRoot[class] = w.Child
			chain.Chain = append(chain.Chain, w)
			parent, next = w, class.Contains
		case *aql.ContainmentSet:
			set := &SetOperationWrapper{Operator: v.Operator}
			for _, val := range v.Values {
				operand, err := b.build(val, parent)
				if err != nil {
					return nil, err
				}
				set.Operands = append(set.Operands, operand)
			}
			chain.SetOperation = set
			next = nil
		default:
			return nil, aql.NewInternalError("Unsupported containment %T", next)
		}
	}
	return chain, nil
}
