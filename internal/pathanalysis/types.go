package pathanalysis

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/rm"
)

// NodeCategory classifies the RM types a path node may take.
type NodeCategory string

const (
	// CategoryStructure is a type stored as its own row (LOCATABLEs and EVENT_CONTEXT).
	CategoryStructure NodeCategory = "STRUCTURE"
	// CategoryStructureIntermediate may contain structure rows but is none
	// itself, e.g. FEEDER_AUDIT_DETAILS or INSTRUCTION_DETAILS.
	CategoryStructureIntermediate NodeCategory = "STRUCTURE_INTERMEDIATE"
	// CategoryRMType is any other RM type, stored inside the JSON of a row.
	CategoryRMType NodeCategory = "RM_TYPE"
	// CategoryFoundation is a primitive.
	CategoryFoundation NodeCategory = "FOUNDATION"
	// CategoryFoundationExtended mixes RM types and primitives, as in
	// ELEMENT/value/value.
	CategoryFoundationExtended NodeCategory = "FOUNDATION_EXTENDED"
)

func (c NodeCategory) rank() int {
	switch c {
	case CategoryStructure:
		return 0
	case CategoryStructureIntermediate:
		return 1
	case CategoryRMType:
		return 2
	case CategoryFoundation:
		return 3
	default:
		return 4
	}
}

// IsData reports whether nodes of the category are read from JSON rather
// than joined as rows.
func (c NodeCategory) IsData() bool {
	return c != CategoryStructure && c != CategoryStructureIntermediate
}

// MergeCategories combines the categories of two paths sharing a node.
// Structure categories only merge with themselves.
func MergeCategories(a, b NodeCategory) (NodeCategory, error) {
	if a == b {
		return a, nil
	}
	lo, hi := a, b
	if hi.rank() < lo.rank() {
		lo, hi = hi, lo
	}
	switch lo {
	case CategoryStructure, CategoryStructureIntermediate:
		return "", fmt.Errorf("incompatible node types: %s, %s", a, b)
	case CategoryRMType, CategoryFoundation:
		return CategoryFoundationExtended, nil
	default:
		return "", fmt.Errorf("inconsistent node types: %s, %s", a, b)
	}
}

// typeSet is a set of RM type names. A nil set is unconstrained, an empty
// set cannot be satisfied.
type typeSet map[string]struct{}

func newTypeSet(names ...string) typeSet {
	s := make(typeSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s typeSet) has(n string) bool {
	_, ok := s[n]
	return ok
}

func (s typeSet) sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// retain keeps the members of other and reports whether s changed.
func (s typeSet) retain(other typeSet) bool {
	changed := false
	for n := range s {
		if !other.has(n) {
			delete(s, n)
			changed = true
		}
	}
	return changed
}

func (s typeSet) intersects(names []string) bool {
	for _, n := range names {
		if s.has(n) {
			return true
		}
	}
	return false
}

// Node is the type analysis of one attribute of a path. Children are
// created for path attributes and for attributes referenced in predicates.
type Node struct {
	candidates typeSet
	children   map[string]*Node
	order      []string
}

// CandidateTypes returns the sorted concrete types the node may take.
func (n *Node) CandidateTypes() []string {
	return n.candidates.sorted()
}

// Attribute returns the analysis of a child attribute.
func (n *Node) Attribute(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// Categories returns the distinct categories of the candidate types.
func (n *Node) Categories(m *rm.Model) []NodeCategory {
	seen := make(map[NodeCategory]bool)
	var out []NodeCategory
	for _, t := range n.CandidateTypes() {
		c := categoryOf(m, t)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b NodeCategory) int { return a.rank() - b.rank() })
	return out
}

// Category merges the categories of the candidate types.
func (n *Node) Category(m *rm.Model) (NodeCategory, error) {
	cats := n.Categories(m)
	if len(cats) == 0 {
		return "", fmt.Errorf("node without candidate types")
	}
	cat := cats[0]
	for _, c := range cats[1:] {
		var err error
		if cat, err = MergeCategories(cat, c); err != nil {
			return "", err
		}
	}
	return cat, nil
}

func categoryOf(m *rm.Model, typeName string) NodeCategory {
	if s, ok := rm.Structure(typeName); ok {
		if s.Entry {
			return CategoryStructure
		}
		return CategoryStructureIntermediate
	}
	if m.IsFoundation(typeName) {
		return CategoryFoundation
	}
	return CategoryRMType
}

// AttInfo describes an attribute as seen from the candidate types of its parent.
type AttInfo struct {
	Multiple    bool
	Nullable    bool
	TargetTypes []string
}

type analyzer struct {
	model *rm.Model
}

func (a *analyzer) newNode(rmTypes []string, parentPredicates, predicates []aql.AndPredicate) *Node {
	n := &Node{children: make(map[string]*Node)}
	if rmTypes != nil {
		n.candidates = typeSet{}
		for _, t := range rmTypes {
			for _, c := range a.model.ConcreteTypes(t) {
				n.candidates[c] = struct{}{}
			}
		}
	}
	n.candidates = a.constrainByArchetype(n.candidates, parentPredicates)
	n.candidates = a.constrainByArchetype(n.candidates, predicates)
	a.addPredicateConstraints(n, parentPredicates)
	a.addPredicateConstraints(n, predicates)
	return n
}

// AnalyzeTypes determines for each node of path, and of the attributes
// used in its predicates, the set of possible RM or foundation types.
//
// The returned root has no candidate types when the path cannot exist.
// Attributes unknown to the model are an error.
func AnalyzeTypes(m *rm.Model, rootType string, pathRootPredicates, containmentPredicates []aql.AndPredicate, path *aql.ObjectPath) (*Node, error) {
	a := &analyzer{model: m}
	root := a.newNode([]string{rootType}, pathRootPredicates, containmentPredicates)
	a.appendPath(root, path, nil)

	var unknown error
	walkNodes(root, func(n *Node) {
		for _, att := range n.order {
			if unknown == nil && !m.HasAttribute(att) {
				unknown = fmt.Errorf("unknown attribute: %s", att)
			}
		}
	})
	if unknown != nil {
		return nil, unknown
	}

	for a.applyChildConstraints(root) {
	}
	return root, nil
}

// AttributeInfos returns, per node, the attribute information of its
// children. Attributes no candidate parent type can hold are left out.
func AttributeInfos(m *rm.Model, root *Node) map[*Node]map[string]AttInfo {
	out := make(map[*Node]map[string]AttInfo)
	walkNodes(root, func(n *Node) {
		infos := make(map[string]AttInfo)
		for _, att := range n.order {
			if info, ok := attributeInfo(m, n, att, n.children[att]); ok {
				infos[att] = info
			}
		}
		if len(infos) > 0 {
			out[n] = infos
		}
	})
	return out
}

func attributeInfo(m *rm.Model, parent *Node, att string, child *Node) (AttInfo, bool) {
	byParent, ok := m.TypedAttribute(att)
	if !ok {
		return AttInfo{}, false
	}
	var (
		found   bool
		info    AttInfo
		targets = typeSet{}
	)
	for _, p := range parent.CandidateTypes() {
		ts, ok := byParent[p]
		if !ok {
			continue
		}
		if child.candidates != nil && !child.candidates.intersects(ts) {
			continue
		}
		attr, _ := m.Attribute(p, att)
		found = true
		info.Multiple = info.Multiple || attr.Multiple
		info.Nullable = info.Nullable || attr.Nullable
		for _, t := range ts {
			targets[t] = struct{}{}
		}
	}
	info.TargetTypes = targets.sorted()
	return info, found
}

func walkNodes(root *Node, fn func(*Node)) {
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		fn(n)
		for _, att := range n.order {
			queue = append(queue, n.children[att])
		}
	}
}

func (a *analyzer) applyChildConstraints(n *Node) bool {
	if len(n.order) == 0 || (n.candidates != nil && len(n.candidates) == 0) {
		return false
	}
	changed := false
	for _, att := range n.order {
		child := n.children[att]
		if a.applyAttributeConstraints(n, att, child) {
			changed = true
		}
		if a.applyChildConstraints(child) {
			changed = true
		}
	}
	return changed
}

func (a *analyzer) applyAttributeConstraints(parent *Node, att string, child *Node) bool {
	byParent, ok := a.model.TypedAttribute(att)
	if !ok {
		parent.candidates = typeSet{}
		child.candidates = typeSet{}
		return true
	}

	if parent.candidates == nil {
		all := typeSet{}
		for _, ts := range byParent {
			for _, t := range ts {
				all[t] = struct{}{}
			}
		}
		if child.candidates == nil {
			parent.candidates = newTypeSet(slices.Collect(maps.Keys(byParent))...)
			child.candidates = all
		} else {
			child.candidates.retain(all)
			parent.candidates = typeSet{}
			for p, ts := range byParent {
				if child.candidates.intersects(ts) {
					parent.candidates[p] = struct{}{}
				}
			}
		}
		return true
	}

	changed := false
	for t := range parent.candidates {
		supported := byParent[t]
		if len(supported) == 0 || (child.candidates != nil && !child.candidates.intersects(supported)) {
			delete(parent.candidates, t)
			changed = true
		}
	}
	childConstraints := typeSet{}
	for p := range parent.candidates {
		for _, t := range byParent[p] {
			childConstraints[t] = struct{}{}
		}
	}
	if child.candidates == nil {
		child.candidates = childConstraints
		return true
	}
	if child.candidates.retain(childConstraints) {
		changed = true
	}
	return changed
}

func (a *analyzer) appendPath(root *Node, path *aql.ObjectPath, candidates typeSet) {
	if path == nil {
		return
	}
	n := root
	for _, pn := range path.Nodes {
		n = a.addAttribute(n, pn)
	}
	if candidates == nil {
		return
	}
	if n.candidates == nil {
		n.candidates = maps.Clone(candidates)
	} else {
		n.candidates.retain(candidates)
	}
}

func (a *analyzer) addAttribute(parent *Node, pn aql.PathNode) *Node {
	child, ok := parent.children[pn.Attribute]
	if !ok {
		child = a.newNode(nil, nil, pn.Predicates)
		parent.children[pn.Attribute] = child
		parent.order = append(parent.order, pn.Attribute)
		return child
	}
	// colliding children are merged
	child.candidates = a.constrainByArchetype(child.candidates, pn.Predicates)
	a.addPredicateConstraints(child, pn.Predicates)
	return child
}

// addPredicateConstraints adds the attributes compared in a single AND
// predicate as children constrained to the type of the compared value.
func (a *analyzer) addPredicateConstraints(n *Node, ors []aql.AndPredicate) {
	if len(ors) != 1 {
		return
	}
	for _, cmp := range ors[0].Operands {
		if cmp.Operator == aql.PredNEQ {
			continue
		}
		a.appendPath(n, cmp.Path, valueCandidates(cmp.Value))
	}
}

// constrainByArchetype limits candidates to the RM types named by
// archetype ids in the predicates. With several OR branches the union of
// the branch constraints applies.
func (a *analyzer) constrainByArchetype(candidates typeSet, ors []aql.AndPredicate) typeSet {
	if len(ors) == 0 || (candidates != nil && len(candidates) == 0) {
		return candidates
	}
	if len(ors) == 1 {
		return a.constrainByAnd(candidates, ors[0])
	}

	var union typeSet
	for _, and := range ors {
		branch := a.constrainByAnd(maps.Clone(candidates), and)
		if branch == nil {
			// an unconstrained branch lifts the constraint
			return candidates
		}
		if union == nil {
			union = typeSet{}
		}
		for t := range branch {
			union[t] = struct{}{}
		}
	}
	if candidates == nil {
		return union
	}
	candidates.retain(union)
	return candidates
}

func (a *analyzer) constrainByAnd(candidates typeSet, and aql.AndPredicate) typeSet {
	for _, cmp := range and.Operands {
		if candidates != nil && len(candidates) == 0 {
			break
		}
		if cmp.Operator != aql.PredEQ || !cmp.Path.Equal(aql.ArchetypeNodeIDPath) {
			continue
		}
		s, ok := cmp.Value.(aql.String)
		if !ok {
			continue
		}
		rmType, ok := rmTypeFromArchetype(string(s))
		if !ok {
			continue
		}
		allowed := newTypeSet(a.model.ConcreteTypes(rmType)...)
		if candidates == nil {
			candidates = allowed
		} else {
			candidates.retain(allowed)
		}
	}
	return candidates
}

func rmTypeFromArchetype(nodeID string) (string, bool) {
	if !strings.HasPrefix(nodeID, "openEHR-EHR-") {
		return "", false
	}
	id, err := aql.ParseArchetypeID(nodeID)
	if err != nil {
		return "", false
	}
	return id.RMEntity, true
}

// valueCandidates returns the foundation types a predicate value is
// compatible with, nil when unknown.
func valueCandidates(v aql.Operand) typeSet {
	switch v.(type) {
	case aql.Long, aql.Double:
		return newTypeSet("DOUBLE", "INTEGER", "LONG")
	case aql.Boolean:
		return newTypeSet("BOOLEAN")
	case aql.Temporal:
		return newTypeSet("STRING", "TEMPORAL", "TEMPORAL_ACCESSOR", "TEMPORAL_AMOUNT")
	case aql.String:
		return newTypeSet("STRING", "CHAR", "URI")
	default:
		return nil
	}
}
