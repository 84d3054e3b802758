package pathanalysis

import (
	"cmp"
	"slices"
	"strings"

	"github.com/roach88/aqlc/internal/aql"
)

// CohesionNode is one node of a path cohesion tree.
//
// Paths sharing a node address the same object in the data, so their
// values must come from one row. Sibling nodes under the same attribute are
// told apart by identifying predicates (archetype_node_id, name/value).
type CohesionNode struct {
	// Attribute is the path node this tree node stands for. For the root it
	// is the containment type with the containment predicates.
	Attribute aql.PathNode
	// Paths are all paths passing through or ending at the node.
	Paths []*aql.IdentifiedPath
	// EndingHere are the paths ending at the node.
	EndingHere []*aql.IdentifiedPath
	Children   []*CohesionNode
	Parent     *CohesionNode
	Root       bool
}

func (n *CohesionNode) addChild(attribute aql.PathNode, paths []*aql.IdentifiedPath) *CohesionNode {
	n.EndingHere = slices.DeleteFunc(n.EndingHere, func(p *aql.IdentifiedPath) bool {
		return slices.Contains(paths, p)
	})
	child := &CohesionNode{
		Attribute:  attribute,
		Paths:      paths,
		EndingHere: slices.Clone(paths),
		Parent:     n,
	}
	n.Children = append(n.Children, child)
	return child
}

// Level is the depth of the node, -1 for the root.
func (n *CohesionNode) Level() int {
	l := -1
	for p := n.Parent; p != nil; p = p.Parent {
		l++
	}
	return l
}

// PathFromRoot returns the attribute nodes from the root down to n.
func (n *CohesionNode) PathFromRoot() []aql.PathNode {
	var out []aql.PathNode
	for c := n; c != nil && !c.Root; c = c.Parent {
		out = append(out, c.Attribute)
	}
	slices.Reverse(out)
	return out
}

// PathKey identifies a path by its rendering, root predicates included.
func PathKey(ip *aql.IdentifiedPath) string {
	return ip.String()
}

// AnalyzeCohesion builds a cohesion tree for every containment referenced
// by an identified path of the query.
func AnalyzeCohesion(q *aql.Query) map[aql.Root]*CohesionNode {
	byRoot := make(map[aql.Root][]*aql.IdentifiedPath)
	var order []aql.Root
	seen := make(map[string]bool)
	for _, use := range q.IdentifiedPaths() {
		key := PathKey(use.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		r := use.Path.Root
		if _, ok := byRoot[r]; !ok {
			order = append(order, r)
		}
		byRoot[r] = append(byRoot[r], use.Path)
	}

	out := make(map[aql.Root]*CohesionNode, len(order))
	for _, r := range order {
		root := &CohesionNode{
			Attribute:  aql.PathNode{Attribute: rootTypeName(r), Predicates: r.RootPredicates()},
			Paths:      byRoot[r],
			EndingHere: slices.Clone(byRoot[r]),
			Root:       true,
		}
		fillTree(root, 0)
		out[r] = root
	}
	return out
}

func rootTypeName(r aql.Root) string {
	if _, ok := r.(*aql.ContainmentVersion); ok {
		return "VERSION"
	}
	return r.RootType()
}

func fillTree(n *CohesionNode, level int) {
	var attrs []string
	byAttr := make(map[string][]*aql.IdentifiedPath)
	for _, p := range n.Paths {
		if p.Path.Len() <= level {
			continue
		}
		att := p.Path.Nodes[level].Attribute
		if _, ok := byAttr[att]; !ok {
			attrs = append(attrs, att)
		}
		byAttr[att] = append(byAttr[att], p)
	}

	for _, att := range attrs {
		paths := byAttr[att]
		kind := attributeKindOf(paths[0].Path.Nodes[level].Predicates)
		for _, p := range paths[1:] {
			kind = kind.merge(attributeKindOf(p.Path.Nodes[level].Predicates))
		}

		if kind == kindBase {
			n.addChild(aql.PathNode{Attribute: att}, paths)
			continue
		}

		var keys []string
		groups := make(map[string][]*aql.IdentifiedPath)
		cleaned := make(map[string][]aql.AndPredicate)
		for _, p := range paths {
			preds := kind.cleanup(p.Path.Nodes[level].Predicates)
			key := renderPredicates(preds)
			if _, ok := groups[key]; !ok {
				keys = append(keys, key)
				cleaned[key] = preds
			}
			groups[key] = append(groups[key], p)
		}
		for _, k := range keys {
			n.addChild(aql.PathNode{Attribute: att, Predicates: cleaned[k]}, groups[k])
		}
	}

	for _, c := range n.Children {
		fillTree(c, level+1)
	}
}

func renderPredicates(ors []aql.AndPredicate) string {
	p := &aql.ObjectPath{Nodes: []aql.PathNode{{Attribute: "_", Predicates: ors}}}
	return p.String()
}

// attributeKind is the resolution at which predicates identify a
// sub-attribute.
type attributeKind int

const (
	// kindBase: no identifying predicate, all predicates only filter.
	kindBase attributeKind = iota
	// kindArchetype: archetype id, name/value only filters.
	kindArchetype
	// kindNode: node id, or archetype id together with name/value.
	kindNode
	// kindName: name/value only.
	kindName
)

func (k attributeKind) merge(o attributeKind) attributeKind {
	if k == o {
		return k
	}
	switch k {
	case kindBase:
		return k
	case kindArchetype:
		if o == kindNode {
			return k
		}
		return kindBase
	case kindNode:
		if o == kindName {
			return kindBase
		}
		return o
	default:
		return kindBase
	}
}

func attributeKindOf(ors []aql.AndPredicate) attributeKind {
	if len(ors) == 0 {
		return kindBase
	}
	k := andKind(ors[0])
	for _, and := range ors[1:] {
		k = k.merge(andKind(and))
	}
	return k
}

func andKind(and aql.AndPredicate) attributeKind {
	found := false
	var k attributeKind
	for _, op := range and.Operands {
		ck, ok := comparisonKind(op)
		if !ok {
			continue
		}
		switch {
		case !found:
			k = ck
			found = true
		case k != ck:
			k = kindNode
		}
	}
	if !found {
		return kindBase
	}
	return k
}

func comparisonKind(op aql.ComparisonPredicate) (attributeKind, bool) {
	if op.Operator != aql.PredEQ {
		return 0, false
	}
	switch {
	case op.Path.Equal(aql.NameValuePath):
		return kindName, true
	case op.Path.Equal(aql.ArchetypeNodeIDPath):
		s, ok := op.Value.(aql.String)
		if !ok {
			return 0, false
		}
		if strings.HasPrefix(string(s), "openEHR-") {
			return kindArchetype, true
		}
		return kindNode, true
	default:
		return 0, false
	}
}

func (k attributeKind) keeps(op aql.ComparisonPredicate) bool {
	if k == kindBase || op.Operator != aql.PredEQ {
		return false
	}
	switch {
	case op.Path.Equal(aql.NameValuePath):
		return k != kindArchetype
	case op.Path.Equal(aql.ArchetypeNodeIDPath):
		return k != kindName
	default:
		return false
	}
}

// cleanup drops the predicates that do not identify a sub-attribute at
// this resolution and orders the rest by archetype_node_id and name.
func (k attributeKind) cleanup(ors []aql.AndPredicate) []aql.AndPredicate {
	var out []aql.AndPredicate
	for _, and := range ors {
		var nodeID, name *aql.ComparisonPredicate
		for i := range and.Operands {
			op := and.Operands[i]
			if !k.keeps(op) {
				continue
			}
			if op.Path.Equal(aql.ArchetypeNodeIDPath) && nodeID == nil {
				nodeID = &op
			} else if op.Path.Equal(aql.NameValuePath) && name == nil {
				name = &op
			}
		}
		if k == kindNode && nodeID != nil {
			if s, ok := nodeID.Value.(aql.String); ok && !strings.HasPrefix(string(s), "openEHR-") {
				name = nil
			}
		}
		if nodeID == nil && name == nil {
			continue
		}
		var ops []aql.ComparisonPredicate
		if nodeID != nil {
			ops = append(ops, *nodeID)
		}
		if name != nil {
			ops = append(ops, *name)
		}
		out = append(out, aql.AndPredicate{Operands: ops})
	}
	slices.SortStableFunc(out, func(a, b aql.AndPredicate) int {
		if c := cmp.Compare(stringOperand(a, aql.ArchetypeNodeIDPath), stringOperand(b, aql.ArchetypeNodeIDPath)); c != 0 {
			return c
		}
		return cmp.Compare(stringOperand(a, aql.NameValuePath), stringOperand(b, aql.NameValuePath))
	})
	return out
}

func stringOperand(and aql.AndPredicate, path *aql.ObjectPath) string {
	for _, op := range and.Operands {
		if op.Path.Equal(path) {
			if s, ok := aql.StringValue(op.Value); ok {
				return s
			}
		}
	}
	return ""
}
