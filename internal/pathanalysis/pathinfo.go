package pathanalysis

import (
	"fmt"
	"slices"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/rm"
)

// JoinMode tells the algebra builder how a cohesion node is joined.
//
//	            no child   one child               several children
//	root        ROOT       ROOT                    ROOT
//	data        DATA       DATA                    DATA
//	no data     -          INTERNAL_SINGLE_CHILD   INTERNAL_FORK
type JoinMode string

const (
	// JoinRoot is the FROM containment itself; its children are left joined.
	JoinRoot JoinMode = "ROOT"
	// JoinData contributes data to the result; children are left joined.
	JoinData JoinMode = "DATA"
	// JoinInternalSingleChild only yields tuples when its single child does.
	JoinInternalSingleChild JoinMode = "INTERNAL_SINGLE_CHILD"
	// JoinInternalFork only yields tuples when at least one child does.
	JoinInternalFork JoinMode = "INTERNAL_FORK"
)

// NodeInfo is the merged type information of all paths through a node.
type NodeInfo struct {
	Category       NodeCategory
	RMTypes        []string
	PathFromRoot   []aql.PathNode
	Multiple       bool
	DvOrderedTypes []string
}

type pathTypes struct {
	root  *Node
	infos map[*Node]map[string]AttInfo
}

// PathInfo analyzes the cohesion tree of one containment.
type PathInfo struct {
	model   *rm.Model
	root    *CohesionNode
	nodes   map[*CohesionNode]NodeInfo
	clauses map[string]map[aql.ClauseKind]bool
}

// ClausesByPath maps each path key of q to the clauses using it.
func ClausesByPath(q *aql.Query) map[string]map[aql.ClauseKind]bool {
	out := make(map[string]map[aql.ClauseKind]bool)
	for _, use := range q.IdentifiedPaths() {
		key := PathKey(use.Path)
		if out[key] == nil {
			out[key] = make(map[aql.ClauseKind]bool)
		}
		out[key][use.Clause] = true
	}
	return out
}

// NewPathInfo runs the type analysis for every path of the tree.
func NewPathInfo(m *rm.Model, root *CohesionNode, clauses map[string]map[aql.ClauseKind]bool) (*PathInfo, error) {
	types := make(map[*aql.IdentifiedPath]pathTypes, len(root.Paths))
	for _, ip := range root.Paths {
		analyzed, err := AnalyzeTypes(m, ip.Root.RootType(), ip.RootPredicate, ip.Root.RootPredicates(), ip.Path)
		if err != nil {
			return nil, aql.WrapInternalError(err, "Path %s is not valid", ip)
		}
		if len(analyzed.candidates) == 0 {
			return nil, aql.NewInternalError("Path %s is not valid", ip)
		}
		types[ip] = pathTypes{root: analyzed, infos: AttributeInfos(m, analyzed)}
	}

	pi := &PathInfo{
		model:   m,
		root:    root,
		nodes:   make(map[*CohesionNode]NodeInfo),
		clauses: clauses,
	}
	if err := pi.fill(root, -1, types); err != nil {
		return nil, err
	}
	return pi, nil
}

func (pi *PathInfo) fill(n *CohesionNode, level int, types map[*aql.IdentifiedPath]pathTypes) error {
	var merged NodeInfo
	for i, ip := range n.Paths {
		info, err := pi.infoAtLevel(ip, level, types[ip])
		if err != nil {
			return err
		}
		if i == 0 {
			merged = info
			continue
		}
		cat, err := MergeCategories(merged.Category, info.Category)
		if err != nil {
			return aql.WrapInternalError(err, "conflicting paths at %s", ip)
		}
		merged.Category = cat
		merged.RMTypes = union(merged.RMTypes, info.RMTypes)
		merged.Multiple = merged.Multiple || info.Multiple
		merged.DvOrderedTypes = union(merged.DvOrderedTypes, info.DvOrderedTypes)
	}
	pi.nodes[n] = merged
	for _, c := range n.Children {
		if err := pi.fill(c, level+1, types); err != nil {
			return err
		}
	}
	return nil
}

func (pi *PathInfo) infoAtLevel(ip *aql.IdentifiedPath, level int, pt pathTypes) (NodeInfo, error) {
	node := pt.root
	var (
		att     *AttInfo
		hasInfo bool
	)
	for i := 0; i <= level; i++ {
		name := ip.Path.Nodes[i].Attribute
		info, ok := pt.infos[node][name]
		att, hasInfo = &info, ok
		child, ok := node.Attribute(name)
		if !ok {
			return NodeInfo{}, aql.NewInternalError("Path %s is not valid", ip)
		}
		node = child
	}

	cat, err := node.Category(pi.model)
	if err != nil {
		return NodeInfo{}, aql.WrapInternalError(err, "Path %s is not valid", ip)
	}
	out := NodeInfo{Category: cat, RMTypes: node.CandidateTypes()}
	if level >= 0 {
		out.PathFromRoot = slices.Clone(ip.Path.Nodes[:level+1])
	}
	if hasInfo {
		out.RMTypes = att.TargetTypes
		out.Multiple = att.Multiple
		for _, t := range att.TargetTypes {
			if pi.model.IsDvOrdered(t) {
				out.DvOrderedTypes = append(out.DvOrderedTypes, t)
			}
		}
	}
	return out, nil
}

func union(a, b []string) []string {
	s := newTypeSet(a...)
	for _, t := range b {
		s[t] = struct{}{}
	}
	return s.sorted()
}

// Root returns the cohesion tree.
func (pi *PathInfo) Root() *CohesionNode { return pi.root }

// Info returns the node information; it panics for nodes of another tree.
func (pi *PathInfo) Info(n *CohesionNode) NodeInfo {
	info, ok := pi.nodes[n]
	if !ok {
		panic(fmt.Sprintf("pathanalysis: node %s not part of this tree", n.Attribute.Attribute))
	}
	return info
}

// Category returns the node category.
func (pi *PathInfo) Category(n *CohesionNode) NodeCategory { return pi.Info(n).Category }

// TargetTypes returns the RM types the node may take.
func (pi *PathInfo) TargetTypes(n *CohesionNode) []string { return pi.Info(n).RMTypes }

// DvOrderedTypes returns the DV_ORDERED subtypes among the target types.
func (pi *PathInfo) DvOrderedTypes(n *CohesionNode) []string { return pi.Info(n).DvOrderedTypes }

// IsMultiple reports whether the attribute holds a list.
func (pi *PathInfo) IsMultiple(n *CohesionNode) bool { return pi.Info(n).Multiple }

// PathToNode returns the path nodes from the root to n.
func (pi *PathInfo) PathToNode(n *CohesionNode) []aql.PathNode { return pi.Info(n).PathFromRoot }

// UsedInSelect reports whether a SELECT path ends at n.
func (pi *PathInfo) UsedInSelect(n *CohesionNode) bool {
	return pi.usedIn(n, aql.ClauseSelect)
}

// UsedInWhereOrOrderBy reports whether a WHERE or ORDER BY path ends at n.
func (pi *PathInfo) UsedInWhereOrOrderBy(n *CohesionNode) bool {
	return pi.usedIn(n, aql.ClauseWhere, aql.ClauseOrderBy)
}

func (pi *PathInfo) usedIn(n *CohesionNode, kinds ...aql.ClauseKind) bool {
	for _, ip := range n.EndingHere {
		for _, k := range kinds {
			if pi.clauses[PathKey(ip)][k] {
				return true
			}
		}
	}
	return false
}

// JoinMode returns how n is joined to its parent.
func (pi *PathInfo) JoinMode(n *CohesionNode) (JoinMode, error) {
	if n.Root {
		return JoinRoot, nil
	}
	if len(n.EndingHere) > 0 {
		return JoinData, nil
	}
	structures := 0
	for _, c := range n.Children {
		if pi.Category(c).IsData() {
			return JoinData, nil
		}
		structures++
	}
	switch structures {
	case 0:
		return "", aql.NewInternalError("Internal node without children: %s", n.Attribute.Attribute)
	case 1:
		return JoinInternalSingleChild, nil
	default:
		return JoinInternalFork, nil
	}
}
