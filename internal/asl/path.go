package asl

import (
	"slices"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/pathanalysis"
	"github.com/roach88/aqlc/internal/querywrapper"
	"github.com/roach88/aqlc/internal/schema"
)

type dataNodeKind int

const (
	// extractedNode is answered by an extracted column or a constant.
	extractedNode dataNodeKind = iota
	// jsonNode is read from the JSON of a structure row.
	jsonNode
	// structureNode is a whole structure object, aggregated from its rows.
	structureNode
)

// dataNode is a cohesion node producing values for the paths ending at it.
type dataNode struct {
	kind dataNodeKind
	node *pathanalysis.CohesionNode
	// parent is the structure query the data belongs to; nil for JSON nodes
	// below a multiple valued node.
	parent *ownerProvider
	// provider is the query joined into the root that exposes parent.
	provider Query

	extracted schema.ExtractedColumn

	pathInJSON     []aql.PathNode
	multiple       bool
	dependents     []*dataNode
	dvOrderedTypes []string
	typ            schema.ColumnType
}

// addPaths joins the structure nodes of every path and creates the fields
// answering them.
func (st *build) addPaths() error {
	if err := st.addEhrFields(); err != nil {
		return err
	}
	var nodes []*dataNode
	for _, cw := range st.pathRoots() {
		pi := st.w.PathInfos[cw]
		parent, ok := st.owners[cw]
		if !ok {
			return aql.NewInternalError("containment %s has no structure query", cw.Alias())
		}
		ns, err := st.joinPathStructureNode(st.root, parent, "", parent.owner.Relation, pi.Root(), pi, parent.provider, -1)
		if err != nil {
			return err
		}
		nodes = append(nodes, ns...)
	}
	return st.addDataNodes(nodes, nil)
}

// pathRoots lists the containments with path information in FROM order.
func (st *build) pathRoots() []*querywrapper.ContainsWrapper {
	var out []*querywrapper.ContainsWrapper
	add := func(cw *querywrapper.ContainsWrapper) {
		if _, ok := st.w.PathInfos[cw]; ok {
			out = append(out, cw)
		}
	}
	var walk func(*querywrapper.ContainsChain)
	walk = func(ch *querywrapper.ContainsChain) {
		for _, cw := range ch.Chain {
			add(cw)
			if cw.Child != nil {
				add(cw.Child)
			}
		}
		if ch.SetOperation != nil {
			for _, o := range ch.SetOperation.Operands {
				walk(o)
			}
		}
	}
	walk(st.w.Chain)
	return out
}

// addEhrFields answers EHR paths. They are all extracted columns or
// constants.
func (st *build) addEhrFields() error {
	add := func(root *querywrapper.ContainsWrapper, ip *aql.IdentifiedPath) error {
		if root == nil || ip == nil || root.Type() != schema.TypeEHR {
			return nil
		}
		key := pathanalysis.PathKey(ip)
		if _, ok := st.fields[key]; ok {
			return nil
		}
		ec, ok := schema.FindExtractedColumn(schema.TypeEHR, ip.Path)
		if !ok {
			return aql.NewInternalError("EHR path %s is not supported", ip)
		}
		op, ok := st.owners[root]
		if !ok {
			return aql.NewInternalError("containment %s has no structure query", root.Alias())
		}
		f, err := st.extractedField(ec, FieldSource{Owner: op.owner, InternalProvider: op.provider, Provider: st.root})
		if err != nil {
			return err
		}
		st.fields[key] = f
		return nil
	}

	for _, s := range st.w.NonPrimitiveSelects() {
		if err := add(s.Root, s.Path); err != nil {
			return err
		}
	}
	if st.w.Where != nil {
		for _, c := range comparisons(st.w.Where) {
			if err := add(c.Root, c.Path); err != nil {
				return err
			}
		}
	}
	for _, ob := range st.w.OrderBy {
		if err := add(ob.Root, ob.Path); err != nil {
			return err
		}
	}
	return nil
}

// extractedColumnField finds the column backing ec. A column shared by
// several extracted columns is copied so the field names exactly one.
func extractedColumnField(ec schema.ExtractedColumn, src FieldSource) (Field, error) {
	cols := ec.Columns()
	if len(cols) == 0 {
		return nil, aql.NewInternalError("extracted column %s has no backing column", ec)
	}
	f, err := findField(src.InternalProvider, src.Owner, cols[0])
	if err != nil {
		return nil, err
	}
	cf, ok := f.WithProvider(src.Provider).(*ColumnField)
	if !ok {
		return nil, aql.NewInternalError("extracted column %s is not a column", ec)
	}
	if cf.Extracted != ec {
		c := *cf
		c.Extracted = ec
		cf = &c
	}
	return cf, nil
}

func (st *build) extractedField(ec schema.ExtractedColumn, src FieldSource) (Field, error) {
	switch ec {
	case schema.AdChangeTypeTermID:
		return &ConstantField{source: source{src}, Value: "openehr", Extracted: ec}, nil
	case schema.AdSystemID, schema.EhrSystemID, schema.EhrSystemIDDv:
		return &ConstantField{source: source{src}, Value: st.SystemID, Extracted: ec}, nil
	case schema.VoID, schema.ArchetypeNodeID:
		return &ComplexExtractedColumnField{source: source{src}, Extracted: ec}, nil
	default:
		return extractedColumnField(ec, src)
	}
}

func (st *build) joinPathStructureNode(query container, parent ownerProvider, parentMode pathanalysis.JoinMode, rel schema.SourceRelation, node *pathanalysis.CohesionNode, pi *pathanalysis.PathInfo, rootProvider Query, level int) ([]*dataNode, error) {
	mode, err := pi.JoinMode(node)
	if err != nil {
		return nil, err
	}

	sub, current := parent, query
	if mode != pathanalysis.JoinRoot {
		sq, err := st.pathStructureQuery(node.Attribute, rel, pi.TargetTypes(node))
		if err != nil {
			return nil, err
		}
		sub = ownerProvider{owner: sq, provider: sq}
		if parentMode == pathanalysis.JoinInternalSingleChild {
			if err := st.addInternalPathNode(query, parent, sq, node); err != nil {
				return nil, err
			}
		} else {
			eq, err := st.addEncapsulatedPathNode(query, parent, parentMode, sq, node)
			if err != nil {
				return nil, err
			}
			current = eq
			if parentMode == pathanalysis.JoinRoot {
				rootProvider = eq
			}
		}
	}
	if err := st.addPathFilters(node, level, sub.owner); err != nil {
		return nil, err
	}

	var out []*dataNode
	for _, child := range node.Children {
		if sub.owner.RepresentsVersion && slices.Contains(pi.TargetTypes(child), schema.TypeAuditDetails) {
			// VERSION/commit_audit
			ns, err := st.joinAuditDetailsPaths(current, sub, child, rootProvider)
			if err != nil {
				return nil, err
			}
			out = append(out, ns...)
			continue
		}
		var (
			ns  []*dataNode
			err error
		)
		switch cat := pi.Category(child); cat {
		case pathanalysis.CategoryStructure:
			ns, err = st.joinPathStructureNode(current, sub, mode, rel, child, pi, rootProvider, level+1)
		case pathanalysis.CategoryRMType:
			ns, err = st.joinRmTypeNode(child, &sub, rootProvider, pi, 1)
		case pathanalysis.CategoryFoundation:
			ns, err = st.joinFoundationNode(child, &sub, rootProvider, pi, 1)
		default:
			err = aql.NewInternalError("unexpected %s node %s below a structure node", cat, child.Attribute.Attribute)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ns...)
	}

	// only nodes with paths ending here yield an RM object
	if (mode == pathanalysis.JoinRoot || mode == pathanalysis.JoinData) && len(node.EndingHere) > 0 {
		sp := sub
		out = append(out, &dataNode{kind: structureNode, node: node, parent: &sp, provider: rootProvider})
	}
	return out, nil
}

// addEncapsulatedPathNode wraps sq in a p_eq query left joined to the
// parent node. Below a fork the container requires one of its branches.
func (st *build) addEncapsulatedPathNode(query container, parent ownerProvider, parentMode pathanalysis.JoinMode, sq *StructureQuery, node *pathanalysis.CohesionNode) (*EncapsulatingQuery, error) {
	eq := NewEncapsulatingQuery(st.aliases.UniqueAlias("p_eq"))
	eq.AddChild(sq, nil)

	var parentProvider Query = parent.owner
	if parentMode == pathanalysis.JoinRoot {
		parentProvider = parent.provider
	}
	pc, err := pathChildCondition(parentProvider, parent.owner, eq, sq)
	if err != nil {
		return nil, err
	}
	conds := []Condition{pc}
	if f := st.parentFilter(parent, node); f != nil {
		conds = append(conds, f)
	}
	query.AddChild(eq, &Join{Left: parent.provider, Type: JoinLeft, Conditions: conds})

	if parentMode == pathanalysis.JoinInternalFork {
		f, err := findField(eq, sq, schema.ColVoID)
		if err != nil {
			return nil, err
		}
		enc := query.encapsulating()
		enc.AnyOf = append(enc.AnyOf, &NotNullCondition{Field: f})
	}
	return eq, nil
}

// addInternalPathNode inner joins sq next to its parent: the parent only
// yields rows when its single child does.
func (st *build) addInternalPathNode(query container, parent ownerProvider, sq *StructureQuery, node *pathanalysis.CohesionNode) error {
	var conds []Condition
	if f := st.parentFilter(parent, node); f != nil {
		conds = append(conds, f)
	}
	pc, err := pathChildCondition(parent.provider, parent.owner, sq, sq)
	if err != nil {
		return err
	}
	conds = append(conds, pc)
	query.AddChild(sq, &Join{Left: parent.provider, Type: JoinInner, Conditions: conds})
	return nil
}

// pathStructureQuery reads the rows of one structure attribute.
func (st *build) pathStructureQuery(attr aql.PathNode, rel schema.SourceRelation, rmTypes []string) (*StructureQuery, error) {
	sq := NewStructureQuery(st.aliases.UniqueAlias("p_"+attr.Attribute), rel, nil, rmTypes, nil, attr.Attribute, false)
	for _, c := range schema.StructureColumnsFor(rel) {
		if !c.FromVersion {
			sq.AddColumn(c, "")
		}
	}
	sq.AddColumn(schema.StructureColumn{Name: schema.ColEntityAttribute, Type: schema.TypeString}, "")
	sq.AddColumn(dataColumn, "")

	cond, err := predicates(attr.Predicates, func(cp aql.ComparisonPredicate) (Condition, error) {
		return st.pathStructurePredicate(cp, sq)
	})
	if err != nil {
		return nil, err
	}
	if cond != nil {
		sq.Conditions = append(sq.Conditions, cond)
	}
	return sq, nil
}

// pathStructurePredicate handles the identifying predicates kept by the
// cohesion analysis: archetype_node_id and name/value equality.
func (st *build) pathStructurePredicate(cp aql.ComparisonPredicate, sq *StructureQuery) (Condition, error) {
	value, ok := aql.StringValue(cp.Value)
	if !ok {
		return nil, aql.NewInternalError("unexpected attribute predicate value %s", aql.RenderOperand(cp.Value))
	}
	switch {
	case cp.Path.Equal(aql.ArchetypeNodeIDPath):
		return &FieldValueCondition{
			Field:    &ComplexExtractedColumnField{source: source{sourceOf(sq)}, Extracted: schema.ArchetypeNodeID},
			Operator: OpEQ,
			Values:   []any{st.model.FromArchetypeNodeID(value)},
		}, nil
	case cp.Path.Equal(aql.NameValuePath):
		f, err := findField(sq, sq, schema.ColEntityName)
		if err != nil {
			return nil, err
		}
		return &FieldValueCondition{Field: f, Operator: OpEQ, Values: []any{value}}, nil
	default:
		return nil, aql.NewInternalError("unexpected attribute predicate path: %s", cp.Path)
	}
}

// addPathFilters records per path predicate conditions when the paths
// through node disagree on its predicates.
func (st *build) addPathFilters(node *pathanalysis.CohesionNode, level int, sq *StructureQuery) error {
	pathPredicates := func(ip *aql.IdentifiedPath) []aql.AndPredicate {
		if level < 0 {
			return ip.RootPredicate
		}
		return ip.Path.Nodes[level].Predicates
	}
	want := countPredicates(node.Attribute.Predicates)
	differ := false
	for _, ip := range node.Paths {
		if countPredicates(pathPredicates(ip)) != want {
			differ = true
			break
		}
	}
	if !differ {
		return nil
	}
	for _, ip := range node.Paths {
		cond, err := predicates(pathPredicates(ip), func(cp aql.ComparisonPredicate) (Condition, error) {
			return st.structurePredicate(cp, sq)
		})
		if err != nil {
			return err
		}
		if cond == nil {
			cond = &TrueCondition{}
		}
		if st.filters[sq] == nil {
			st.filters[sq] = make(map[string]Condition)
		}
		key := pathanalysis.PathKey(ip)
		st.filters[sq][key] = cond
		st.filtersFor[key] = append(st.filtersFor[key], sq)
	}
	return nil
}

func countPredicates(ors []aql.AndPredicate) int {
	n := 0
	for _, and := range ors {
		n += len(and.Operands)
	}
	return n
}

// parentFilter restricts the join of node to parent rows passing the
// filters of the paths through node.
func (st *build) parentFilter(parent ownerProvider, node *pathanalysis.CohesionNode) Condition {
	fm := st.filters[parent.owner]
	if len(fm) == 0 {
		return nil
	}
	var ors []Condition
	for _, ip := range node.Paths {
		if c, ok := fm[pathanalysis.PathKey(ip)]; ok {
			ors = append(ors, c)
		}
	}
	c := Or(ors...)
	if _, ok := c.(*TrueCondition); ok || c == nil {
		return nil
	}
	return &PathFilterJoinCondition{Condition: ConditionWithProvider(c, parent.provider)}
}

// joinAuditDetailsPaths answers VERSION/commit_audit paths from the
// version table or the joined audit_details row.
func (st *build) joinAuditDetailsPaths(query container, parent ownerProvider, node *pathanalysis.CohesionNode, rootProvider Query) ([]*dataNode, error) {
	var audit *StructureQuery
	auditQuery := func() (*StructureQuery, error) {
		if audit != nil {
			return audit, nil
		}
		q := NewStructureQuery(st.aliases.UniqueAlias("p_ca"), schema.RelationAuditDetails,
			schema.StructureColumnsFor(schema.RelationAuditDetails),
			[]string{schema.TypeAuditDetails}, []string{schema.TypeAuditDetails}, "", false)
		l, err := findField(parent.provider, parent.owner, schema.ColAuditID)
		if err != nil {
			return nil, err
		}
		r, err := findField(q, q, schema.ColID)
		if err != nil {
			return nil, err
		}
		query.AddChild(q, &Join{
			Left:       parent.provider,
			Type:       JoinInner,
			Conditions: []Condition{&FieldFieldJoinCondition{Left: l, Operator: OpEQ, Right: r}},
		})
		audit = q
		return q, nil
	}

	nodeOf := make(map[string]*pathanalysis.CohesionNode)
	var walk func(*pathanalysis.CohesionNode)
	walk = func(n *pathanalysis.CohesionNode) {
		for _, ip := range n.EndingHere {
			nodeOf[pathanalysis.PathKey(ip)] = n
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(node)

	var out []*dataNode
	seen := make(map[*pathanalysis.CohesionNode]bool)
	for _, ip := range node.Paths {
		n := nodeOf[pathanalysis.PathKey(ip)]
		if n == nil || seen[n] {
			continue
		}
		seen[n] = true
		ec, ok := schema.FindExtractedColumn(schema.TypeOriginalVersion, ip.Path)
		if !ok {
			ec, ok = schema.FindExtractedColumnFrom(schema.TypeAuditDetails, ip.Path, 1)
		}
		if !ok {
			return nil, aql.NewInternalError("path %s is not supported", ip)
		}
		dn := &dataNode{kind: extractedNode, node: n, extracted: ec}
		if slices.Contains(ec.AllowedTypes(), schema.TypeAuditDetails) {
			q, err := auditQuery()
			if err != nil {
				return nil, err
			}
			dn.parent = &ownerProvider{owner: q, provider: q}
			dn.provider = q
		} else {
			p := parent
			dn.parent = &p
			dn.provider = rootProvider
		}
		out = append(out, dn)
	}
	return out, nil
}

func (st *build) joinRmTypeNode(node *pathanalysis.CohesionNode, parent *ownerProvider, rootProvider Query, pi *pathanalysis.PathInfo, levelInJSON int) ([]*dataNode, error) {
	multiple := pi.IsMultiple(node)
	next, childParent := levelInJSON+1, parent
	if multiple {
		next, childParent = 1, nil
	}
	var children []*dataNode
	for _, child := range node.Children {
		var (
			ns  []*dataNode
			err error
		)
		switch cat := pi.Category(child); cat {
		case pathanalysis.CategoryRMType, pathanalysis.CategoryFoundationExtended:
			ns, err = st.joinRmTypeNode(child, childParent, rootProvider, pi, next)
		case pathanalysis.CategoryFoundation:
			ns, err = st.joinFoundationNode(child, childParent, rootProvider, pi, next)
		default:
			err = aql.NewInternalError("unexpected %s node %s below an RM type", cat, child.Attribute.Attribute)
		}
		if err != nil {
			return nil, err
		}
		children = append(children, ns...)
	}

	var dependents []*dataNode
	if multiple {
		dependents, children = children, nil
	}
	out := st.jsonDataNodes(node, parent, rootProvider, pi, dependents, levelInJSON)
	return append(out, children...), nil
}

func (st *build) joinFoundationNode(node *pathanalysis.CohesionNode, parent *ownerProvider, rootProvider Query, pi *pathanalysis.PathInfo, levelInJSON int) ([]*dataNode, error) {
	if parent != nil {
		if ec, ok := matchExtractedColumn(parent.owner, node, levelInJSON); ok {
			return []*dataNode{{kind: extractedNode, node: node, parent: parent, provider: rootProvider, extracted: ec}}, nil
		}
	}
	return st.jsonDataNodes(node, parent, rootProvider, pi, nil, levelInJSON), nil
}

// matchExtractedColumn finds the extracted column answering every path
// ending at node, levelInJSON attributes below sq's row.
func matchExtractedColumn(sq *StructureQuery, node *pathanalysis.CohesionNode, levelInJSON int) (schema.ExtractedColumn, bool) {
	for _, ec := range schema.ExtractedColumns() {
		if ec.Path().Len() != levelInJSON || !appliesTo(ec, sq) {
			continue
		}
		all := true
		for _, ip := range node.Paths {
			n := ip.Path.Len()
			if n < levelInJSON || !ip.Path.Sub(n-levelInJSON, n).Equal(ec.Path()) {
				all = false
				break
			}
		}
		if all {
			return ec, true
		}
	}
	return "", false
}

func appliesTo(ec schema.ExtractedColumn, sq *StructureQuery) bool {
	for _, t := range ec.AllowedTypes() {
		if slices.Contains(sq.RMTypes, t) || (sq.RepresentsVersion && t == schema.TypeOriginalVersion) {
			return true
		}
	}
	return false
}

func (st *build) jsonDataNodes(node *pathanalysis.CohesionNode, parent *ownerProvider, rootProvider Query, pi *pathanalysis.PathInfo, dependents []*dataNode, levelInJSON int) []*dataNode {
	multiple := pi.IsMultiple(node)
	if len(node.EndingHere) == 0 && !multiple {
		return nil
	}
	path := pi.PathToNode(node)
	typ := schema.TypeJSON
	if slices.Equal(pi.TargetTypes(node), []string{"STRING"}) {
		typ = schema.TypeString
	}
	return []*dataNode{{
		kind:           jsonNode,
		node:           node,
		parent:         parent,
		provider:       rootProvider,
		pathInJSON:     slices.Clone(path[len(path)-levelInJSON:]),
		multiple:       multiple,
		dependents:     dependents,
		dvOrderedTypes: pi.DvOrderedTypes(node),
		typ:            typ,
	}}
}

func (st *build) addDataNodes(nodes []*dataNode, parentPD *PathDataQuery) error {
	for _, dn := range nodes {
		var err error
		switch dn.kind {
		case extractedNode:
			err = st.addExtractedColumn(dn)
		case jsonNode:
			err = st.addPathDataQuery(dn, parentPD)
		case structureNode:
			err = st.addObjectData(dn)
		}
		if err != nil {
			return err
		}
		for _, ip := range dn.node.EndingHere {
			if err := st.addFilterIfRequired(ip); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st *build) setFields(node *pathanalysis.CohesionNode, f Field) {
	for _, ip := range node.EndingHere {
		st.fields[pathanalysis.PathKey(ip)] = f
	}
}

func (st *build) addExtractedColumn(dn *dataNode) error {
	f, err := st.extractedField(dn.extracted, FieldSource{
		Owner:            dn.parent.owner,
		InternalProvider: dn.provider,
		Provider:         st.root,
	})
	if err != nil {
		return err
	}
	st.setFields(dn.node, f)
	return nil
}

// addPathDataQuery reads JSON below a structure row. Multiple valued nodes
// are unnested by lateral joins; at the structure row the array is
// extracted first so filters apply before rows multiply.
func (st *build) addPathDataQuery(dn *dataNode, parentPD *PathDataQuery) error {
	var base, provider Query
	if parentPD == nil {
		if dn.parent == nil {
			return aql.NewInternalError("JSON node %s without structure row", dn.node.Attribute.Attribute)
		}
		base, provider = dn.parent.owner, dn.provider
	} else {
		base, provider = parentPD, parentPD
	}
	data, err := findField(provider, base, schema.ColData)
	if err != nil {
		return err
	}

	var field Field
	if dn.multiple {
		alias := st.aliases.UniqueAlias("pd")
		var dq *PathDataQuery
		if parentPD == nil {
			arr := NewPathDataQuery(alias+"_array", base, data, dn.pathInJSON, false, dn.dvOrderedTypes, schema.TypeJSON)
			st.root.AddChild(arr, &Join{Left: provider, Type: JoinLeft})
			dq = NewPathDataQuery(alias, arr, arr.DataField(), nil, true, dn.dvOrderedTypes, dn.typ)
			st.root.AddChild(dq, &Join{Left: arr, Type: JoinLeft})
		} else {
			dq = NewPathDataQuery(alias, base, data, dn.pathInJSON, true, dn.dvOrderedTypes, dn.typ)
			st.root.AddChild(dq, &Join{Left: provider, Type: JoinLeft})
		}
		field = dq.DataField().WithProvider(st.root)
		if err := st.addDataNodes(dn.dependents, dq); err != nil {
			return err
		}
	} else {
		if len(dn.dependents) > 0 {
			return aql.NewInternalError("only multiple valued JSON nodes can have dependent nodes")
		}
		field = (&RmPathField{
			source:         source{data.Source()},
			Base:           data,
			Path:           dn.pathInJSON,
			DvOrderedTypes: dn.dvOrderedTypes,
			Type:           dn.typ,
		}).WithProvider(st.root)
	}
	st.setFields(dn.node, field)
	return nil
}

// addObjectData answers paths ending at a structure node with the object
// aggregated from its rows.
func (st *build) addObjectData(dn *dataNode) error {
	q := NewObjectDataQuery(st.aliases.UniqueAlias("pd"), dn.parent.owner, dn.provider)
	f := &SubqueryField{source: source{FieldSource{Owner: q, InternalProvider: q, Provider: st.root}}, Query: q}
	st.setFields(dn.node, f)
	return nil
}

// addFilterIfRequired applies the per path filters of ip to its field.
func (st *build) addFilterIfRequired(ip *aql.IdentifiedPath) error {
	key := pathanalysis.PathKey(ip)
	var conds []Condition
	for _, sq := range st.filtersFor[key] {
		c := st.filters[sq][key]
		if _, ok := c.(*TrueCondition); ok || c == nil {
			continue
		}
		conds = append(conds, MapFields(c, st.atRoot))
	}
	if len(conds) == 0 {
		return nil
	}
	f, ok := st.fields[key]
	if !ok {
		return aql.NewInternalError("unknown field: %s", ip)
	}
	if sf, ok := f.(*SubqueryField); ok {
		st.fields[key] = sf.WithFilter(conds...)
		return nil
	}
	fq := NewFilteringQuery(st.aliases.UniqueAlias(f.Source().Owner.Alias()+"_f"), f)
	st.root.AddChild(fq, &Join{Left: f.Source().InternalProvider, Type: JoinLeft, Conditions: conds})
	st.fields[key] = fq.ValueField().WithProvider(st.root)
	return nil
}

// atRoot exposes a field of a nested structure query at the root.
func (st *build) atRoot(f Field) Field {
	chain, _ := holds(&st.root.EncapsulatingQuery, f.Source().Owner)
	for i := len(chain) - 1; i >= 0; i-- {
		f = f.WithProvider(chain[i])
	}
	return f.WithProvider(st.root)
}

// holds returns the encapsulating queries below eq leading to target,
// outermost first.
func holds(eq *EncapsulatingQuery, target Query) ([]Query, bool) {
	for _, ch := range eq.Children {
		if ch.Query == target {
			return nil, true
		}
		if inner, ok := ch.Query.(*EncapsulatingQuery); ok {
			if sub, ok := holds(inner, target); ok {
				return append([]Query{inner}, sub...), true
			}
		}
	}
	return nil, false
}
