package asl

import (
	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/querywrapper"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/schema"
)

// addFrom creates one structure query per containment and joins them.
func (st *build) addFrom() error {
	chain := st.w.Chain
	if chain == nil || len(chain.Chain) == 0 {
		return aql.NewInternalError("FROM clause without containment")
	}
	if err := st.addChain(st.root, nil, chain, false, st.owners); err != nil {
		return err
	}
	cond, err := st.containsCondition(chain, false, st.owners)
	if err != nil {
		return err
	}
	st.root.AddCondition(cond)
	return nil
}

// container is the query children are added to: the root or an OR
// operand subquery.
type container interface {
	Query
	AddChild(child Query, join *Join)
	encapsulating() *EncapsulatingQuery
}

func (st *build) addChain(c container, parent *StructureQuery, chain *querywrapper.ContainsChain, left bool, owners map[*querywrapper.ContainsWrapper]ownerProvider) error {
	current := parent
	for _, cw := range chain.Chain {
		sq, err := st.addContains(c, cw, current, left, owners)
		if err != nil {
			return err
		}
		current = sq
	}
	if chain.SetOperation != nil {
		return st.addSetOperation(c, chain.SetOperation, current, left, owners)
	}
	return nil
}

func (st *build) addContains(c container, cw *querywrapper.ContainsWrapper, parent *StructureQuery, left bool, owners map[*querywrapper.ContainsWrapper]ownerProvider) (*StructureQuery, error) {
	used := cw.RMWrapper()
	isVersion := cw.Kind == querywrapper.ContainsVersion

	var parentRel schema.SourceRelation
	if parent != nil {
		parentRel = parent.Relation
	}
	rel, err := sourceRelation(st.model, used.Type(), parent)
	if err != nil {
		return nil, err
	}

	var requiresVersionJoin bool
	switch {
	case isVersion || parentRel == schema.RelationEHR:
		requiresVersionJoin = true
	case parentRel == schema.RelationFolder && rel == schema.RelationComposition:
		// c/uid/value below a FOLDER needs sys_version
		requiresVersionJoin = true
	case parent != nil || rel == schema.RelationEHR:
		requiresVersionJoin = false
	default:
		s, ok := rm.Structure(used.Type())
		requiresVersionJoin = ok && s.IsRoot()
	}

	sq, err := st.containsQuery(used, requiresVersionJoin, rel)
	if err != nil {
		return nil, err
	}
	sq.RepresentsVersion = isVersion

	var join *Join
	if parent != nil && len(c.encapsulating().Children) > 0 {
		jt := JoinInner
		if left {
			jt = JoinLeft
		}
		cond, err := containsJoinCondition(parent, parent, sq, sq)
		if err != nil {
			return nil, err
		}
		join = &Join{Left: parent, Type: jt, Conditions: []Condition{cond}}
	}
	c.AddChild(sq, join)

	op := ownerProvider{owner: sq, provider: sq}
	owners[used] = op
	if isVersion {
		owners[cw] = op
	}
	return sq, nil
}

// sourceRelation determines the relation of a containment type, falling
// back to the parent's for types below several roots such as CLUSTER.
func sourceRelation(m *rm.Model, typ string, parent *StructureQuery) (schema.SourceRelation, error) {
	if typ == schema.TypeEHR {
		return schema.RelationEHR, nil
	}
	root := rm.RootNone
	if s, ok := rm.Structure(typ); ok {
		root = s.Root
	} else if a, ok := m.Ancestor(typ); ok {
		root = a.Root
	}
	if root != rm.RootNone {
		return schema.RelationForRoot(root)
	}
	if parent != nil {
		return parent.Relation, nil
	}
	return "", aql.NewInternalError("cannot determine the source relation of %s", typ)
}

func containsJoinCondition(left Query, leftOwner *StructureQuery, right Query, rightOwner *StructureQuery) (Condition, error) {
	if leftOwner.Relation == schema.RelationFolder && rightOwner.Relation == schema.RelationComposition {
		items, ok := FindField(left, leftOwner, FolderItemIDColumn)
		if !ok {
			return nil, aql.NewInternalError("%s does not expose the folder items", leftOwner.Alias())
		}
		voID, err := findField(right, rightOwner, schema.ColVoID)
		if err != nil {
			return nil, err
		}
		return &FolderItemJoinCondition{ItemIDs: items, VoID: voID}, nil
	}
	return descendantCondition(left, leftOwner, right, rightOwner)
}

func (st *build) containsQuery(cw *querywrapper.ContainsWrapper, requiresVersionJoin bool, rel schema.SourceRelation) (*StructureQuery, error) {
	typ := cw.Type()
	prefix, ok := st.model.TypeAlias(typ)
	if !ok {
		prefix = typ
	}
	alias := st.aliases.UniqueAlias("s" + prefix + "_" + cw.Alias())

	var rmTypes []string
	isRoot := false
	switch {
	case typ == schema.TypeEHR:
		rmTypes = []string{schema.TypeEHR}
	default:
		if a, ok := st.model.Ancestor(typ); ok {
			rmTypes = a.DescendantNames()
		} else {
			rmTypes = []string{typ}
		}
		isRoot = typ == "EHR_STATUS" || typ == "COMPOSITION"
	}
	constraint := rmTypes
	if isRoot {
		constraint = nil
	}

	sq := NewStructureQuery(alias, rel, nil, rmTypes, constraint, "", requiresVersionJoin)
	sq.Root = isRoot
	addContainsColumns(sq, cw, requiresVersionJoin, rel)

	cond, err := predicates(cw.Predicates(), func(cp aql.ComparisonPredicate) (Condition, error) {
		return st.structurePredicate(cp, sq)
	})
	if err != nil {
		return nil, err
	}
	if cond != nil {
		sq.Conditions = append(sq.Conditions, cond)
	}
	if isRoot {
		sq.Conditions = append(sq.Conditions, &FieldValueCondition{
			Field:    sq.ownColumn(schema.ColNum, schema.TypeInt),
			Operator: OpEQ,
			Values:   []any{0},
		})
	}
	return sq, nil
}

func addContainsColumns(sq *StructureQuery, cw *querywrapper.ContainsWrapper, requiresVersionJoin bool, rel schema.SourceRelation) {
	if rel == schema.RelationEHR {
		for _, c := range schema.StructureColumnsFor(rel) {
			ec := schema.ExtractedColumn("")
			if c.Name == schema.ColID {
				ec = schema.EhrIDCol
			}
			sq.AddColumn(c, ec)
		}
		return
	}
	pkey := rel.PrimaryKey()
	for _, c := range schema.StructureColumnsFor(rel) {
		if c.FromVersion && !requiresVersionJoin && !contains(pkey, c.Name) {
			continue
		}
		ec := schema.ExtractedColumn("")
		if c.Name == schema.ColRootConcept {
			ec = schema.RootConcept
		}
		sq.AddColumn(c, ec)
	}
	sq.AddColumn(dataColumn, "")
	if cw.Type() == schema.TypeFolder {
		if child, ok := cw.Class.Contains.(*aql.ContainmentClass); ok && child.Type == "COMPOSITION" {
			sq.AddField(NewFolderItemIDField(sq))
		}
	}
}

// dataColumn holds the JSON of a structure row.
var dataColumn = schema.StructureColumn{Name: schema.ColData, Type: schema.TypeJSON}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (st *build) addSetOperation(c container, set *querywrapper.SetOperationWrapper, parent *StructureQuery, left bool, owners map[*querywrapper.ContainsWrapper]ownerProvider) error {
	isOr := set.Operator == aql.SetOr
	for _, operand := range set.Operands {
		if isOr && needsOrSubquery(operand) {
			// a nested chain must not be torn apart by the outer left join
			orSq, first, err := st.orOperandQuery(parent, operand, owners)
			if err != nil {
				return err
			}
			cond, err := descendantCondition(parent, parent, orSq, first)
			if err != nil {
				return err
			}
			c.AddChild(orSq, &Join{Left: parent, Type: JoinLeft, Conditions: []Condition{cond}})
			continue
		}
		if err := st.addChain(c, parent, operand, left || isOr, owners); err != nil {
			return err
		}
	}
	return nil
}

func needsOrSubquery(operand *querywrapper.ContainsChain) bool {
	return len(operand.Chain) > 1 || (len(operand.Chain) == 1 && operand.SetOperation != nil)
}

func (st *build) orOperandQuery(parent *StructureQuery, operand *querywrapper.ContainsChain, owners map[*querywrapper.ContainsWrapper]ownerProvider) (*EncapsulatingQuery, *StructureQuery, error) {
	orSq := NewEncapsulatingQuery(st.aliases.UniqueAlias("or_sq"))
	sub := make(map[*querywrapper.ContainsWrapper]ownerProvider)
	if err := st.addChain(orSq, parent, operand, false, sub); err != nil {
		return nil, nil, err
	}
	cond, err := st.containsCondition(operand, false, sub)
	if err != nil {
		return nil, nil, err
	}
	orSq.AddCondition(cond)
	for k, v := range sub {
		owners[k] = ownerProvider{owner: v.owner, provider: orSq}
	}
	first, ok := orSq.Children[0].Query.(*StructureQuery)
	if !ok {
		return nil, nil, aql.NewInternalError("OR operand %s does not start with a containment", orSq.Alias())
	}
	return orSq, first, nil
}

// containsCondition requires the rows of left joined containments below an
// OR and combines the operands of set operations.
func (st *build) containsCondition(chain *querywrapper.ContainsChain, belowOr bool, owners map[*querywrapper.ContainsWrapper]ownerProvider) (Condition, error) {
	if !belowOr && chain.SetOperation == nil {
		return nil, nil
	}
	var conds []Condition
	if belowOr {
		for _, cw := range chain.Chain {
			op := owners[cw]
			fields := op.provider.Fields()
			if len(fields) == 0 {
				return nil, aql.NewInternalError("%s exposes no fields", op.provider.Alias())
			}
			conds = append(conds, &NotNullCondition{Field: fields[0]})
		}
	}
	if set := chain.SetOperation; set != nil {
		isOr := set.Operator == aql.SetOr
		var operands []Condition
		for _, operand := range set.Operands {
			if isOr && needsOrSubquery(operand) {
				op := owners[operand.Chain[0]]
				f, err := findField(op.provider, op.owner, schema.ColVoID)
				if err != nil {
					return nil, err
				}
				operands = append(operands, &NotNullCondition{Field: f})
				continue
			}
			c, err := st.containsCondition(operand, belowOr || isOr, owners)
			if err != nil {
				return nil, err
			}
			if c != nil {
				operands = append(operands, c)
			}
		}
		if isOr {
			conds = append(conds, Or(operands...))
		} else {
			conds = append(conds, operands...)
		}
	}
	return And(conds...), nil
}

// findField is FindField reporting a missing field as internal error.
func findField(provider Query, owner Query, column string) (Field, error) {
	f, ok := FindField(provider, owner, column)
	if !ok {
		return nil, aql.NewInternalError("field %q does not exist for owner %q", column, owner.Alias())
	}
	return f, nil
}
