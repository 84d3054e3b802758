package asl

import (
	"context"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/knowledge"
	"github.com/roach88/aqlc/internal/pathanalysis"
	"github.com/roach88/aqlc/internal/querywrapper"
	"github.com/roach88/aqlc/internal/rm"
)

// Builder turns a wrapped query into the algebra.
//
// Builder is safe for concurrent use; every Build works on its own state.
type Builder struct {
	// Model defaults to rm.Default().
	Model *rm.Model
	// Knowledge resolves template ids and prunes by template. Nil disables
	// pruning; template ids then resolve to knowledge.DeriveUUID.
	Knowledge knowledge.Lookup
	// SystemID answers system_id paths.
	SystemID string
}

// ownerProvider pairs the structure query a field originates from with the
// query exposing it at the level it is joined.
type ownerProvider struct {
	owner    *StructureQuery
	provider Query
}

// build holds the state of one Build call.
type build struct {
	*Builder
	ctx     context.Context
	model   *rm.Model
	w       *querywrapper.QueryWrapper
	aliases *AliasProvider
	root    *RootQuery

	owners map[*querywrapper.ContainsWrapper]ownerProvider
	// fields maps path keys to the field answering the path at root level.
	fields map[string]Field
	// filters holds the per path predicate conditions of structure nodes
	// whose paths disagree on predicates.
	filters map[*StructureQuery]map[string]Condition
	// filtersFor lists the structure queries holding filters of a path.
	filtersFor map[string][]*StructureQuery
}

// Build creates the algebra for w. Unresolvable paths are internal errors.
func (b *Builder) Build(ctx context.Context, w *querywrapper.QueryWrapper) (*RootQuery, error) {
	m := b.Model
	if m == nil {
		m = rm.Default()
	}
	st := &build{
		Builder:    b,
		ctx:        ctx,
		model:      m,
		w:          w,
		aliases:    NewAliasProvider(),
		root:       NewRootQuery(),
		owners:     make(map[*querywrapper.ContainsWrapper]ownerProvider),
		fields:     make(map[string]Field),
		filters:    make(map[*StructureQuery]map[string]Condition),
		filtersFor: make(map[string][]*StructureQuery),
	}

	if err := st.addFrom(); err != nil {
		return nil, err
	}
	if err := st.pruneByTemplates(); err != nil {
		return nil, err
	}
	if err := st.addPaths(); err != nil {
		return nil, err
	}
	if err := st.addSelect(); err != nil {
		return nil, err
	}
	if w.Where != nil {
		cond, err := st.where(w.Where)
		if err != nil {
			return nil, err
		}
		st.root.AddCondition(cond)
	}
	st.root.Limit, st.root.Offset = w.Limit, w.Offset

	Cleanup(st.root)
	st.root.AliasCount = st.aliases.Count()
	return st.root, nil
}

// field returns the root level field of an identified path.
func (st *build) field(ip *aql.IdentifiedPath) (Field, error) {
	f, ok := st.fields[pathanalysis.PathKey(ip)]
	if !ok {
		return nil, aql.NewInternalError("unknown field: %s", ip)
	}
	return f, nil
}

// comparisons returns the leaf comparisons of a WHERE tree.
func comparisons(c querywrapper.Condition) []*querywrapper.ComparisonCondition {
	switch v := c.(type) {
	case *querywrapper.ComparisonCondition:
		return []*querywrapper.ComparisonCondition{v}
	case *querywrapper.LogicalCondition:
		var out []*querywrapper.ComparisonCondition
		for _, o := range v.Values {
			out = append(out, comparisons(o)...)
		}
		return out
	default:
		return nil
	}
}
