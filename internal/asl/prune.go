package asl

import (
	"slices"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/querywrapper"
	"github.com/roach88/aqlc/internal/schema"
)

// pruneByTemplates restricts every COMPOSITION containment to the templates
// using the archetypes required below it. Without such templates the query
// has no result.
func (st *build) pruneByTemplates() error {
	if st.Knowledge == nil {
		return nil
	}
	return st.pruneChain(st.w.Chain)
}

func (st *build) pruneChain(ch *querywrapper.ContainsChain) error {
	for i, cw := range ch.Chain {
		class := cw.RMWrapper()
		if class.Type() != "COMPOSITION" {
			continue
		}
		archetypes := requiredArchetypes(class)
		for _, below := range ch.Chain[i+1:] {
			archetypes = appendNew(archetypes, requiredArchetypes(below.RMWrapper())...)
		}
		if ch.SetOperation != nil && ch.SetOperation.Operator == aql.SetAnd {
			for _, o := range ch.SetOperation.Operands {
				archetypes = appendNew(archetypes, chainArchetypes(o)...)
			}
		}
		if len(archetypes) == 0 {
			continue
		}
		if err := st.restrictTemplates(st.owners[class].owner, archetypes); err != nil {
			return err
		}
	}
	if ch.SetOperation != nil {
		for _, o := range ch.SetOperation.Operands {
			if err := st.pruneChain(o); err != nil {
				return err
			}
		}
	}
	return nil
}

// chainArchetypes collects the archetypes every row of ch requires, not
// descending into OR.
func chainArchetypes(ch *querywrapper.ContainsChain) []string {
	var out []string
	for _, cw := range ch.Chain {
		out = appendNew(out, requiredArchetypes(cw.RMWrapper())...)
	}
	if ch.SetOperation != nil && ch.SetOperation.Operator == aql.SetAnd {
		for _, o := range ch.SetOperation.Operands {
			out = appendNew(out, chainArchetypes(o)...)
		}
	}
	return out
}

// requiredArchetypes returns the archetype id of a containment restricted
// by a single archetype_node_id equality.
func requiredArchetypes(cw *querywrapper.ContainsWrapper) []string {
	preds := cw.Predicates()
	if len(preds) != 1 {
		return nil
	}
	var out []string
	for _, cp := range preds[0].Operands {
		if cp.Operator != aql.PredEQ || !cp.Path.Equal(aql.ArchetypeNodeIDPath) {
			continue
		}
		s, ok := aql.StringValue(cp.Value)
		if !ok {
			continue
		}
		if _, err := aql.ParseArchetypeID(s); err == nil {
			out = appendNew(out, s)
		}
	}
	return out
}

func (st *build) restrictTemplates(sq *StructureQuery, archetypes []string) error {
	if sq == nil {
		return nil
	}
	templates, err := st.Knowledge.TemplatesContaining(st.ctx, archetypes)
	if err != nil {
		return aql.WrapInternalError(err, "template lookup failed")
	}
	if len(templates) == 0 {
		st.root.AddCondition(&FalseCondition{})
		return nil
	}
	f, ok := FindField(sq, sq, schema.ColTemplateID)
	if !ok {
		return nil
	}
	ids := make([]any, len(templates))
	for i, t := range templates {
		ids[i] = t.UUID
	}
	sq.Conditions = append(sq.Conditions, &FieldValueCondition{Field: f, Operator: OpIn, Values: ids})
	return nil
}

func appendNew(list []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}
