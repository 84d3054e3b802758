package featurecheck

import (
	"regexp"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/schema"
)

var archetypeLikePattern = regexp.MustCompile(`^openEHR-EHR-[A-Z]+\..*`)

func (c *Checker) checkWhere(q *aql.Query) error {
	var err error
	aql.WalkConditions(q.Where, func(cond aql.Condition) {
		if err != nil {
			return
		}
		switch v := cond.(type) {
		case *aql.ComparisonCondition:
			err = c.comparisonSupported(v)
		case *aql.LikeCondition:
			err = c.likeSupported(v)
		case *aql.MatchesCondition:
			err = c.matchesSupported(v)
		case *aql.ExistsCondition:
			err = aql.NewNotImplementedError("WHERE: EXISTS operator is not supported")
		default:
			err = aql.NewIllegalError("Unexpected condition type %T", cond)
		}
	})
	return err
}

func eqOrNeq(op aql.ComparisonOperator) bool {
	return op == aql.OpEQ || op == aql.OpNEQ
}

func (c *Checker) comparisonSupported(cond *aql.ComparisonCondition) error {
	ip, ok := cond.Left.(*aql.IdentifiedPath)
	if !ok {
		return aql.NewNotImplementedError("Functions are not supported in WHERE")
	}
	details, err := c.supportedPath(ip, false, clauseWhere)
	if err != nil {
		return err
	}
	switch {
	case ip.Path.Equal(aql.ArchetypeNodeIDPath) && !eqOrNeq(cond.Operator):
		return aql.NewNotImplementedError("Conditions on 'archetype_node_id' only support =,!=, LIKE and MATCHES")
	case ip.Path.Equal(schema.TemplateID.Path()) && !eqOrNeq(cond.Operator):
		return aql.NewNotImplementedError("Conditions on 'archetype_details/template_id/value' only support =,!= and MATCHES")
	case details.is(schema.OvTimeCommitted):
		return aql.NewNotImplementedError("Conditions on %s of VERSION", ip.Path)
	case details.is(schema.EhrTimeCreated):
		return aql.NewNotImplementedError("Conditions on %s of EHR", ip.Path)
	case details.is(schema.AdChangeTypeValue, schema.AdChangeTypeCode, schema.AdChangeTypeTerm) && !eqOrNeq(cond.Operator):
		return aql.NewNotImplementedError("Conditions on %s of VERSION only support =,!= and MATCHES", ip.Path)
	}
	return c.operandSupported(details, cond.Value)
}

func (c *Checker) matchesSupported(cond *aql.MatchesCondition) error {
	details, err := c.supportedPath(cond.Path, false, clauseWhere)
	if err != nil {
		return err
	}
	for _, v := range cond.Values {
		if err := c.operandSupported(details, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) likeSupported(cond *aql.LikeCondition) error {
	path := cond.Path.Path
	if _, err := c.supportedPath(cond.Path, false, clauseWhere); err != nil {
		return err
	}
	if path.Equal(schema.VoID.Path()) {
		return aql.NewNotImplementedError("LIKE on /uid/value is not supported")
	}
	prim, ok := cond.Value.(aql.Primitive)
	if !ok {
		return aql.NewNotImplementedError("Only primitive operands are supported")
	}
	s, ok := prim.(aql.String)
	if !ok {
		return aql.NewNotImplementedError("LIKE must use String values")
	}
	if path.Equal(aql.ArchetypeNodeIDPath) && !archetypeLikePattern.MatchString(string(s)) {
		return aql.NewNotImplementedError("LIKE on archetype_node_id has to start with 'openEHR-EHR-{RM-TYPE}.'")
	}
	if path.Equal(schema.TemplateID.Path()) {
		return aql.NewNotImplementedError("Conditions on 'archetype_details/template_id/value' only support =,!= and MATCHES")
	}
	return nil
}
