package featurecheck

import (
	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/schema"
)

// timeColumns may be aggregated with MIN and MAX.
var timeColumns = []schema.ExtractedColumn{
	schema.OvTimeCommitted,
	schema.OvTimeCommittedDv,
	schema.EhrTimeCreated,
	schema.EhrTimeCreatedDv,
}

func (c *Checker) checkSelect(q *aql.Query) error {
	for _, item := range q.Select.Items {
		var err error
		switch v := item.Expr.(type) {
		case *aql.IdentifiedPath:
			_, err = c.supportedPath(v, true, clauseSelect)
		case *aql.AggregateFunction:
			err = c.aggregateSupported(v)
		case aql.Primitive:
		case *aql.Function:
			err = aql.NewNotImplementedError("%s is not supported in SELECT", v.Name)
		default:
			err = aql.NewNotImplementedError("%T is not supported in SELECT", v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) aggregateSupported(af *aql.AggregateFunction) error {
	ip := af.Path
	if ip == nil {
		if af.Name != aql.AggCount {
			return aql.NewIllegalError("Aggregate function %s requires an identified path argument.", af.Name)
		}
		if af.Distinct {
			return aql.NewIllegalError("COUNT(DISTINCT) requires an identified path argument")
		}
		return nil
	}

	details, err := c.supportedPath(ip, true, clauseSelect)
	if err != nil {
		return err
	}
	if af.Name == aql.AggCount {
		return nil
	}

	m := c.model()
	alias, path := ip.Root.RootIdentifier(), ip.Path
	if details.hasColumn && !details.is(timeColumns...) {
		return aql.NewNotImplementedError("SELECT: Aggregate function %s is not supported for path %s/%s (COUNT only)", af.Name, alias, path)
	}
	switch af.Name {
	case aql.AggAvg, aql.AggSum:
		switch {
		case details.is(timeColumns...):
			return aql.NewNotImplementedError("SELECT: Aggregate function %s(%s/%s) not applicable to the given path", af.Name, alias, path)
		case details.targetsDvOrdered(m):
			return aql.NewNotImplementedError("SELECT: Aggregate function %s(%s/%s) not applicable to paths targeting subtypes of DV_ORDERED", af.Name, alias, path)
		case !details.targetsPrimitive(m):
			return aql.NewNotImplementedError("SELECT: Aggregate function %s(%s/%s) only applicable to paths targeting primitive types", af.Name, alias, path)
		}
	case aql.AggMin, aql.AggMax:
		if !details.targetsPrimitive(m) && !details.targetsDvOrdered(m) {
			return aql.NewNotImplementedError("SELECT: Aggregate function %s(%s/%s) only applicable to paths targeting primitive types or subtypes of DV_ORDERED", af.Name, alias, path)
		}
	}
	return nil
}
