package featurecheck

import (
	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/schema"
)

func (c *Checker) checkOrderBy(q *aql.Query) error {
	for _, ob := range q.OrderBy {
		details, err := c.supportedPath(ob.Path, false, clauseOrderBy)
		if err != nil {
			return err
		}
		alias, path := ob.Path.Root.RootIdentifier(), ob.Path.Path
		switch {
		case details.is(schema.EhrTimeCreated, schema.OvTimeCommitted):
			return aql.NewNotImplementedError("ORDER BY: path %s/%s is not supported, use %s/%s", alias, path, alias, path.Sub(0, path.Len()-1))
		case details.hasColumn:
		case !details.targetsDvOrdered(c.model()):
			return aql.NewNotImplementedError("ORDER BY: path %s/%s only targets types that are not derived from DV_ORDERED", alias, path)
		}
	}
	return nil
}
