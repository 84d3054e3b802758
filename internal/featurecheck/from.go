package featurecheck

import (
	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/schema"
)

func (c *Checker) checkFrom(q *aql.Query) error {
	current := q.From
	switch v := current.(type) {
	case nil:
		return aql.NewNotImplementedError("FROM must be specified")
	case *aql.ContainmentClass:
		if v.Type == schema.TypeEHR {
			current = v.Contains
		}
	case *aql.ContainmentVersion:
	default:
		return aql.NewNotImplementedError("AND/OR/NOT only allowed after CONTAINS")
	}

	if err := c.containmentSupported(current, rm.RootNone, true); err != nil {
		return err
	}

	for _, r := range aql.Roots(q.From) {
		if err := c.containmentPredicatesSupported(r); err != nil {
			return err
		}
	}
	return nil
}

// containmentSupported checks c below a parent of the given structure
// root. versionAllowed is set directly below EHR and at the top level.
func (c *Checker) containmentSupported(cont aql.Containment, parent rm.StructureRoot, versionAllowed bool) error {
	switch v := cont.(type) {
	case nil:
		return nil
	case *aql.ContainmentClass:
		root, err := c.structureContainsSupported(v, parent)
		if err != nil {
			return err
		}
		if root == rm.RootNone {
			root = parent
		}
		if err := c.containmentSupported(v.Contains, root, false); err != nil {
			return err
		}
		return containmentStructureSupported(parent, v, root)
	case *aql.ContainmentVersion:
		if !versionAllowed {
			return aql.NewIllegalError("VERSION %s is only allowed directly after EHR or as the first FROM entry", v.Identifier)
		}
		return c.versionContainmentSupported(v)
	case *aql.ContainmentSet:
		for _, val := range v.Values {
			if err := c.containmentSupported(val, parent, versionAllowed); err != nil {
				return err
			}
		}
		return nil
	case *aql.ContainmentNot:
		return aql.NewNotImplementedError("NOT CONTAINS")
	default:
		return aql.NewIllegalError("Unknown containment type: %T", cont)
	}
}

func (c *Checker) versionContainmentSupported(v *aql.ContainmentVersion) error {
	switch v.Contains.(type) {
	case nil:
		return aql.NewIllegalError("VERSION containment must be followed by another CONTAINS expression")
	case *aql.ContainmentVersion:
		return aql.NewIllegalError("VERSION cannot contain another VERSION")
	case *aql.ContainmentSet, *aql.ContainmentNot:
		return aql.NewNotImplementedError("AND/OR/NOT operator as next containment after VERSION")
	}
	return c.containmentSupported(v.Contains, rm.RootNone, false)
}

// structureContainsSupported resolves the structure types a class
// containment stands for and returns their common root, if any.
func (c *Checker) structureContainsSupported(cc *aql.ContainmentClass, parent rm.StructureRoot) (rm.StructureRoot, error) {
	var types []*rm.StructureType
	if s, ok := rm.Structure(cc.Type); ok {
		types = []*rm.StructureType{s}
	} else if a, ok := c.model().Ancestor(cc.Type); ok {
		if parent == rm.RootNone && a.Root == rm.RootNone {
			return "", aql.NewIllegalError("It is unclear if %s targets a COMPOSITION or EHR_STATUS", cc.Type)
		}
		if len(a.NonStructureDescendants) > 0 {
			return "", aql.NewNotImplementedError("CONTAINS %s: abstract type with non structure descendants (%v) not yet supported", cc.Type, a.NonStructureDescendants)
		}
		types = a.Descendants
	} else {
		return "", aql.NewIllegalError("Type %s is not supported in FROM, only: EHR, %s", cc.Type, c.model().ContainsTypeList())
	}

	for _, t := range types {
		if !t.Entry {
			return "", aql.NewNotImplementedError("CONTAINS %s is currently not supported", cc.Type)
		}
	}
	if parent == rm.RootNone {
		for _, t := range types {
			if t.Root == rm.RootNone {
				return "", aql.NewIllegalError("It is unclear if %s targets a COMPOSITION or EHR_STATUS", cc.Type)
			}
		}
	}

	hasFolder, hasFolderOrComposition := false, false
	for _, t := range types {
		hasFolder = hasFolder || t.Name == "FOLDER"
		hasFolderOrComposition = hasFolderOrComposition || t.Name == "FOLDER" || t.Name == "COMPOSITION"
	}
	if c.FolderEnabled {
		if parent == rm.RootFolder && !hasFolderOrComposition {
			return "", aql.NewNotImplementedError("FOLDER CONTAINS %s is currently not supported", cc.Type)
		}
	} else if hasFolder {
		return "", aql.NewNotImplementedError("CONTAINS %s is an experimental feature and currently disabled.", cc.Type)
	}

	root := types[0].Root
	for _, t := range types[1:] {
		if t.Root != root {
			return rm.RootNone, nil
		}
	}
	return root, nil
}

func containmentStructureSupported(parent rm.StructureRoot, cc *aql.ContainmentClass, structure rm.StructureRoot) error {
	var ok bool
	switch parent {
	case rm.RootNone:
		ok = structure != rm.RootNone
	case rm.RootFolder:
		ok = structure == rm.RootFolder || structure == rm.RootComposition
	default:
		ok = parent == structure
	}
	if ok {
		return nil
	}
	parentName := string(parent)
	if parent == rm.RootNone {
		parentName = schema.TypeEHR
	}
	return aql.NewIllegalError("Structure %s cannot CONTAIN %s (of structure %s)", parentName, cc.Type, structure)
}

func (c *Checker) containmentPredicatesSupported(r aql.Root) error {
	if v, ok := r.(*aql.ContainmentVersion); ok {
		if v.PredicateKind != aql.VersionLatest && v.PredicateKind != aql.VersionNone {
			return aql.NewNotImplementedError("Only VERSION queries without predicate or on LATEST_VERSION supported")
		}
	}
	for _, and := range r.RootPredicates() {
		for _, p := range and.Operands {
			ip := &aql.IdentifiedPath{Root: r, Path: p.Path}
			details, err := c.supportedPath(ip, false, clauseFromPredicate)
			if err != nil {
				return err
			}
			if p.Path.Equal(aql.ArchetypeNodeIDPath) && p.Operator != aql.PredEQ && p.Operator != aql.PredNEQ {
				return aql.NewNotImplementedError("Predicates on 'archetype_node_id' only support = and !=")
			}
			if err := c.operandSupported(details, p.Value); err != nil {
				return err
			}
		}
	}
	return nil
}
