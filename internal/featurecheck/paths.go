package featurecheck

import (
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/pathanalysis"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/schema"
)

// clause names the part of the query a path is checked for.
type clause string

const (
	clauseSelect        clause = "SELECT"
	clauseWhere         clause = "WHERE"
	clauseOrderBy       clause = "ORDER_BY"
	clauseFromPredicate clause = "FROM_PREDICATE"
)

var objectVersionIDPattern = regexp.MustCompile(`^([a-fA-F0-9-]{36})(::([^:]*)::([1-9]\d*))?$`)

type versionPath struct {
	attrs   []string
	clauses []clause
}

// versionPaths are the ORIGINAL_VERSION attributes that can be queried.
var versionPaths = func() []versionPath {
	swo := []clause{clauseSelect, clauseWhere, clauseOrderBy}
	sw := []clause{clauseSelect, clauseWhere}
	s := []clause{clauseSelect}
	entries := []struct {
		path    string
		clauses []clause
	}{
		{"uid/value", swo},
		{"commit_audit/time_committed", swo},
		{"commit_audit/time_committed/value", swo},
		{"commit_audit/system_id", sw},
		{"commit_audit/description", s},
		{"commit_audit/description/value", swo},
		{"commit_audit/change_type", s},
		{"commit_audit/change_type/value", swo},
		{"commit_audit/change_type/defining_code/code_string", swo},
		{"commit_audit/change_type/defining_code/preferred_term", swo},
		{"commit_audit/change_type/defining_code/terminology_id/value", sw},
		{"contribution/id/value", swo},
	}
	out := make([]versionPath, len(entries))
	for i, e := range entries {
		out[i] = versionPath{attrs: strings.Split(e.path, "/"), clauses: e.clauses}
	}
	return out
}()

func versionPathSupported(attrs []string, c clause) bool {
	for _, vp := range versionPaths {
		if slices.Contains(vp.clauses, c) && slices.Equal(vp.attrs, attrs) {
			return true
		}
	}
	return false
}

// pathDetails is what a supported path resolves to: an extracted column
// or a set of RM (or primitive) target types.
type pathDetails struct {
	column      schema.ExtractedColumn
	hasColumn   bool
	targetTypes []string
}

func (d pathDetails) targetsDvOrdered(m *rm.Model) bool {
	return slices.ContainsFunc(d.targetTypes, m.IsDvOrdered)
}

// targetsPrimitive reports whether any target is not a model type, such
// as STRING or the plain string of an extracted EHR column.
func (d pathDetails) targetsPrimitive(m *rm.Model) bool {
	return slices.ContainsFunc(d.targetTypes, func(t string) bool {
		_, ok := m.Type(t)
		return !ok
	})
}

func (d pathDetails) is(cols ...schema.ExtractedColumn) bool {
	return d.hasColumn && slices.Contains(cols, d.column)
}

func containmentType(r aql.Root) string {
	if _, ok := r.(*aql.ContainmentVersion); ok {
		return schema.TypeOriginalVersion
	}
	return r.RootType()
}

func (c *Checker) containmentTargetTypes(t string) []string {
	if a, ok := c.model().Ancestor(t); ok {
		return a.DescendantNames()
	}
	return []string{t}
}

func (c *Checker) supportedPath(ip *aql.IdentifiedPath, allowEmpty bool, cl clause) (pathDetails, error) {
	m := c.model()
	path := ip.Path
	ctype := containmentType(ip.Root)
	isVersion := ctype == schema.TypeOriginalVersion
	targets := c.containmentTargetTypes(ctype)

	if len(ip.RootPredicate) > 0 {
		for _, t := range targets {
			if err := c.pathPredicatesSupported(path, t, ip.RootPredicate); err != nil {
				return pathDetails{}, err
			}
		}
	}

	if path.Len() == 0 {
		switch {
		case !allowEmpty:
			return pathDetails{}, aql.NewNotImplementedError("%s: identified path for type %s is missing", cl, ctype)
		case isVersion:
			return pathDetails{}, aql.NewNotImplementedError("selecting the full VERSION object (%s)", ip.Root.RootIdentifier())
		case ctype == schema.TypeEHR:
			return pathDetails{}, aql.NewNotImplementedError("selecting the full EHR object (%s)", ip.Root.RootIdentifier())
		}
		return pathDetails{targetTypes: targets}, nil
	}

	if ctype == schema.TypeEHR {
		if len(ip.RootPredicate) > 0 {
			return pathDetails{}, aql.NewNotImplementedError("%s: root predicate for path %s", cl, ip)
		}
		ec, ok := schema.FindExtractedColumn(ctype, path)
		if !ok || (ec == schema.EhrSystemIDDv && cl != clauseSelect) {
			return pathDetails{}, aql.NewNotImplementedError("%s: identified path '%s' for type %s not supported", cl, path, ctype)
		}
		return pathDetails{column: ec, hasColumn: true, targetTypes: []string{"String"}}, nil
	}

	// An invalid path is illegal before any VERSION restriction applies.
	analyzed, err := pathanalysis.AnalyzeTypes(m, ctype, ip.RootPredicate, ip.Root.RootPredicates(), path)
	if err != nil || len(analyzed.CandidateTypes()) == 0 {
		return pathDetails{}, aql.NewIllegalError("%s is not a valid RM path", ip)
	}
	if isVersion && !versionPathSupported(path.Attributes(), cl) {
		return pathDetails{}, aql.NewNotImplementedError("%s: VERSION path %s/%s is not supported", cl, ip.Root.RootIdentifier(), path)
	}
	infos := pathanalysis.AttributeInfos(m, analyzed)

	var targetTypes []string
	parentTargets := targets
	for i, node := range path.Nodes {
		parent := analyzed
		analyzed, _ = parent.Attribute(node.Attribute)
		targetTypes = infos[parent][node.Attribute].TargetTypes
		if isVersion && node.Attribute == "commit_audit" {
			targetTypes = []string{schema.TypeAuditDetails}
		}

		cats := analyzed.Categories(m)
		if slices.Contains(cats, pathanalysis.CategoryStructureIntermediate) {
			return pathDetails{}, aql.NewNotImplementedError("%s: path %s contains STRUCTURE_INTERMEDIATE attribute %s", cl, path, node.Attribute)
		}

		if cl == clauseWhere && i == path.Len()-1 && !slices.ContainsFunc(targetTypes, func(t string) bool {
			_, known := m.Type(t)
			return !known || m.IsDvOrdered(t)
		}) {
			return pathDetails{}, aql.NewNotImplementedError("%s: path %s only targets types that are not derived from DV_ORDERED and not primitive", cl, path)
		}

		if len(cats) != 1 || cats[0] != pathanalysis.CategoryStructure {
			if slices.Contains(parentTargets, schema.TypeFolder) && node.Attribute == "items" {
				return pathDetails{}, aql.NewNotImplementedError("Path FOLDER/items")
			}
			sub := path.Sub(i, path.Len())
			if ec, ok := extractedColumnFor(parentTargets, sub); ok {
				for _, rest := range sub.Nodes[1:] {
					parent = analyzed
					analyzed, _ = parent.Attribute(rest.Attribute)
					targetTypes = infos[parent][rest.Attribute].TargetTypes
				}
				return pathDetails{column: ec, hasColumn: true, targetTypes: targetTypes}, nil
			}
			if len(node.Predicates) > 0 {
				return pathDetails{}, aql.NewNotImplementedError("%s: path %s contains a non-structure attribute (%s) with at least one predicate", cl, path, node.Attribute)
			}
		}

		for _, t := range targetTypes {
			if err := c.pathPredicatesSupported(path, t, node.Predicates); err != nil {
				return pathDetails{}, err
			}
		}
		parentTargets = targetTypes
	}
	return pathDetails{targetTypes: targetTypes}, nil
}

// extractedColumnFor finds a column answering sub for every parent type.
func extractedColumnFor(parentTargets []string, sub *aql.ObjectPath) (schema.ExtractedColumn, bool) {
	if len(parentTargets) == 0 {
		return "", false
	}
	first := slices.Min(parentTargets)
	ec, ok := schema.FindExtractedColumn(first, sub)
	if !ok {
		return "", false
	}
	for _, t := range parentTargets {
		if !slices.Contains(ec.AllowedTypes(), t) {
			return "", false
		}
	}
	return ec, true
}

func (c *Checker) pathPredicatesSupported(path *aql.ObjectPath, nodeType string, ors []aql.AndPredicate) error {
	for _, and := range ors {
		for _, p := range and.Operands {
			ec, ok := schema.FindExtractedColumn(nodeType, p.Path)
			if !ok {
				return aql.NewNotImplementedError("Path predicate %s in path %s contains unsupported path %s", renderPredicates(ors), path, p.Path)
			}
			if ec == schema.ArchetypeNodeID && p.Operator != aql.PredEQ && p.Operator != aql.PredNEQ {
				return aql.NewNotImplementedError("Predicates on 'archetype_node_id' only support = and !=")
			}
			details := pathDetails{column: ec, hasColumn: true, targetTypes: []string{nodeType}}
			if err := c.operandSupported(details, p.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderPredicates(ors []aql.AndPredicate) string {
	rendered := (&aql.ObjectPath{Nodes: []aql.PathNode{{Predicates: ors}}}).String()
	return strings.TrimPrefix(rendered, "/")
}

func (c *Checker) operandSupported(details pathDetails, operand aql.Operand) error {
	prim, ok := operand.(aql.Primitive)
	if !ok {
		return aql.NewNotImplementedError("Only primitive operands are supported")
	}
	if _, isNull := prim.(aql.Null); isNull {
		return aql.NewNotImplementedError("NULL is not supported")
	}
	switch {
	case details.is(schema.VoID):
		s, ok := prim.(aql.String)
		if !ok {
			return aql.NewIllegalError("/uid/value comparisons require a string operand")
		}
		return c.objectVersionIDSupported(string(s))
	case details.is(schema.ArchetypeNodeID):
		s, ok := prim.(aql.String)
		if !ok {
			return aql.NewIllegalError("%s comparisons require a string operand", aql.ArchetypeNodeIDPath)
		}
		return archetypeNodeIDSupported(string(s))
	}
	return nil
}

// objectVersionIDSupported accepts a plain UID or uid::system::version
// with an empty or matching system id.
func (c *Checker) objectVersionIDSupported(value string) error {
	match := objectVersionIDPattern.FindStringSubmatch(value)
	if match == nil {
		return aql.NewIllegalError("%s is not a valid OBJECT_VERSION_ID/UID", value)
	}
	if _, err := uuid.Parse(match[1]); err != nil {
		return aql.NewIllegalError("%s does not start with a valid UID", value)
	}
	if match[2] != "" && match[3] != "" && match[3] != c.SystemID {
		return aql.NewIllegalError("CREATING_SYSTEM_ID of %s does not match this server (%s)", value, c.SystemID)
	}
	return nil
}

func archetypeNodeIDSupported(value string) error {
	if !strings.HasPrefix(value, "openEHR-") {
		return nil
	}
	id, err := aql.ParseArchetypeID(value)
	if err != nil {
		return &aql.Error{Kind: aql.KindIllegal, Message: err.Error(), Err: err}
	}
	if !rm.IsStructure(id.RMEntity) {
		return aql.NewIllegalError("Archetype type %s is not supported", id.RMEntity)
	}
	return nil
}
