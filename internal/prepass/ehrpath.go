package prepass

import (
	"regexp"
	"strconv"

	"github.com/roach88/aqlc/internal/aql"
)

var statusAliasPattern = regexp.MustCompile(`^s(\d*)$`)

// RewriteEHRPaths returns a copy of q in which every path e/ehr_status/...
// on an EHR containment is rebased onto an EHR_STATUS containment added
// below that EHR.
//
// Predicates on the ehr_status node move to the new containment, so all
// such paths of a query have to agree on them.
func RewriteEHRPaths(q *aql.Query) (*aql.Query, error) {
	out := q.Clone()

	var (
		ehr   *aql.ContainmentClass
		paths []*aql.IdentifiedPath
	)
	for _, use := range out.IdentifiedPaths() {
		ip := use.Path
		root, ok := ip.Root.(*aql.ContainmentClass)
		if !ok || root.Type != "EHR" || ip.Path == nil || ip.Path.Len() == 0 {
			continue
		}
		if ip.Path.Nodes[0].Attribute != "ehr_status" {
			continue
		}
		if ehr != nil && ehr != root {
			return nil, aql.NewNotImplementedError("Multiple EHR in FROM are not supported")
		}
		ehr = root
		paths = append(paths, ip)
	}
	if ehr == nil {
		return out, nil
	}

	var predicates []aql.AndPredicate
	for i, ip := range paths {
		if len(ip.RootPredicate) > 0 {
			return nil, aql.NewNotImplementedError("Root predicates for EHR/ehr_status are not supported")
		}
		first := ip.Path.Nodes[0].Predicates
		if i == 0 {
			predicates = first
			continue
		}
		if renderPredicates(first) != renderPredicates(predicates) {
			return nil, aql.NewNotImplementedError("Specifying different predicates for EHR/ehr_status is not supported")
		}
	}

	status := &aql.ContainmentClass{
		Type:       "EHR_STATUS",
		Identifier: nextStatusAlias(out.From),
		Predicates: aql.ClonePredicates(predicates),
	}
	switch child := ehr.Contains.(type) {
	case nil:
		ehr.Contains = status
	case *aql.ContainmentSet:
		if child.Operator == aql.SetAnd {
			child.Values = append([]aql.Containment{status}, child.Values...)
			break
		}
		ehr.Contains = &aql.ContainmentSet{Operator: aql.SetAnd, Values: []aql.Containment{status, child}}
	default:
		ehr.Contains = &aql.ContainmentSet{Operator: aql.SetAnd, Values: []aql.Containment{status, child}}
	}

	for _, ip := range paths {
		ip.Root = status
		ip.Path = ip.Path.Sub(1, ip.Path.Len())
	}
	return out, nil
}

// nextStatusAlias picks "s", or "s<n+1>" when aliases s, s1 .. sn exist.
func nextStatusAlias(from aql.Containment) string {
	highest := -1
	for _, r := range aql.Roots(from) {
		m := statusAliasPattern.FindStringSubmatch(r.RootIdentifier())
		if m == nil {
			continue
		}
		n := 0
		if m[1] != "" {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			n = v
		}
		highest = max(highest, n)
	}
	if highest < 0 {
		return "s"
	}
	return "s" + strconv.Itoa(highest+1)
}

func renderPredicates(ors []aql.AndPredicate) string {
	p := &aql.ObjectPath{Nodes: []aql.PathNode{{Attribute: "x", Predicates: ors}}}
	return p.String()
}
