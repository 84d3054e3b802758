package pathanalysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/rm"
)

func firstSelectPath(t *testing.T, q *aql.Query) *aql.IdentifiedPath {
	t.Helper()
	ip, ok := q.Select.Items[0].Expr.(*aql.IdentifiedPath)
	require.True(t, ok)
	return ip
}

func analyze(t *testing.T, query string) (*Node, map[*Node]map[string]AttInfo) {
	t.Helper()
	m := rm.Default()
	ip := firstSelectPath(t, aql.MustParse(query))
	root, err := AnalyzeTypes(m, ip.Root.RootType(), ip.RootPredicate, ip.Root.RootPredicates(), ip.Path)
	require.NoError(t, err)
	return root, AttributeInfos(m, root)
}

func descend(t *testing.T, n *Node, attrs ...string) *Node {
	t.Helper()
	for _, a := range attrs {
		child, ok := n.Attribute(a)
		require.True(t, ok, "missing attribute %s", a)
		n = child
	}
	return n
}

func TestAnalyzeTypes(t *testing.T) {
	root, infos := analyze(t, "SELECT o/data/events/time FROM OBSERVATION o")

	assert.Equal(t, []string{"OBSERVATION"}, root.CandidateTypes())
	data := descend(t, root, "data")
	assert.Equal(t, []string{"HISTORY"}, data.CandidateTypes())
	events := descend(t, data, "events")
	assert.Equal(t, []string{"INTERVAL_EVENT", "POINT_EVENT"}, events.CandidateTypes())
	assert.Equal(t, []string{"DV_DATE_TIME"}, descend(t, events, "time").CandidateTypes())

	assert.True(t, infos[data]["events"].Multiple)
	assert.False(t, infos[root]["data"].Multiple)
	assert.Equal(t, []string{"DV_DATE_TIME"}, infos[events]["time"].TargetTypes)
}

func TestAnalyzeTypes_ArchetypeConstrainsChild(t *testing.T) {
	root, _ := analyze(t, "SELECT c/content[openEHR-EHR-OBSERVATION.blood_pressure.v2]/data FROM COMPOSITION c")
	content := descend(t, root, "content")
	assert.Equal(t, []string{"OBSERVATION"}, content.CandidateTypes())
	assert.Equal(t, []string{"HISTORY"}, descend(t, content, "data").CandidateTypes())
}

func TestAnalyzeTypes_AbstractRoot(t *testing.T) {
	root, _ := analyze(t, "SELECT e/data/events FROM ENTRY e")
	// only OBSERVATION has a data attribute holding events
	assert.Equal(t, []string{"OBSERVATION"}, root.CandidateTypes())
}

func TestAnalyzeTypes_PredicateAttributes(t *testing.T) {
	root, _ := analyze(t, "SELECT o/data[name/value='History']/origin FROM OBSERVATION o")
	data := descend(t, root, "data")
	name := descend(t, data, "name")
	assert.Contains(t, name.CandidateTypes(), "DV_TEXT")
	assert.Equal(t, []string{"STRING"}, descend(t, name, "value").CandidateTypes())
}

func TestAnalyzeTypes_Invalid(t *testing.T) {
	root, _ := analyze(t, "SELECT o/data/items FROM OBSERVATION o")
	assert.Empty(t, root.CandidateTypes())

	m := rm.Default()
	ip := firstSelectPath(t, aql.MustParse("SELECT o/data/no_such_attribute FROM OBSERVATION o"))
	_, err := AnalyzeTypes(m, "OBSERVATION", nil, nil, ip.Path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown attribute: no_such_attribute")
}

func TestMergeCategories(t *testing.T) {
	tests := []struct {
		a, b    NodeCategory
		want    NodeCategory
		wantErr bool
	}{
		{CategoryStructure, CategoryStructure, CategoryStructure, false},
		{CategoryRMType, CategoryFoundation, CategoryFoundationExtended, false},
		{CategoryFoundation, CategoryRMType, CategoryFoundationExtended, false},
		{CategoryFoundationExtended, CategoryRMType, CategoryFoundationExtended, false},
		{CategoryStructure, CategoryRMType, "", true},
		{CategoryStructureIntermediate, CategoryFoundation, "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.a)+"+"+string(tt.b), func(t *testing.T) {
			got, err := MergeCategories(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func childAttrs(n *CohesionNode) []string {
	var out []string
	for _, c := range n.Children {
		out = append(out, (&aql.ObjectPath{Nodes: []aql.PathNode{c.Attribute}}).String())
	}
	return out
}

func onlyTree(t *testing.T, q *aql.Query) *CohesionNode {
	t.Helper()
	trees := AnalyzeCohesion(q)
	require.Len(t, trees, 1)
	for _, n := range trees {
		return n
	}
	return nil
}

func TestAnalyzeCohesion(t *testing.T) {
	tests := []struct {
		name  string
		query string
		// children of the first path node below the root
		level0 []string
		level1 []string
	}{
		{
			name:   "node ids split siblings",
			query:  "SELECT o/data[at0001]/events[at0002]/time, o/data[at0001]/events[at0003]/time FROM OBSERVATION o",
			level0: []string{"data[at0001]"},
			level1: []string{"events[at0002]", "events[at0003]"},
		},
		{
			name:   "attribute without predicate is a base attribute",
			query:  "SELECT o/data/origin, o/data[at0001]/events FROM OBSERVATION o",
			level0: []string{"data"},
			level1: []string{"origin", "events"},
		},
		{
			name:   "name filters archetype",
			query:  "SELECT c/content[openEHR-EHR-OBSERVATION.bp.v2, 'BP']/data, c/content[openEHR-EHR-OBSERVATION.bp.v2]/language FROM COMPOSITION c",
			level0: []string{"content[openEHR-EHR-OBSERVATION.bp.v2]"},
			level1: []string{"data", "language"},
		},
		{
			name:   "names alone split siblings",
			query:  "SELECT o/data[name/value='a']/origin, o/data[name/value='b']/origin FROM OBSERVATION o",
			level0: []string{"data[name/value='a']", "data[name/value='b']"},
		},
		{
			name:   "node id and name merge to base",
			query:  "SELECT o/data[at0001]/origin, o/data[name/value='b']/origin FROM OBSERVATION o",
			level0: []string{"data"},
			level1: []string{"origin"},
		},
		{
			name:   "non identifying predicates only filter",
			query:  "SELECT o/data[origin/value>'2020-01-01']/origin, o/data/events FROM OBSERVATION o",
			level0: []string{"data"},
			level1: []string{"origin", "events"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := onlyTree(t, aql.MustParse(tt.query))
			assert.True(t, root.Root)
			assert.Equal(t, tt.level0, childAttrs(root))
			if tt.level1 != nil {
				assert.Equal(t, tt.level1, childAttrs(root.Children[0]))
			}
		})
	}
}

func TestAnalyzeCohesion_EndingHere(t *testing.T) {
	q := aql.MustParse("SELECT o, o/data/origin FROM OBSERVATION o WHERE o/data/origin/value > '2020-01-01'")
	root := onlyTree(t, q)
	require.Len(t, root.EndingHere, 1)
	assert.Equal(t, "o", root.EndingHere[0].String())

	data := root.Children[0]
	assert.Empty(t, data.EndingHere)
	origin := data.Children[0]
	require.Len(t, origin.EndingHere, 1)
	assert.Equal(t, "o/data/origin", origin.EndingHere[0].String())
	assert.Equal(t, 1, origin.Level())
	assert.Equal(t, "data/origin", (&aql.ObjectPath{Nodes: origin.PathFromRoot()}).String())
}

func newInfo(t *testing.T, query string) (*PathInfo, *CohesionNode) {
	t.Helper()
	q := aql.MustParse(query)
	root := onlyTree(t, q)
	pi, err := NewPathInfo(rm.Default(), root, ClausesByPath(q))
	require.NoError(t, err)
	return pi, root
}

func TestPathInfo(t *testing.T) {
	pi, root := newInfo(t, "SELECT o/data/events/time FROM OBSERVATION o ORDER BY o/data/origin")

	data := root.Children[0]
	events := data.Children[0]
	timeNode := events.Children[0]
	origin := data.Children[1]

	mode := func(n *CohesionNode) JoinMode {
		m, err := pi.JoinMode(n)
		require.NoError(t, err)
		return m
	}

	assert.Equal(t, JoinRoot, mode(root))
	assert.Equal(t, JoinData, mode(data))
	assert.Equal(t, JoinData, mode(events))
	assert.Equal(t, JoinData, mode(timeNode))

	assert.Equal(t, CategoryStructure, pi.Category(data))
	assert.Equal(t, CategoryStructure, pi.Category(events))
	assert.Equal(t, CategoryRMType, pi.Category(timeNode))
	assert.True(t, pi.IsMultiple(events))
	assert.False(t, pi.IsMultiple(timeNode))
	assert.Equal(t, []string{"DV_DATE_TIME"}, pi.DvOrderedTypes(timeNode))
	assert.Equal(t, []string{"INTERVAL_EVENT", "POINT_EVENT"}, pi.TargetTypes(events))

	assert.True(t, pi.UsedInSelect(timeNode))
	assert.False(t, pi.UsedInWhereOrOrderBy(timeNode))
	assert.True(t, pi.UsedInWhereOrOrderBy(origin))
	assert.False(t, pi.UsedInSelect(events))
	assert.Len(t, pi.PathToNode(timeNode), 3)
}

func TestPathInfo_InternalJoinModes(t *testing.T) {
	pi, root := newInfo(t, "SELECT o/data/events, o/data/summary FROM OBSERVATION o")
	data := root.Children[0]
	m, err := pi.JoinMode(data)
	require.NoError(t, err)
	assert.Equal(t, JoinInternalFork, m)

	pi, root = newInfo(t, "SELECT o/data/events FROM OBSERVATION o")
	m, err = pi.JoinMode(root.Children[0])
	require.NoError(t, err)
	assert.Equal(t, JoinInternalSingleChild, m)
}

func TestPathInfo_InvalidPath(t *testing.T) {
	q := aql.MustParse("SELECT o/data/items FROM OBSERVATION o")
	_, err := NewPathInfo(rm.Default(), onlyTree(t, q), ClausesByPath(q))
	require.Error(t, err)
	assert.True(t, aql.IsInternal(err))
}
