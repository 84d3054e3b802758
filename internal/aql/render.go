package aql

import (
	"strconv"
	"strings"
)

// Render returns the canonical AQL text of the query. Parse(q.Render())
// renders back to the same text.
func (q *Query) Render() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Select.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, item := range q.Select.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		writeColumnExpr(&b, item.Expr)
		if item.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(item.Alias)
		}
	}
	if q.From != nil {
		b.WriteString(" FROM ")
		writeContainment(&b, q.From)
	}
	if q.Where != nil {
		b.WriteString(" WHERE ")
		writeCondition(&b, q.Where, false)
	}
	if len(q.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, ob := range q.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			writeIdentifiedPath(&b, ob.Path)
			b.WriteByte(' ')
			b.WriteString(string(ob.Direction))
		}
	}
	if q.Limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatInt(*q.Limit, 10))
	}
	if q.Offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.FormatInt(*q.Offset, 10))
	}
	return b.String()
}

func (q *Query) String() string { return q.Render() }

// String renders the path without leading slash, e.g. data[at0001]/events.
func (p *ObjectPath) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	writeObjectPath(&b, p)
	return b.String()
}

func (p *IdentifiedPath) String() string {
	var b strings.Builder
	writeIdentifiedPath(&b, p)
	return b.String()
}

// RenderCondition renders a WHERE condition.
func RenderCondition(c Condition) string {
	var b strings.Builder
	writeCondition(&b, c, false)
	return b.String()
}

// RenderContainment renders a FROM containment.
func RenderContainment(c Containment) string {
	var b strings.Builder
	writeContainment(&b, c)
	return b.String()
}

// RenderOperand renders a primitive, parameter, path or function.
func RenderOperand(o Operand) string {
	var b strings.Builder
	writeOperand(&b, o)
	return b.String()
}

// RenderColumnExpr renders a SELECT column expression without its alias.
func RenderColumnExpr(e ColumnExpr) string {
	var b strings.Builder
	writeColumnExpr(&b, e)
	return b.String()
}

func writeColumnExpr(b *strings.Builder, e ColumnExpr) {
	switch v := e.(type) {
	case *IdentifiedPath:
		writeIdentifiedPath(b, v)
	case *AggregateFunction:
		b.WriteString(string(v.Name))
		b.WriteByte('(')
		if v.Distinct {
			b.WriteString("DISTINCT ")
		}
		if v.Path == nil {
			b.WriteByte('*')
		} else {
			writeIdentifiedPath(b, v.Path)
		}
		b.WriteByte(')')
	case *Function:
		writeFunction(b, v)
	case Primitive:
		writePrimitive(b, v)
	}
}

func writeFunction(b *strings.Builder, f *Function) {
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		writeOperand(b, a)
	}
	b.WriteByte(')')
}

func writeOperand(b *strings.Builder, o Operand) {
	switch v := o.(type) {
	case *Parameter:
		b.WriteByte('$')
		b.WriteString(v.Name)
	case *IdentifiedPath:
		writeIdentifiedPath(b, v)
	case *Function:
		writeFunction(b, v)
	case Primitive:
		writePrimitive(b, v)
	}
}

func writePrimitive(b *strings.Builder, p Primitive) {
	switch v := p.(type) {
	case String:
		writeQuoted(b, string(v))
	case Temporal:
		writeQuoted(b, string(v))
	case Long:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case Double:
		s := strconv.FormatFloat(float64(v), 'f', -1, 64)
		if !strings.ContainsAny(s, ".") {
			s += ".0"
		}
		b.WriteString(s)
	case Boolean:
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Null:
		b.WriteString("NULL")
	}
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			// escapes kept verbatim by the lexer (\* and \?) round-trip as is
			if i+1 < len(s) && (s[i+1] == '*' || s[i+1] == '?') {
				b.WriteByte('\\')
				b.WriteByte(s[i+1])
				i++
				continue
			}
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
}

func writeIdentifiedPath(b *strings.Builder, p *IdentifiedPath) {
	if p.Root != nil {
		b.WriteString(p.Root.RootIdentifier())
	}
	writePredicates(b, p.RootPredicate)
	if p.Path.Len() > 0 {
		b.WriteByte('/')
		writeObjectPath(b, p.Path)
	}
}

func writeObjectPath(b *strings.Builder, p *ObjectPath) {
	for i, n := range p.Nodes {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(n.Attribute)
		writePredicates(b, n.Predicates)
	}
}

func writePredicates(b *strings.Builder, ors []AndPredicate) {
	if len(ors) == 0 {
		return
	}
	b.WriteByte('[')
	for i, and := range ors {
		if i > 0 {
			b.WriteString(" OR ")
		}
		writeAndPredicate(b, and)
	}
	b.WriteByte(']')
}

func writeAndPredicate(b *strings.Builder, and AndPredicate) {
	ops := and.Operands
	written := 0
	if n := shorthandLen(ops); n > 0 {
		writeNodeID(b, ops[0].Value)
		if n == 2 {
			b.WriteString(", ")
			writeOperand(b, ops[1].Value)
		}
		ops = ops[n:]
		written++
	}
	for _, cmp := range ops {
		if written > 0 {
			b.WriteString(" AND ")
		}
		writeComparisonPredicate(b, cmp)
		written++
	}
}

// shorthandLen returns how many leading operands render as the
// [nodeId, 'name'] shorthand.
func shorthandLen(ops []ComparisonPredicate) int {
	if len(ops) == 0 || ops[0].Operator != PredEQ || !ops[0].Path.Equal(ArchetypeNodeIDPath) {
		return 0
	}
	switch v := ops[0].Value.(type) {
	case *Parameter:
	case String:
		if !isNodeIDOrArchetypeID(string(v)) {
			return 0
		}
	default:
		return 0
	}
	if len(ops) > 1 && ops[1].Operator == PredEQ && ops[1].Path.Equal(NameValuePath) {
		switch ops[1].Value.(type) {
		case String, *Parameter:
			return 2
		}
	}
	return 1
}

func isNodeIDOrArchetypeID(s string) bool {
	if IsNodeID(s) {
		return true
	}
	_, err := ParseArchetypeID(s)
	return err == nil
}

func writeNodeID(b *strings.Builder, v Operand) {
	if s, ok := v.(String); ok {
		b.WriteString(string(s))
		return
	}
	writeOperand(b, v)
}

func writeComparisonPredicate(b *strings.Builder, cmp ComparisonPredicate) {
	writeObjectPath(b, cmp.Path)
	b.WriteString(string(cmp.Operator))
	if s, ok := cmp.Value.(String); ok && cmp.Path.Equal(ArchetypeNodeIDPath) && isNodeIDOrArchetypeID(string(s)) {
		b.WriteString(string(s))
		return
	}
	writeOperand(b, cmp.Value)
}

func writeContainment(b *strings.Builder, c Containment) {
	switch v := c.(type) {
	case *ContainmentClass:
		b.WriteString(v.Type)
		if v.Identifier != "" {
			b.WriteByte(' ')
			b.WriteString(v.Identifier)
		}
		writePredicates(b, v.Predicates)
		writeContains(b, v.Contains)
	case *ContainmentVersion:
		b.WriteString("VERSION")
		if v.Identifier != "" {
			b.WriteByte(' ')
			b.WriteString(v.Identifier)
		}
		switch v.PredicateKind {
		case VersionLatest:
			b.WriteString("[LATEST_VERSION]")
		case VersionAll:
			b.WriteString("[ALL_VERSIONS]")
		case VersionStandard:
			b.WriteByte('[')
			writeComparisonPredicate(b, *v.Predicate)
			b.WriteByte(']')
		}
		writeContains(b, v.Contains)
	case *ContainmentSet:
		b.WriteByte('(')
		for i, val := range v.Values {
			if i > 0 {
				b.WriteByte(' ')
				b.WriteString(string(v.Operator))
				b.WriteByte(' ')
			}
			writeContainment(b, val)
		}
		b.WriteByte(')')
	case *ContainmentNot:
		writeContainment(b, v.Contains)
	}
}

func writeContains(b *strings.Builder, child Containment) {
	if child == nil {
		return
	}
	if n, ok := child.(*ContainmentNot); ok {
		b.WriteString(" NOT CONTAINS ")
		writeContainment(b, n.Contains)
		return
	}
	b.WriteString(" CONTAINS ")
	writeContainment(b, child)
}

func writeCondition(b *strings.Builder, c Condition, nested bool) {
	switch v := c.(type) {
	case *ComparisonCondition:
		writeOperand(b, v.Left)
		b.WriteByte(' ')
		b.WriteString(string(v.Operator))
		b.WriteByte(' ')
		writeOperand(b, v.Value)
	case *MatchesCondition:
		writeIdentifiedPath(b, v.Path)
		b.WriteString(" MATCHES {")
		for i, val := range v.Values {
			if i > 0 {
				b.WriteByte(',')
			}
			writeOperand(b, val)
		}
		b.WriteByte('}')
	case *LikeCondition:
		writeIdentifiedPath(b, v.Path)
		b.WriteString(" LIKE ")
		writeOperand(b, v.Value)
	case *ExistsCondition:
		b.WriteString("EXISTS ")
		writeIdentifiedPath(b, v.Path)
	case *NotCondition:
		b.WriteString("NOT ")
		writeCondition(b, v.Condition, true)
	case *LogicalCondition:
		if nested {
			b.WriteByte('(')
		}
		for i, val := range v.Values {
			if i > 0 {
				b.WriteByte(' ')
				b.WriteString(string(v.Operator))
				b.WriteByte(' ')
			}
			writeCondition(b, val, true)
		}
		if nested {
			b.WriteByte(')')
		}
	}
}
