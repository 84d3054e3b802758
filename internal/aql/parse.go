package aql

import (
	"strconv"
	"strings"
)

// Parse parses AQL query text into a Query.
//
// Identified paths in SELECT, WHERE and ORDER BY are bound to the containment
// of the same alias in FROM. Unknown and duplicate aliases are parse errors.
func Parse(text string) (*Query, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, roots: make(map[string]Root)}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if err := p.bindPending(); err != nil {
		return nil, err
	}
	return q, nil
}

// MustParse is like Parse but panics on error. Intended for tests.
func MustParse(text string) *Query {
	q, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return q
}

type pendingPath struct {
	path  *IdentifiedPath
	alias string
	pos   int
}

type parser struct {
	toks    []token
	i       int
	roots   map[string]Root
	pending []pendingPath
}

func (p *parser) peek() token      { return p.toks[p.i] }
func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}
func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// accept consumes the token if it is the keyword or symbol s.
func (p *parser) accept(s string) bool {
	if p.peek().is(s) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	if !p.accept(s) {
		t := p.peek()
		return NewParseError(t.pos, "expected %q but found %s", s, describe(t))
	}
	return nil
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of query"
	}
	return strconv.Quote(t.text)
}

func (p *parser) parseQuery() (*Query, error) {
	q := &Query{}
	if err := p.expect("SELECT"); err != nil {
		return nil, err
	}
	if p.accept("DISTINCT") {
		q.Select.Distinct = true
	}
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		q.Select.Items = append(q.Select.Items, item)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseContainsOr()
	if err != nil {
		return nil, err
	}
	q.From = from

	if p.accept("WHERE") {
		w, err := p.parseOrCondition()
		if err != nil {
			return nil, err
		}
		q.Where = w
	}
	if p.accept("ORDER") {
		if err := p.expect("BY"); err != nil {
			return nil, err
		}
		for {
			ob, err := p.parseOrderBy()
			if err != nil {
				return nil, err
			}
			q.OrderBy = append(q.OrderBy, ob)
			if !p.accept(",") {
				break
			}
		}
	}
	if p.accept("LIMIT") {
		n, err := p.parseCount()
		if err != nil {
			return nil, err
		}
		q.Limit = &n
		if p.accept("OFFSET") {
			n, err := p.parseCount()
			if err != nil {
				return nil, err
			}
			q.Offset = &n
		}
	} else if t := p.peek(); t.is("OFFSET") {
		return nil, NewParseError(t.pos, "OFFSET requires a preceding LIMIT")
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, NewParseError(t.pos, "unexpected %s", describe(t))
	}
	return q, nil
}

func (p *parser) parseCount() (int64, error) {
	t := p.next()
	if t.kind != tokLong {
		return 0, NewParseError(t.pos, "expected integer but found %s", describe(t))
	}
	n, err := strconv.ParseInt(t.text, 10, 64)
	if err != nil || n < 0 {
		return 0, NewParseError(t.pos, "invalid count %s", t.text)
	}
	return n, nil
}

var aggregateNames = map[string]AggregateName{
	"COUNT": AggCount, "MIN": AggMin, "MAX": AggMax, "SUM": AggSum, "AVG": AggAvg,
}

func (p *parser) parseSelectItem() (SelectItem, error) {
	var item SelectItem
	t := p.peek()
	switch {
	case t.kind == tokIdent && p.peekAt(1).is("("):
		if agg, ok := aggregateNames[strings.ToUpper(t.text)]; ok {
			f, err := p.parseAggregate(agg)
			if err != nil {
				return item, err
			}
			item.Expr = f
		} else {
			f, err := p.parseFunction()
			if err != nil {
				return item, err
			}
			item.Expr = f
		}
	case t.kind == tokIdent && !isLiteralKeyword(t.text):
		ip, err := p.parseIdentifiedPath()
		if err != nil {
			return item, err
		}
		item.Expr = ip
	default:
		prim, err := p.parsePrimitive()
		if err != nil {
			return item, err
		}
		item.Expr = prim
	}
	if p.accept("AS") {
		a := p.next()
		if a.kind != tokIdent {
			return item, NewParseError(a.pos, "expected alias after AS but found %s", describe(a))
		}
		item.Alias = a.text
	}
	return item, nil
}

func (p *parser) parseAggregate(name AggregateName) (*AggregateFunction, error) {
	p.next() // name
	if err := p.expect("("); err != nil {
		return nil, err
	}
	f := &AggregateFunction{Name: name}
	if p.accept("DISTINCT") {
		f.Distinct = true
	}
	if p.accept("*") {
		if name != AggCount {
			return nil, NewParseError(p.peek().pos, "%s(*) is not allowed", name)
		}
	} else {
		ip, err := p.parseIdentifiedPath()
		if err != nil {
			return nil, err
		}
		f.Path = ip
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *parser) parseFunction() (*Function, error) {
	name := p.next()
	if err := p.expect("("); err != nil {
		return nil, err
	}
	f := &Function{Name: strings.ToUpper(name.text)}
	if p.accept(")") {
		return f, nil
	}
	for {
		arg, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		f.Args = append(f.Args, arg)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return f, nil
}

func isLiteralKeyword(s string) bool {
	switch strings.ToUpper(s) {
	case "TRUE", "FALSE", "NULL":
		return true
	}
	return false
}

// parseOperand parses a value position of a WHERE condition or function.
func (p *parser) parseOperand() (Operand, error) {
	t := p.peek()
	switch {
	case t.kind == tokParam:
		p.next()
		return &Parameter{Name: t.text}, nil
	case t.kind == tokIdent && p.peekAt(1).is("("):
		return p.parseFunction()
	case t.kind == tokIdent && !isLiteralKeyword(t.text):
		return p.parseIdentifiedPath()
	default:
		return p.parsePrimitive()
	}
}

func (p *parser) parsePrimitive() (Primitive, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return StringToPrimitive(t.text), nil
	case tokLong:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, NewParseError(t.pos, "invalid integer %s", t.text)
		}
		return Long(n), nil
	case tokDouble:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, NewParseError(t.pos, "invalid number %s", t.text)
		}
		return Double(f), nil
	case tokIdent:
		switch strings.ToUpper(t.text) {
		case "TRUE":
			return Boolean(true), nil
		case "FALSE":
			return Boolean(false), nil
		case "NULL":
			return Null{}, nil
		}
	}
	return nil, NewParseError(t.pos, "expected literal but found %s", describe(t))
}

// parseIdentifiedPath parses alias[predicate]/path and defers binding the alias.
func (p *parser) parseIdentifiedPath() (*IdentifiedPath, error) {
	t := p.next()
	if t.kind != tokIdent {
		return nil, NewParseError(t.pos, "expected identified path but found %s", describe(t))
	}
	ip := &IdentifiedPath{}
	if p.peek().is("[") {
		preds, err := p.parseBracketPredicates()
		if err != nil {
			return nil, err
		}
		ip.RootPredicate = preds
	}
	if p.accept("/") {
		path, err := p.parseObjectPath()
		if err != nil {
			return nil, err
		}
		ip.Path = path
	}
	p.pending = append(p.pending, pendingPath{path: ip, alias: t.text, pos: t.pos})
	return ip, nil
}

func (p *parser) bindPending() error {
	for _, pp := range p.pending {
		root, ok := p.roots[pp.alias]
		if !ok {
			return NewParseError(pp.pos, "unknown alias %q", pp.alias)
		}
		pp.path.Root = root
	}
	p.pending = nil
	return nil
}

func (p *parser) parseObjectPath() (*ObjectPath, error) {
	path := &ObjectPath{}
	for {
		t := p.next()
		if t.kind != tokIdent {
			return nil, NewParseError(t.pos, "expected attribute name but found %s", describe(t))
		}
		node := PathNode{Attribute: t.text}
		if p.peek().is("[") {
			preds, err := p.parseBracketPredicates()
			if err != nil {
				return nil, err
			}
			node.Predicates = preds
		}
		path.Nodes = append(path.Nodes, node)
		if !(p.peek().is("/") && p.peekAt(1).kind == tokIdent) {
			return path, nil
		}
		p.next()
	}
}

// parseBracketPredicates parses [ ... ] including the shorthand forms
// [at0001], [at0001, 'name'], [openEHR-EHR-X.y.v1, $name] and [$id].
func (p *parser) parseBracketPredicates() ([]AndPredicate, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	var ors []AndPredicate
	for {
		and, err := p.parseAndPredicate()
		if err != nil {
			return nil, err
		}
		ors = append(ors, and)
		if !p.accept("OR") {
			break
		}
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return ors, nil
}

func (p *parser) parseAndPredicate() (AndPredicate, error) {
	var and AndPredicate
	first := true
	for {
		if first && p.isShorthandAtom() {
			cmps, err := p.parseShorthand()
			if err != nil {
				return and, err
			}
			and.Operands = append(and.Operands, cmps...)
		} else {
			cmp, err := p.parseComparisonPredicate()
			if err != nil {
				return and, err
			}
			and.Operands = append(and.Operands, cmp)
		}
		first = false
		if !p.accept("AND") {
			return and, nil
		}
	}
}

func (p *parser) isShorthandAtom() bool {
	t := p.peek()
	next := p.peekAt(1)
	if !(next.is(",") || next.is("]") || next.is("AND") || next.is("OR")) {
		return false
	}
	switch t.kind {
	case tokArchetypeID, tokParam:
		return true
	case tokIdent:
		return IsNodeID(t.text)
	}
	return false
}

func (p *parser) parseShorthand() ([]ComparisonPredicate, error) {
	t := p.next()
	var value Operand
	if t.kind == tokParam {
		value = &Parameter{Name: t.text}
	} else {
		value = String(t.text)
	}
	out := []ComparisonPredicate{{Path: ArchetypeNodeIDPath, Operator: PredEQ, Value: value}}
	if p.accept(",") {
		n := p.next()
		var name Operand
		switch n.kind {
		case tokString:
			name = String(n.text)
		case tokParam:
			name = &Parameter{Name: n.text}
		default:
			return nil, NewParseError(n.pos, "expected name after ',' but found %s", describe(n))
		}
		out = append(out, ComparisonPredicate{Path: NameValuePath, Operator: PredEQ, Value: name})
	}
	return out, nil
}

var predicateOperators = map[string]PredicateOperator{
	"=": PredEQ, "!=": PredNEQ, "<>": PredNEQ, ">": PredGT, ">=": PredGE, "<": PredLT, "<=": PredLE,
}

func (p *parser) parseComparisonPredicate() (ComparisonPredicate, error) {
	var cmp ComparisonPredicate
	path, err := p.parseObjectPath()
	if err != nil {
		return cmp, err
	}
	cmp.Path = path
	t := p.next()
	op, ok := predicateOperators[t.text]
	if t.kind != tokSymbol || !ok {
		return cmp, NewParseError(t.pos, "expected comparison operator but found %s", describe(t))
	}
	cmp.Operator = op
	v := p.peek()
	switch {
	case v.kind == tokParam:
		p.next()
		cmp.Value = &Parameter{Name: v.text}
	case v.kind == tokArchetypeID || (v.kind == tokIdent && IsNodeID(v.text)):
		p.next()
		cmp.Value = String(v.text)
	default:
		prim, err := p.parsePrimitive()
		if err != nil {
			return cmp, err
		}
		cmp.Value = prim
	}
	return cmp, nil
}

func (p *parser) parseContainsOr() (Containment, error) {
	first, err := p.parseContainsAnd()
	if err != nil {
		return nil, err
	}
	values := []Containment{first}
	for p.accept("OR") {
		c, err := p.parseContainsAnd()
		if err != nil {
			return nil, err
		}
		values = append(values, c)
	}
	return flattenSet(SetOr, values), nil
}

func (p *parser) parseContainsAnd() (Containment, error) {
	first, err := p.parseContainsPrimary()
	if err != nil {
		return nil, err
	}
	values := []Containment{first}
	for p.accept("AND") {
		c, err := p.parseContainsPrimary()
		if err != nil {
			return nil, err
		}
		values = append(values, c)
	}
	return flattenSet(SetAnd, values), nil
}

func flattenSet(op SetOperator, values []Containment) Containment {
	if len(values) == 1 {
		return values[0]
	}
	set := &ContainmentSet{Operator: op}
	for _, v := range values {
		if s, ok := v.(*ContainmentSet); ok && s.Operator == op {
			set.Values = append(set.Values, s.Values...)
			continue
		}
		set.Values = append(set.Values, v)
	}
	return set
}

func (p *parser) parseContainsPrimary() (Containment, error) {
	if p.accept("(") {
		c, err := p.parseContainsOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return c, nil
	}
	if p.peek().is("NOT") {
		t := p.next()
		if !p.peek().is("CONTAINS") {
			return nil, NewParseError(t.pos, "NOT must be followed by CONTAINS")
		}
		return nil, NewParseError(t.pos, "NOT CONTAINS must follow a class expression")
	}
	t := p.peek()
	if t.kind != tokIdent {
		return nil, NewParseError(t.pos, "expected class expression but found %s", describe(t))
	}
	var root Root
	if strings.EqualFold(t.text, "VERSION") {
		v, err := p.parseVersionExpression()
		if err != nil {
			return nil, err
		}
		root = v
	} else {
		c, err := p.parseClassExpression()
		if err != nil {
			return nil, err
		}
		root = c
	}

	negated := false
	if p.peek().is("NOT") && p.peekAt(1).is("CONTAINS") {
		p.next()
		negated = true
	}
	if !p.accept("CONTAINS") {
		return root, nil
	}
	child, err := p.parseContainsOr()
	if err != nil {
		return nil, err
	}
	if negated {
		child = &ContainmentNot{Contains: child}
	}
	switch r := root.(type) {
	case *ContainmentClass:
		r.Contains = child
	case *ContainmentVersion:
		r.Contains = child
	}
	return root, nil
}

var containmentKeywords = []string{"CONTAINS", "AND", "OR", "NOT", "WHERE", "ORDER", "LIMIT", "OFFSET"}

func (p *parser) parseAlias() (string, int, bool) {
	t := p.peek()
	if t.kind != tokIdent {
		return "", 0, false
	}
	for _, k := range containmentKeywords {
		if t.is(k) {
			return "", 0, false
		}
	}
	p.next()
	return t.text, t.pos, true
}

func (p *parser) register(alias string, pos int, root Root) error {
	if alias == "" {
		return nil
	}
	if _, dup := p.roots[alias]; dup {
		return NewParseError(pos, "duplicate alias %q", alias)
	}
	p.roots[alias] = root
	return nil
}

func (p *parser) parseClassExpression() (*ContainmentClass, error) {
	t := p.next()
	c := &ContainmentClass{Type: strings.ToUpper(t.text)}
	alias, pos, ok := p.parseAlias()
	if ok {
		c.Identifier = alias
	}
	if p.peek().is("[") {
		preds, err := p.parseBracketPredicates()
		if err != nil {
			return nil, err
		}
		c.Predicates = preds
	}
	if err := p.register(alias, pos, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *parser) parseVersionExpression() (*ContainmentVersion, error) {
	p.next() // VERSION
	v := &ContainmentVersion{}
	alias, pos, ok := p.parseAlias()
	if ok {
		v.Identifier = alias
	}
	if p.accept("[") {
		switch {
		case p.accept("LATEST_VERSION"):
			v.PredicateKind = VersionLatest
		case p.accept("ALL_VERSIONS"):
			v.PredicateKind = VersionAll
		default:
			cmp, err := p.parseComparisonPredicate()
			if err != nil {
				return nil, err
			}
			v.PredicateKind = VersionStandard
			v.Predicate = &cmp
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
	}
	if err := p.register(alias, pos, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (p *parser) parseOrCondition() (Condition, error) {
	first, err := p.parseAndCondition()
	if err != nil {
		return nil, err
	}
	values := []Condition{first}
	for p.accept("OR") {
		c, err := p.parseAndCondition()
		if err != nil {
			return nil, err
		}
		values = append(values, c)
	}
	return flattenLogical(LogicalOr, values), nil
}

func (p *parser) parseAndCondition() (Condition, error) {
	first, err := p.parseNotCondition()
	if err != nil {
		return nil, err
	}
	values := []Condition{first}
	for p.accept("AND") {
		c, err := p.parseNotCondition()
		if err != nil {
			return nil, err
		}
		values = append(values, c)
	}
	return flattenLogical(LogicalAnd, values), nil
}

func flattenLogical(op LogicalOperator, values []Condition) Condition {
	if len(values) == 1 {
		return values[0]
	}
	lc := &LogicalCondition{Operator: op}
	for _, v := range values {
		if l, ok := v.(*LogicalCondition); ok && l.Operator == op {
			lc.Values = append(lc.Values, l.Values...)
			continue
		}
		lc.Values = append(lc.Values, v)
	}
	return lc
}

func (p *parser) parseNotCondition() (Condition, error) {
	if p.accept("NOT") {
		c, err := p.parseNotCondition()
		if err != nil {
			return nil, err
		}
		return &NotCondition{Condition: c}, nil
	}
	return p.parsePrimaryCondition()
}

var comparisonOperators = map[string]ComparisonOperator{
	"=": OpEQ, "!=": OpNEQ, "<>": OpNEQ, ">": OpGT, ">=": OpGE, "<": OpLT, "<=": OpLE,
}

func (p *parser) parsePrimaryCondition() (Condition, error) {
	if p.accept("(") {
		c, err := p.parseOrCondition()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return c, nil
	}
	if p.accept("EXISTS") {
		ip, err := p.parseIdentifiedPath()
		if err != nil {
			return nil, err
		}
		return &ExistsCondition{Path: ip}, nil
	}

	var left Operand
	t := p.peek()
	if t.kind != tokIdent {
		return nil, NewParseError(t.pos, "expected condition but found %s", describe(t))
	}
	if p.peekAt(1).is("(") {
		f, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		left = f
	} else {
		ip, err := p.parseIdentifiedPath()
		if err != nil {
			return nil, err
		}
		left = ip
	}

	op := p.next()
	switch {
	case op.is("MATCHES"):
		ip, ok := left.(*IdentifiedPath)
		if !ok {
			return nil, NewParseError(op.pos, "MATCHES requires an identified path")
		}
		values, err := p.parseMatchesList()
		if err != nil {
			return nil, err
		}
		return &MatchesCondition{Path: ip, Values: values}, nil
	case op.is("LIKE"):
		ip, ok := left.(*IdentifiedPath)
		if !ok {
			return nil, NewParseError(op.pos, "LIKE requires an identified path")
		}
		v := p.next()
		switch v.kind {
		case tokString:
			return &LikeCondition{Path: ip, Value: String(v.text)}, nil
		case tokParam:
			return &LikeCondition{Path: ip, Value: &Parameter{Name: v.text}}, nil
		}
		return nil, NewParseError(v.pos, "LIKE requires a string or parameter")
	case op.kind == tokSymbol:
		cop, ok := comparisonOperators[op.text]
		if !ok {
			break
		}
		value, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &ComparisonCondition{Left: left, Operator: cop, Value: value}, nil
	}
	return nil, NewParseError(op.pos, "expected operator but found %s", describe(op))
}

func (p *parser) parseMatchesList() ([]Operand, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var values []Operand
	for {
		t := p.peek()
		switch {
		case t.kind == tokParam:
			p.next()
			values = append(values, &Parameter{Name: t.text})
		case t.kind == tokArchetypeID:
			p.next()
			values = append(values, String(t.text))
		default:
			prim, err := p.parsePrimitive()
			if err != nil {
				return nil, err
			}
			values = append(values, prim)
		}
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return values, nil
}

func (p *parser) parseOrderBy() (OrderBy, error) {
	ip, err := p.parseIdentifiedPath()
	if err != nil {
		return OrderBy{}, err
	}
	ob := OrderBy{Path: ip, Direction: Asc}
	switch {
	case p.accept("DESC"), p.accept("DESCENDING"):
		ob.Direction = Desc
	case p.accept("ASC"), p.accept("ASCENDING"):
	}
	return ob, nil
}
