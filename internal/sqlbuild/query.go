package sqlbuild

import (
	"slices"
	"strings"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/asl"
	"github.com/roach88/aqlc/internal/schema"
)

// scope is the query whose clauses are rendered. A field exposed by the
// scope itself is read from the child it was taken from.
type scope struct {
	q asl.Query
	// sq is set inside a structure query, whose own columns are read from
	// its tables.
	sq *asl.StructureQuery
}

func (r *render) rootQuery(root *asl.RootQuery) (string, error) {
	sc := scope{q: root}
	var sb strings.Builder

	sels := make([]string, 0, len(root.Selects))
	for _, f := range root.Selects {
		s, err := r.selectExpr(f, sc)
		if err != nil {
			return "", err
		}
		sels = append(sels, s)
	}
	if len(sels) == 0 {
		return "", aql.NewInternalError("root query selects nothing")
	}
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(sels, ", "))

	from, err := r.from(&root.EncapsulatingQuery, sc)
	if err != nil {
		return "", err
	}
	sb.WriteString(" FROM ")
	sb.WriteString(from)

	if err := r.where(&sb, root.Filter(), sc); err != nil {
		return "", err
	}

	var groupBy []string
	for _, f := range root.GroupBy {
		exprs, err := r.groupByExprs(f, sc)
		if err != nil {
			return "", err
		}
		groupBy = appendNew(groupBy, exprs...)
	}
	for _, f := range root.GroupByDvOrderedMagnitude {
		e, err := r.valueExpr(f, sc)
		if err != nil {
			return "", err
		}
		groupBy = appendNew(groupBy, magnitude(e))
	}
	if len(groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groupBy, ", "))
	}

	var orderBy []string
	for _, ob := range root.OrderBy {
		exprs, err := r.orderByExprs(ob, sc)
		if err != nil {
			return "", err
		}
		orderBy = append(orderBy, exprs...)
	}
	if len(orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orderBy, ", "))
	}

	if root.Limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(r.arg(*root.Limit))
	}
	if root.Offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(r.arg(*root.Offset))
	}
	return sb.String(), nil
}

func (r *render) where(sb *strings.Builder, c asl.Condition, sc scope) error {
	if c == nil {
		return nil
	}
	s, err := r.condition(c, sc)
	if err != nil {
		return err
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(s)
	return nil
}

// from renders the children of q as FROM item and joins.
func (r *render) from(q *asl.EncapsulatingQuery, sc scope) (string, error) {
	if len(q.Children) == 0 {
		return "", aql.NewInternalError("%s has no children", q.Alias())
	}
	var sb strings.Builder
	for i, ch := range q.Children {
		item, err := r.fromItem(ch, sc)
		if err != nil {
			return "", err
		}
		if i == 0 {
			sb.WriteString(item)
			continue
		}
		if ch.Join == nil {
			return "", aql.NewInternalError("%s is joined without join", ch.Query.Alias())
		}
		on, err := r.conditions(ch.Join.Conditions, sc)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ")
		sb.WriteString(string(ch.Join.Type))
		sb.WriteString(" ")
		sb.WriteString(item)
		sb.WriteString(" ON ")
		sb.WriteString(on)
	}
	return sb.String(), nil
}

func (r *render) fromItem(ch asl.Child, sc scope) (string, error) {
	_, isStructure := ch.Query.(*asl.StructureQuery)
	identity := r.PgLljWorkaround && ch.Join != nil && ch.Join.Type != asl.JoinInner && !isStructure

	var (
		sub string
		err error
	)
	switch q := ch.Query.(type) {
	case *asl.StructureQuery:
		sub, err = r.structureQuery(q)
	case *asl.EncapsulatingQuery:
		sub, err = r.encapsulatingQuery(q, identity)
	case *asl.PathDataQuery:
		sub, err = r.pathDataQuery(q, sc, identity)
	case *asl.FilteringQuery:
		sub, err = r.filteringQuery(q, sc, identity)
	default:
		err = aql.NewInternalError("%T cannot be joined", ch.Query)
	}
	if err != nil {
		return "", err
	}
	item := "(" + sub + ") AS " + ident(ch.Query.Alias())
	if asl.Lateral(ch.Query) {
		item = "LATERAL " + item
	}
	return item, nil
}

func (r *render) encapsulatingQuery(q *asl.EncapsulatingQuery, identity bool) (string, error) {
	sc := scope{q: q}
	var sels, names []string
	for _, f := range q.Fields() {
		exprs, ns, err := r.exposed(f, sc)
		if err != nil {
			return "", err
		}
		for i, e := range exprs {
			if slices.Contains(names, ns[i]) {
				continue
			}
			names = append(names, ns[i])
			sels = append(sels, wrap(e, identity)+" AS "+ident(ns[i]))
		}
	}
	if len(sels) == 0 {
		return "", aql.NewInternalError("%s exposes no fields", q.Alias())
	}
	from, err := r.from(q, sc)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(sels, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(from)
	if err := r.where(&sb, q.Filter(), sc); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// exposed returns the expressions and names a field is selected under by
// an encapsulating query.
func (r *render) exposed(f asl.Field, sc scope) ([]string, []string, error) {
	switch v := f.(type) {
	case *asl.ColumnField:
		return []string{r.column(v, sc)}, []string{v.AliasedName()}, nil
	case *asl.ComplexExtractedColumnField:
		var exprs, names []string
		for _, col := range v.Columns() {
			exprs = append(exprs, r.complexColumn(v, col, sc))
			names = append(names, v.AliasedName(col))
		}
		return exprs, names, nil
	case *asl.FolderItemIDField:
		return []string{ref(v.Source(), sc, v.AliasedName())}, []string{v.AliasedName()}, nil
	default:
		return nil, nil, aql.NewInternalError("%T cannot be exposed by a subquery", f)
	}
}

func hasVersionJoin(sq *asl.StructureQuery) bool {
	return sq.RequiresVersionJoin && !sq.Relation.VersionTable().IsZero()
}

// structureQuery reads one relation. With a version join the version table
// is the primary table and the data table is joined by primary key.
func (r *render) structureQuery(sq *asl.StructureQuery) (string, error) {
	sc := scope{q: sq, sq: sq}
	var (
		sels, names []string
		folderItems bool
	)
	add := func(expr, name string) {
		if slices.Contains(names, name) {
			return
		}
		names = append(names, name)
		sels = append(sels, expr+" AS "+ident(name))
	}
	for _, f := range sq.Fields() {
		switch v := f.(type) {
		case *asl.ColumnField:
			add(r.column(v, sc), v.AliasedName())
		case *asl.ComplexExtractedColumnField:
			for _, col := range v.Columns() {
				add(r.complexColumn(v, col, sc), v.AliasedName(col))
			}
		case *asl.FolderItemIDField:
			if sq.Relation != schema.RelationFolder {
				return "", aql.NewInternalError("folder items of %s", sq.Relation)
			}
			folderItems = true
			add(ident(dataAlias(sq), asl.FolderItemIDColumn), v.AliasedName())
		default:
			return "", aql.NewInternalError("%T in structure query %s", f, sq.Alias())
		}
	}
	if len(sels) == 0 {
		return "", aql.NewInternalError("structure query %s selects nothing", sq.Alias())
	}

	dt := sq.Relation.DataTable()
	data := ident(dt.Schema, dt.Name)
	if folderItems {
		data = "(" + r.folderItemsTable() + ")"
	}
	data += " AS " + ident(dataAlias(sq))

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(sels, ", "))
	sb.WriteString(" FROM ")
	if hasVersionJoin(sq) {
		vt := sq.Relation.VersionTable()
		sb.WriteString(ident(vt.Schema, vt.Name))
		sb.WriteString(" AS ")
		sb.WriteString(ident(versionAlias(sq)))
		sb.WriteString(" JOIN ")
		sb.WriteString(data)
		sb.WriteString(" ON ")
		var on []string
		for _, col := range sq.Relation.PrimaryKey() {
			on = append(on, ident(versionAlias(sq), col)+" = "+ident(dataAlias(sq), col))
		}
		sb.WriteString(strings.Join(on, " AND "))
	} else {
		sb.WriteString(data)
	}
	if err := r.where(&sb, asl.And(sq.Conditions...), sc); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// folderItemsTable adds the ids of the compositions referenced by a folder
// and its subfolders to ehr_folder_data.
func (r *render) folderItemsTable() string {
	const (
		nested = `"nested_folders"`
		root   = `"root"`
		item   = `"items"."item"`
		uuidRe = `^[[:xdigit:]]{8}-([[:xdigit:]]{4}-){3}[[:xdigit:]]{12}$`
	)
	id := item + "->" + literal(r.attributeAlias("id"))
	idValue := "(" + id + "->>" + literal(r.attributeAlias("value")) + ")"
	idType := "(" + id + "->>" + literal(r.attributeAlias("_type")) + ")"
	itemType := "(" + item + "->>" + literal(r.attributeAlias("type")) + ")"
	table := ident("ehr", "ehr_folder_data")

	return "SELECT " + root + ".*, ARRAY(" +
		"SELECT CAST(" + idValue + " AS uuid)" +
		" FROM " + table + " AS " + nested +
		" JOIN LATERAL jsonb_array_elements(" + nested + "." + ident(schema.ColData) + "->" + literal(r.attributeAlias("items")) + `) AS "items"("item")` +
		" ON " + itemType + " = " + literal("VERSIONED_COMPOSITION") +
		" AND " + idType + " = " + literal(r.typeAlias("HIER_OBJECT_ID")) +
		" AND " + idValue + " ~ " + literal(uuidRe) +
		" WHERE " + nested + "." + ident(schema.ColEhrID) + " = " + root + "." + ident(schema.ColEhrID) +
		" AND " + nested + "." + ident(schema.ColEhrFoldersIdx) + " = " + root + "." + ident(schema.ColEhrFoldersIdx) +
		" AND " + nested + "." + ident(schema.ColNum) + " BETWEEN " + root + "." + ident(schema.ColNum) +
		" AND COALESCE(" + root + "." + ident(schema.ColNumCap) + ", " + root + "." + ident(schema.ColNum) + ")" +
		") AS " + ident(asl.FolderItemIDColumn) +
		" FROM " + table + " AS " + root
}

// pathDataQuery navigates the JSON of its base. Multiple valued queries
// unnest the array and cannot be wrapped.
func (r *render) pathDataQuery(q *asl.PathDataQuery, sc scope, identity bool) (string, error) {
	base, err := r.valueExpr(q.Data, sc)
	if err != nil {
		return "", err
	}
	asText := q.Type == schema.TypeString
	var expr string
	switch {
	case q.Multiple && asText:
		expr = "jsonb_array_elements_text(" + r.jsonPath(base, q.Path, false) + ")"
	case q.Multiple:
		expr = "jsonb_array_elements(" + r.jsonPath(base, q.Path, false) + ")"
	default:
		expr = wrap(r.jsonPath(base, q.Path, asText), identity)
	}
	return "SELECT " + expr + " AS " + ident(q.DataField().AliasedName()), nil
}

// jsonPath navigates path below base; asText extracts the last step as
// text.
func (r *render) jsonPath(base string, path []aql.PathNode, asText bool) string {
	if len(path) == 0 {
		if asText {
			return "(" + base + "#>>'{}')"
		}
		return base
	}
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(base)
	for i, n := range path {
		if asText && i == len(path)-1 {
			sb.WriteString("->>")
		} else {
			sb.WriteString("->")
		}
		sb.WriteString(literal(r.attributeAlias(n.Attribute)))
	}
	sb.WriteString(")")
	return sb.String()
}

func (r *render) filteringQuery(q *asl.FilteringQuery, sc scope, identity bool) (string, error) {
	var sels []string
	switch src := q.Source.(type) {
	case *asl.ComplexExtractedColumnField:
		out, ok := q.ValueField().(*asl.ComplexExtractedColumnField)
		if !ok {
			return "", aql.NewInternalError("filtering query %s does not keep %s", q.Alias(), src.Extracted)
		}
		for _, col := range src.Columns() {
			sels = append(sels, wrap(r.complexColumn(src, col, sc), identity)+" AS "+ident(out.AliasedName(col)))
		}
	case *asl.SubqueryField, *asl.AggregatingField, *asl.FolderItemIDField:
		return "", aql.NewInternalError("filtering queries cannot be based on %T", src)
	default:
		e, err := r.valueExpr(src, sc)
		if err != nil {
			return "", err
		}
		out, ok := q.ValueField().(*asl.ColumnField)
		if !ok {
			return "", aql.NewInternalError("unexpected value field of %s", q.Alias())
		}
		sels = append(sels, wrap(e, identity)+" AS "+ident(out.AliasedName()))
	}
	return "SELECT " + strings.Join(sels, ", "), nil
}

// objectData aggregates the rows below the base node into one JSON object
// keyed by their entity index relative to the node.
func (r *render) objectData(q *asl.ObjectDataQuery, filter []asl.Condition, sc scope) (string, error) {
	base := q.Base
	target := func(col string) (string, error) {
		f, ok := asl.FindField(q.Provider, base, col)
		if !ok {
			return "", aql.NewInternalError("%s does not expose %s of %s", q.Provider.Alias(), col, base.Alias())
		}
		return r.valueExpr(f, sc)
	}
	d := dataAlias(q)
	dt := base.Relation.DataTable()

	entityIdx, err := target(schema.ColEntityIdx)
	if err != nil {
		return "", err
	}
	var conds []string
	for _, col := range base.Relation.PrimaryKey() {
		t, err := target(col)
		if err != nil {
			return "", err
		}
		conds = append(conds, ident(d, col)+" = "+t)
	}
	if !base.Root {
		num, err := target(schema.ColNum)
		if err != nil {
			return "", err
		}
		numCap, err := target(schema.ColNumCap)
		if err != nil {
			return "", err
		}
		conds = append(conds, ident(d, schema.ColNum)+" BETWEEN "+num+" AND COALESCE("+numCap+", "+num+")")
	}
	for _, c := range filter {
		s, err := r.condition(c, sc)
		if err != nil {
			return "", err
		}
		conds = append(conds, s)
	}

	return "(SELECT jsonb_object_agg(substring(" + ident(d, schema.ColEntityIdx) +
		" FROM char_length(" + entityIdx + ") + 1), " + ident(d, schema.ColData) + ")" +
		" FROM " + ident(dt.Schema, dt.Name) + " AS " + ident(d) +
		" WHERE " + strings.Join(conds, " AND ") + ")", nil
}

// objectDataColumns are the base columns an object data subquery reads.
func objectDataColumns(base *asl.StructureQuery) []string {
	cols := append(slices.Clone(base.Relation.PrimaryKey()), schema.ColEntityIdx)
	if !base.Root {
		cols = append(cols, schema.ColNum, schema.ColNumCap)
	}
	return cols
}

func wrap(expr string, identity bool) string {
	if identity {
		return "COALESCE(" + expr + ")"
	}
	return expr
}

func appendNew(list []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}
