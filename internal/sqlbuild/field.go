package sqlbuild

import (
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/asl"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/schema"
)

const compositionArchetypePrefix = "openEHR-EHR-COMPOSITION"

// ref reads the column name exposed for src. Inside its provider the field
// is read from the child it was taken from.
func ref(src asl.FieldSource, sc scope, name string) string {
	p := src.Provider
	if p == nil || p == sc.q {
		p = src.InternalProvider
	}
	return ident(p.Alias(), name)
}

func tableAlias(sq *asl.StructureQuery, fromVersion bool) string {
	if fromVersion && hasVersionJoin(sq) {
		return versionAlias(sq)
	}
	return dataAlias(sq)
}

func (r *render) column(f *asl.ColumnField, sc scope) string {
	if sc.sq != nil && f.Source().Owner == sc.sq {
		return ident(tableAlias(sc.sq, f.FromVersion), f.Column)
	}
	return ref(f.Source(), sc, f.AliasedName())
}

func (r *render) complexColumn(f *asl.ComplexExtractedColumnField, col string, sc scope) string {
	if sc.sq != nil && f.Source().Owner == sc.sq {
		return ident(tableAlias(sc.sq, f.FromVersion(col)), col)
	}
	return ref(f.Source(), sc, f.AliasedName(col))
}

// valueExpr renders f as a scalar expression.
func (r *render) valueExpr(f asl.Field, sc scope) (string, error) {
	switch v := f.(type) {
	case *asl.ColumnField:
		return r.column(v, sc), nil
	case *asl.ConstantField:
		return r.typedArg(v.Value), nil
	case *asl.RmPathField:
		base, err := r.valueExpr(v.Base, sc)
		if err != nil {
			return "", err
		}
		return r.jsonPath(base, v.Path, v.Type == schema.TypeString), nil
	case *asl.SubqueryField:
		return r.objectData(v.Query, v.Filter, sc)
	case *asl.AggregatingField:
		return r.aggregate(v, sc)
	case *asl.StringAggregationField:
		parts := make([]string, 0, len(v.Parts))
		for _, p := range v.Parts {
			e, err := r.valueExpr(p, sc)
			if err != nil {
				return "", err
			}
			parts = append(parts, "CAST("+e+" AS text)")
		}
		return "concat_ws(" + literal(v.Separator) + ", " + strings.Join(parts, ", ") + ")", nil
	case *asl.ComplexExtractedColumnField:
		cols := make([]string, 0, 2)
		for _, c := range v.Columns() {
			cols = append(cols, r.complexColumn(v, c, sc))
		}
		return "ROW(" + strings.Join(cols, ", ") + ")", nil
	case *asl.FolderItemIDField:
		return ref(v.Source(), sc, v.AliasedName()), nil
	default:
		return "", aql.NewInternalError("unexpected field %T", f)
	}
}

// selectExpr renders a root select. Extracted columns are rendered in their
// AQL form where the stored form differs.
func (r *render) selectExpr(f asl.Field, sc scope) (string, error) {
	switch v := f.(type) {
	case *asl.ColumnField:
		e := r.column(v, sc)
		switch v.Extracted {
		case schema.RootConcept:
			return "(" + literal(compositionArchetypePrefix) + " || " + e + ")", nil
		case schema.TemplateID:
			return r.templateIDSelect(e)
		case schema.AdChangeTypeCode:
			return changeTypeCode(e), nil
		case schema.AdChangeTypeTerm, schema.AdChangeTypeValue:
			return "lower(CAST(" + e + " AS text))", nil
		}
		return e, nil
	case *asl.ComplexExtractedColumnField:
		switch v.Extracted {
		case schema.VoID:
			return "(CAST(" + r.complexColumn(v, schema.ColVoID, sc) + " AS text) || '::' || " +
				r.typedArg(r.SystemID) + " || '::' || CAST(" + r.complexColumn(v, schema.ColSysVersion, sc) + " AS text))", nil
		case schema.ArchetypeNodeID:
			return r.archetypeNodeIDSelect(v, sc), nil
		}
		return r.valueExpr(f, sc)
	case *asl.FolderItemIDField:
		return "", aql.NewInternalError("folder item ids cannot be selected")
	default:
		return r.valueExpr(f, sc)
	}
}

// archetypeNodeIDSelect reassembles archetype ids from the type alias and
// the concept. Other node ids are stored as the concept alone.
func (r *render) archetypeNodeIDSelect(f *asl.ComplexExtractedColumnField, sc scope) string {
	concept := r.complexColumn(f, schema.ColEntityConcept, sc)
	entity := r.complexColumn(f, schema.ColRmEntity, sc)
	var sb strings.Builder
	sb.WriteString("CASE WHEN ")
	sb.WriteString(concept)
	sb.WriteString(" LIKE '.%' THEN 'openEHR-EHR-' || CASE ")
	sb.WriteString(entity)
	for _, st := range structureTypesByName() {
		sb.WriteString(" WHEN ")
		sb.WriteString(literal(st.Alias))
		sb.WriteString(" THEN ")
		sb.WriteString(literal(st.Name))
	}
	sb.WriteString(" ELSE ")
	sb.WriteString(entity)
	sb.WriteString(" END || ")
	sb.WriteString(concept)
	sb.WriteString(" ELSE ")
	sb.WriteString(concept)
	sb.WriteString(" END")
	return sb.String()
}

func structureTypesByName() []*rm.StructureType {
	types := slices.Clone(rm.StructureTypes())
	slices.SortFunc(types, func(a, b *rm.StructureType) int { return strings.Compare(a.Name, b.Name) })
	return types
}

func changeTypeCode(e string) string {
	var sb strings.Builder
	sb.WriteString("CASE CAST(")
	sb.WriteString(e)
	sb.WriteString(" AS text)")
	for _, ct := range []schema.ChangeType{
		schema.ChangeCreation, schema.ChangeAmendment, schema.ChangeModification,
		schema.ChangeSynthesis, schema.ChangeUnknown, schema.ChangeDeleted, schema.ChangeAttestation,
	} {
		sb.WriteString(" WHEN ")
		sb.WriteString(literal(string(ct)))
		sb.WriteString(" THEN ")
		sb.WriteString(literal(ct.Code()))
	}
	sb.WriteString(" END")
	return sb.String()
}

// aggregatableExtracted are the extracted columns aggregate functions other
// than COUNT accept.
var aggregatableExtracted = []schema.ExtractedColumn{
	schema.OvTimeCommitted, schema.OvTimeCommittedDv,
	schema.EhrTimeCreated, schema.EhrTimeCreatedDv,
}

func (r *render) aggregate(f *asl.AggregatingField, sc scope) (string, error) {
	if f.Base == nil {
		if f.Function != aql.AggCount {
			return "", aql.NewInternalError("%s without argument", f.Function)
		}
		return "count(*)", nil
	}
	if ec := asl.ExtractedColumn(f.Base); ec != "" && f.Function != aql.AggCount && !slices.Contains(aggregatableExtracted, ec) {
		return "", aql.NewIllegalError("aggregate function %s is not supported for %s", f.Function, ec)
	}

	var x string
	if c, ok := f.Base.(*asl.ComplexExtractedColumnField); ok {
		switch c.Extracted {
		case schema.VoID:
			x = r.complexColumn(c, schema.ColVoID, sc)
		default:
			x = "ROW(" + r.complexColumn(c, schema.ColRmEntity, sc) + ", " + r.complexColumn(c, schema.ColEntityConcept, sc) + ")"
		}
	} else {
		e, err := r.valueExpr(f.Base, sc)
		if err != nil {
			return "", err
		}
		x = e
	}
	distinct := ""
	if f.Distinct {
		distinct = "DISTINCT "
	}
	json := asl.FieldType(f.Base) == schema.TypeJSON

	switch f.Function {
	case aql.AggCount:
		return "count(" + distinct + x + ")", nil
	case aql.AggMin, aql.AggMax:
		fn := strings.ToLower(string(f.Function))
		if json && len(asl.DvOrderedTypes(f.Base)) > 0 {
			return fn + "_dv_ordered(" + x + ")", nil
		}
		return fn + "(" + distinct + x + ")", nil
	case aql.AggSum, aql.AggAvg:
		fn := strings.ToLower(string(f.Function))
		if json {
			x = "CAST(" + x + " AS numeric)"
		}
		return fn + "(" + distinct + x + ")", nil
	default:
		return "", aql.NewInternalError("unexpected aggregate function %s", f.Function)
	}
}

// groupByExprs renders the grouping expressions of f. A subquery field is
// grouped by the columns it is correlated on.
func (r *render) groupByExprs(f asl.Field, sc scope) ([]string, error) {
	switch v := f.(type) {
	case *asl.ConstantField:
		return nil, nil
	case *asl.ColumnField:
		return []string{r.column(v, sc)}, nil
	case *asl.ComplexExtractedColumnField:
		var out []string
		for _, c := range v.Columns() {
			out = append(out, r.complexColumn(v, c, sc))
		}
		return out, nil
	case *asl.SubqueryField:
		var out []string
		for _, col := range objectDataColumns(v.Query.Base) {
			tf, ok := asl.FindField(v.Query.Provider, v.Query.Base, col)
			if !ok {
				return nil, aql.NewInternalError("%s does not expose %s", v.Query.Provider.Alias(), col)
			}
			exprs, err := r.groupByExprs(tf, sc)
			if err != nil {
				return nil, err
			}
			out = appendNew(out, exprs...)
		}
		var err error
		for _, c := range v.Filter {
			asl.WalkFields(c, func(ff asl.Field) {
				if err != nil {
					return
				}
				var exprs []string
				exprs, err = r.groupByExprs(ff, sc)
				out = appendNew(out, exprs...)
			})
		}
		return out, err
	case *asl.AggregatingField, *asl.FolderItemIDField:
		return nil, aql.NewInternalError("%T cannot be grouped", f)
	default:
		e, err := r.valueExpr(f, sc)
		if err != nil {
			return nil, err
		}
		return []string{e}, nil
	}
}

func magnitude(e string) string {
	return "jsonb_dv_ordered_magnitude(" + e + ")"
}

func (r *render) orderByExprs(ob asl.OrderByField, sc scope) ([]string, error) {
	dir := " " + string(ob.Direction)
	if ob.Direction == "" {
		dir = " " + string(aql.Asc)
	}
	exprs, err := r.orderKeys(ob.Field, sc)
	if err != nil {
		return nil, err
	}
	for i := range exprs {
		exprs[i] += dir
	}
	return exprs, nil
}

func (r *render) orderKeys(f asl.Field, sc scope) ([]string, error) {
	switch v := f.(type) {
	case *asl.ConstantField:
		return nil, nil
	case *asl.ColumnField:
		e := r.column(v, sc)
		if v.Type == schema.TypeJSON && len(v.DvOrderedTypes) > 0 {
			return []string{magnitude(e)}, nil
		}
		switch v.Extracted {
		case schema.TemplateID:
			o, err := r.templateOrderExpr(e)
			if err != nil {
				return nil, err
			}
			return []string{o}, nil
		case schema.AdChangeTypeValue, schema.AdChangeTypeTerm:
			return []string{"lower(CAST(" + e + " AS text))"}, nil
		case schema.AdChangeTypeCode:
			return []string{changeTypeCode(e)}, nil
		}
		return []string{e}, nil
	case *asl.RmPathField:
		e, err := r.valueExpr(v, sc)
		if err != nil {
			return nil, err
		}
		if v.Type != schema.TypeString && len(v.DvOrderedTypes) > 0 {
			return []string{magnitude(e)}, nil
		}
		return []string{e}, nil
	case *asl.ComplexExtractedColumnField:
		if v.Extracted == schema.VoID {
			return []string{r.complexColumn(v, schema.ColVoID, sc)}, nil
		}
		return r.archetypeNodeIDOrder(v, sc), nil
	case *asl.AggregatingField, *asl.FolderItemIDField:
		return nil, aql.NewInternalError("%T cannot be ordered by", f)
	default:
		e, err := r.valueExpr(f, sc)
		if err != nil {
			return nil, err
		}
		return []string{e}, nil
	}
}

// archetypeNodeIDOrder sorts node ids before archetype ids, archetype
// ids by RM type name, then everything by concept.
func (r *render) archetypeNodeIDOrder(f *asl.ComplexExtractedColumnField, sc scope) []string {
	concept := r.complexColumn(f, schema.ColEntityConcept, sc)
	entity := r.complexColumn(f, schema.ColRmEntity, sc)
	isArchetype := "(" + concept + " LIKE '.%')"

	var sb strings.Builder
	sb.WriteString("CASE WHEN ")
	sb.WriteString(isArchetype)
	sb.WriteString(" THEN CASE ")
	sb.WriteString(entity)
	for i, st := range structureTypesByName() {
		sb.WriteString(" WHEN ")
		sb.WriteString(literal(st.Alias))
		sb.WriteString(" THEN ")
		sb.WriteString(strconv.Itoa(i))
	}
	sb.WriteString(" END END")
	return []string{isArchetype, sb.String(), concept}
}

// loadTemplates reads the template ids once per Build.
func (r *render) loadTemplates() error {
	if r.templatesRead {
		return nil
	}
	r.templatesRead = true
	if r.Knowledge == nil {
		return nil
	}
	ids, err := r.Knowledge.TemplateIDs(r.ctx)
	if err != nil {
		return aql.WrapInternalError(err, "template lookup failed")
	}
	r.templates = ids
	r.templateOrder = make([]uuid.UUID, 0, len(ids))
	for id := range ids {
		r.templateOrder = append(r.templateOrder, id)
	}
	c := collate.New(language.English)
	slices.SortFunc(r.templateOrder, func(a, b uuid.UUID) int {
		if n := c.CompareString(ids[a], ids[b]); n != 0 {
			return n
		}
		return strings.Compare(a.String(), b.String())
	})
	return nil
}

// templateOrderExpr orders template uuids by template id.
func (r *render) templateOrderExpr(e string) (string, error) {
	if err := r.loadTemplates(); err != nil {
		return "", err
	}
	if len(r.templateOrder) == 0 {
		r.logger.Warn("no templates known, ordering template_id by uuid")
		return e, nil
	}
	var sb strings.Builder
	sb.WriteString("CASE ")
	sb.WriteString(e)
	for i, id := range r.templateOrder {
		sb.WriteString(" WHEN ")
		sb.WriteString(r.arg(id))
		sb.WriteString("::uuid THEN ")
		sb.WriteString(strconv.Itoa(i))
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

// templateIDSelect maps template uuids to template ids. Unknown uuids are
// selected as text.
func (r *render) templateIDSelect(e string) (string, error) {
	if err := r.loadTemplates(); err != nil {
		return "", err
	}
	if len(r.templateOrder) == 0 {
		return "CAST(" + e + " AS text)", nil
	}
	var sb strings.Builder
	sb.WriteString("CASE ")
	sb.WriteString(e)
	for _, id := range r.templateOrder {
		sb.WriteString(" WHEN ")
		sb.WriteString(r.arg(id))
		sb.WriteString("::uuid THEN ")
		sb.WriteString(r.typedArg(r.templates[id]))
	}
	sb.WriteString(" ELSE CAST(")
	sb.WriteString(e)
	sb.WriteString(" AS text) END")
	return sb.String(), nil
}
