package sqlbuild

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/asl"
	"github.com/roach88/aqlc/internal/knowledge"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/schema"
)

var (
	id1 = uuid.MustParse("6ee2ba24-1ac6-4d2c-8b2f-0b6f2b1b7c11")
	id2 = uuid.MustParse("0f2a6c5e-97b5-4a64-bb4f-0d1b1d3c9e22")
)

// compositionQuery selects the named columns of COMPOSITION rows.
func compositionQuery(alias string, names ...string) *asl.StructureQuery {
	var cols []schema.StructureColumn
	for _, c := range schema.StructureColumns {
		if slices.Contains(names, c.Name) {
			cols = append(cols, c)
		}
	}
	return asl.NewStructureQuery(alias, schema.RelationComposition, cols, []string{"COMPOSITION"}, nil, "", true)
}

func column(t *testing.T, sq *asl.StructureQuery, name string) *asl.ColumnField {
	t.Helper()
	f, ok := sq.Column(name)
	require.True(t, ok, "column %s", name)
	return f
}

func build(t *testing.T, b *Builder, root *asl.RootQuery) Statement {
	t.Helper()
	stmt, err := b.Build(context.Background(), root)
	require.NoError(t, err)
	return stmt
}

func where(t *testing.T, sql string) string {
	t.Helper()
	_, w, ok := strings.Cut(sql, " WHERE ")
	require.True(t, ok, sql)
	return w
}

func TestBuild_StructureWithVersionJoin(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColTemplateID)
	root.AddChild(sq, nil)
	root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
	root.AddCondition(&asl.FieldValueCondition{
		Field:    column(t, sq, schema.ColTemplateID).WithProvider(root),
		Operator: asl.OpEQ,
		Values:   []any{id1},
	})
	limit := int64(10)
	root.Limit = &limit

	stmt := build(t, &Builder{}, root)

	want := `SELECT "c"."c_vo_id" FROM (` +
		`SELECT "csq"."vo_id" AS "c_vo_id", "c_version_sq"."template_id" AS "c_template_id"` +
		` FROM "ehr"."comp_version" AS "c_version_sq" JOIN "ehr"."comp_data" AS "csq"` +
		` ON "c_version_sq"."vo_id" = "csq"."vo_id") AS "c"` +
		` WHERE "c"."c_template_id" = $1 LIMIT $2`
	assert.Equal(t, want, stmt.SQL)
	assert.Equal(t, []any{id1, int64(10)}, stmt.Args)
}

func TestBuild_NoVersionJoin(t *testing.T) {
	root := asl.NewRootQuery()
	sq := asl.NewStructureQuery("c", schema.RelationComposition,
		[]schema.StructureColumn{{Name: schema.ColVoID, Type: schema.TypeUUID}}, nil, nil, "", false)
	root.AddChild(sq, nil)
	root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}

	stmt := build(t, &Builder{}, root)

	assert.Equal(t, `SELECT "c"."c_vo_id" FROM (SELECT "csq"."vo_id" AS "c_vo_id" FROM "ehr"."comp_data" AS "csq") AS "c"`, stmt.SQL)
	assert.Empty(t, stmt.Args)
}

func TestBuild_ValuesAreBound(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColEntityName)
	root.AddChild(sq, nil)
	root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
	root.AddCondition(&asl.FieldValueCondition{
		Field:    column(t, sq, schema.ColEntityName).WithProvider(root),
		Operator: asl.OpEQ,
		Values:   []any{"x'; DROP TABLE ehr.ehr; --"},
	})

	stmt := build(t, &Builder{}, root)

	assert.NotContains(t, stmt.SQL, "DROP")
	assert.Equal(t, `"c"."c_entity_name" = $1`, where(t, stmt.SQL))
	assert.Equal(t, []any{"x'; DROP TABLE ehr.ehr; --"}, stmt.Args)
}

func TestBuild_VoIDCondition(t *testing.T) {
	tests := []struct {
		name     string
		op       asl.Operator
		values   []any
		want     string
		wantArgs []any
	}{
		{
			name:     "plain id",
			op:       asl.OpEQ,
			values:   []any{id1.String()},
			want:     `"c"."c_vo_id" = $1`,
			wantArgs: []any{id1},
		},
		{
			name:     "versioned id",
			op:       asl.OpEQ,
			values:   []any{id1.String() + "::local::2"},
			want:     `("c"."c_vo_id", "c"."c_sys_version") = ($1, $2)`,
			wantArgs: []any{id1, int64(2)},
		},
		{
			name:     "plain ids",
			op:       asl.OpIn,
			values:   []any{id1.String(), id2.String()},
			want:     `"c"."c_vo_id" IN ($1, $2)`,
			wantArgs: []any{id1, id2},
		},
		{
			name:     "mixed ids",
			op:       asl.OpIn,
			values:   []any{id1.String(), id2.String() + "::local::3"},
			want:     `("c"."c_vo_id" = $1 OR ("c"."c_vo_id", "c"."c_sys_version") = ($2, $3))`,
			wantArgs: []any{id1, id2, int64(3)},
		},
		{
			name:     "not equal versioned",
			op:       asl.OpNEQ,
			values:   []any{id1.String() + "::local::1"},
			want:     `("c"."c_vo_id", "c"."c_sys_version") <> ($1, $2)`,
			wantArgs: []any{id1, int64(1)},
		},
		{
			name:   "invalid id",
			op:     asl.OpEQ,
			values: []any{"not-a-uuid"},
			want:   `false`,
		},
		{
			name:   "invalid id not equal",
			op:     asl.OpNEQ,
			values: []any{"not-a-uuid"},
			want:   `true`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := asl.NewRootQuery()
			sq := compositionQuery("c", schema.ColVoID, schema.ColSysVersion)
			root.AddChild(sq, nil)
			root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
			root.AddCondition(&asl.FieldValueCondition{
				Field:    asl.NewComplexExtractedColumnField(sq, schema.VoID).WithProvider(root),
				Operator: tt.op,
				Values:   tt.values,
			})

			stmt := build(t, &Builder{}, root)

			assert.Equal(t, tt.want, where(t, stmt.SQL))
			assert.Equal(t, tt.wantArgs, stmt.Args)
		})
	}
}

func TestBuild_ArchetypeNodeIDCondition(t *testing.T) {
	m := rm.Default()
	tests := []struct {
		name     string
		op       asl.Operator
		values   []any
		want     string
		wantArgs []any
	}{
		{
			name:     "archetype id",
			op:       asl.OpEQ,
			values:   []any{rm.TypeAndConcept{Alias: "OB", Concept: ".bp.v2"}},
			want:     `("c"."c_rm_entity" = $1 AND "c"."c_entity_concept" = $2)`,
			wantArgs: []any{"OB", ".bp.v2"},
		},
		{
			name:     "node id",
			op:       asl.OpEQ,
			values:   []any{m.FromArchetypeNodeID("at0001")},
			want:     `("c"."c_entity_concept" = $1)`,
			wantArgs: []any{"at0001"},
		},
		{
			name:     "not equal",
			op:       asl.OpNEQ,
			values:   []any{rm.TypeAndConcept{Alias: "OB", Concept: ".bp.v2"}},
			want:     `("c"."c_rm_entity" <> $1 OR "c"."c_entity_concept" <> $2)`,
			wantArgs: []any{"OB", ".bp.v2"},
		},
		{
			name: "any of",
			op:   asl.OpIn,
			values: []any{
				rm.TypeAndConcept{Alias: "OB", Concept: ".bp.v2"},
				rm.TypeAndConcept{Concept: "at0002"},
			},
			want:     `(("c"."c_rm_entity" = $1 AND "c"."c_entity_concept" = $2) OR ("c"."c_entity_concept" = $3))`,
			wantArgs: []any{"OB", ".bp.v2", "at0002"},
		},
		{
			name:     "like with rm type",
			op:       asl.OpLike,
			values:   []any{m.FromArchetypeNodeIDPattern("openEHR-EHR-OBSERVATION.blood*")},
			want:     `("c"."c_rm_entity" = $1 AND "c"."c_entity_concept" LIKE $2::text)`,
			wantArgs: []any{"OB", ".blood%"},
		},
		{
			name:     "like any rm type",
			op:       asl.OpLike,
			values:   []any{m.FromArchetypeNodeIDPattern("openEHR-EHR-*.blood_pressure.v?")},
			want:     `("c"."c_entity_concept" LIKE $1::text)`,
			wantArgs: []any{".blood\\_pressure.v_"},
		},
		{
			name:     "like node id",
			op:       asl.OpLike,
			values:   []any{m.FromArchetypeNodeIDPattern("at000?")},
			want:     `("c"."c_entity_concept" LIKE $1::text)`,
			wantArgs: []any{"at000_"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := asl.NewRootQuery()
			sq := compositionQuery("c", schema.ColVoID, schema.ColRmEntity, schema.ColEntityConcept)
			root.AddChild(sq, nil)
			root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
			root.AddCondition(&asl.FieldValueCondition{
				Field:    asl.NewComplexExtractedColumnField(sq, schema.ArchetypeNodeID).WithProvider(root),
				Operator: tt.op,
				Values:   tt.values,
			})

			stmt := build(t, &Builder{}, root)

			assert.Equal(t, tt.want, where(t, stmt.SQL))
			assert.Equal(t, tt.wantArgs, stmt.Args)
		})
	}
}

func TestBuild_Like(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColEntityName)
	root.AddChild(sq, nil)
	root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
	root.AddCondition(&asl.FieldValueCondition{
		Field:    column(t, sq, schema.ColEntityName).WithProvider(root),
		Operator: asl.OpLike,
		Values:   []any{"Blood*"},
	})

	stmt := build(t, &Builder{}, root)

	assert.Equal(t, `CAST("c"."c_entity_name" AS text) LIKE $1::text`, where(t, stmt.SQL))
	assert.Equal(t, []any{"Blood%"}, stmt.Args)
}

func TestBuild_InvalidLikeIsIllegal(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColEntityName)
	root.AddChild(sq, nil)
	root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
	root.AddCondition(&asl.FieldValueCondition{
		Field:    column(t, sq, schema.ColEntityName).WithProvider(root),
		Operator: asl.OpLike,
		Values:   []any{`Blood\`},
	})

	_, err := (&Builder{}).Build(context.Background(), root)
	require.Error(t, err)
	assert.True(t, aql.IsIllegal(err))
}

func TestBuild_EmptyValueList(t *testing.T) {
	for op, want := range map[asl.Operator]string{
		asl.OpEQ:  "false",
		asl.OpIn:  "false",
		asl.OpNEQ: "true",
	} {
		t.Run(string(op), func(t *testing.T) {
			root := asl.NewRootQuery()
			sq := compositionQuery("c", schema.ColVoID, schema.ColEntityName)
			root.AddChild(sq, nil)
			root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
			root.AddCondition(&asl.FieldValueCondition{
				Field:    column(t, sq, schema.ColEntityName).WithProvider(root),
				Operator: op,
			})

			stmt := build(t, &Builder{}, root)
			assert.Equal(t, want, where(t, stmt.SQL))
		})
	}
}

func pathDataRoot(t *testing.T, join asl.JoinType, multiple bool) *asl.RootQuery {
	t.Helper()
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID)
	data := sq.AddColumn(schema.StructureColumn{Name: schema.ColData, Type: schema.TypeJSON}, "")
	root.AddChild(sq, nil)

	pd := asl.NewPathDataQuery("p", sq, data.WithProvider(root),
		[]aql.PathNode{{Attribute: "context"}}, multiple, nil, schema.TypeJSON)
	root.AddChild(pd, &asl.Join{Left: sq, Type: join})
	root.Selects = []asl.Field{pd.DataField().WithProvider(root)}
	return root
}

func TestBuild_PathDataLateral(t *testing.T) {
	stmt := build(t, &Builder{}, pathDataRoot(t, asl.JoinLeft, false))

	assert.True(t, strings.HasPrefix(stmt.SQL, `SELECT "p"."p_data" FROM (`), stmt.SQL)
	assert.Contains(t, stmt.SQL, `LEFT OUTER JOIN LATERAL (SELECT ("c"."c_data"->`)
	assert.True(t, strings.HasSuffix(stmt.SQL, `) AS "p_data") AS "p" ON true`), stmt.SQL)
}

func TestBuild_PgLljWorkaround(t *testing.T) {
	b := &Builder{PgLljWorkaround: true}

	stmt := build(t, b, pathDataRoot(t, asl.JoinLeft, false))
	assert.Contains(t, stmt.SQL, `LATERAL (SELECT COALESCE(("c"."c_data"->`)

	stmt = build(t, b, pathDataRoot(t, asl.JoinInner, false))
	assert.NotContains(t, stmt.SQL, "COALESCE")

	stmt = build(t, b, pathDataRoot(t, asl.JoinLeft, true))
	assert.Contains(t, stmt.SQL, `LATERAL (SELECT jsonb_array_elements(("c"."c_data"->`)
	assert.NotContains(t, stmt.SQL, "COALESCE")
}

func TestBuild_ObjectDataSubquery(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColEntityIdx)
	sq.Root = true
	root.AddChild(sq, nil)
	obj := asl.NewObjectDataQuery("o", sq, root)
	root.Selects = []asl.Field{&asl.SubqueryField{Query: obj}}

	stmt := build(t, &Builder{}, root)

	want := `SELECT (SELECT jsonb_object_agg(substring("osq"."entity_idx" FROM char_length("c"."c_entity_idx") + 1), "osq"."data")` +
		` FROM "ehr"."comp_data" AS "osq" WHERE "osq"."vo_id" = "c"."c_vo_id") FROM (`
	assert.True(t, strings.HasPrefix(stmt.SQL, want), stmt.SQL)
}

func TestBuild_ObjectDataBelowRoot(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColEntityIdx, schema.ColNum, schema.ColNumCap)
	root.AddChild(sq, nil)
	obj := asl.NewObjectDataQuery("o", sq, root)
	root.Selects = []asl.Field{&asl.SubqueryField{Query: obj}}

	stmt := build(t, &Builder{}, root)

	assert.Contains(t, stmt.SQL, `"osq"."num" BETWEEN "c"."c_num" AND COALESCE("c"."c_num_cap", "c"."c_num")`)
}

func TestBuild_TemplateOrder(t *testing.T) {
	zeta := knowledge.Template{UUID: id1, TemplateID: "Zeta report"}
	alpha := knowledge.Template{UUID: id2, TemplateID: "alpha report"}

	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColTemplateID)
	root.AddChild(sq, nil)
	tmpl := column(t, sq, schema.ColTemplateID)
	tmpl.Extracted = schema.TemplateID
	root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
	root.OrderBy = []asl.OrderByField{{Field: tmpl.WithProvider(root), Direction: aql.Desc}}

	stmt := build(t, &Builder{Knowledge: knowledge.NewMemory(zeta, alpha)}, root)

	assert.True(t, strings.HasSuffix(stmt.SQL,
		` ORDER BY CASE "c"."c_template_id" WHEN $1::uuid THEN 0 WHEN $2::uuid THEN 1 END DESC`), stmt.SQL)
	assert.Equal(t, []any{id2, id1}, stmt.Args)
}

func TestBuild_TemplateOrderWithoutKnowledge(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColTemplateID)
	root.AddChild(sq, nil)
	tmpl := column(t, sq, schema.ColTemplateID)
	tmpl.Extracted = schema.TemplateID
	root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
	root.OrderBy = []asl.OrderByField{{Field: tmpl.WithProvider(root), Direction: aql.Asc}}

	stmt := build(t, &Builder{}, root)

	assert.True(t, strings.HasSuffix(stmt.SQL, ` ORDER BY "c"."c_template_id" ASC`), stmt.SQL)
}

func TestBuild_DvOrderedOrderAndGroup(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID)
	data := sq.AddColumn(schema.StructureColumn{Name: schema.ColData, Type: schema.TypeJSON}, "")
	root.AddChild(sq, nil)
	pd := asl.NewPathDataQuery("p", sq, data.WithProvider(root),
		[]aql.PathNode{{Attribute: "value"}}, false, []string{"DV_QUANTITY"}, schema.TypeJSON)
	root.AddChild(pd, &asl.Join{Left: sq, Type: asl.JoinLeft})

	value := pd.DataField().WithProvider(root)
	root.Selects = []asl.Field{value, &asl.AggregatingField{Function: aql.AggCount}}
	root.GroupBy = []asl.Field{value}
	root.GroupByDvOrderedMagnitude = []asl.Field{value}
	root.OrderBy = []asl.OrderByField{{Field: value, Direction: aql.Asc}}

	stmt := build(t, &Builder{}, root)

	assert.True(t, strings.HasPrefix(stmt.SQL, `SELECT "p"."p_data", count(*) FROM`), stmt.SQL)
	assert.True(t, strings.HasSuffix(stmt.SQL,
		` GROUP BY "p"."p_data", jsonb_dv_ordered_magnitude("p"."p_data") ORDER BY jsonb_dv_ordered_magnitude("p"."p_data") ASC`), stmt.SQL)
}

func TestBuild_DvOrderedCondition(t *testing.T) {
	m := rm.Default()
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID)
	data := sq.AddColumn(schema.StructureColumn{Name: schema.ColData, Type: schema.TypeJSON}, "")
	root.AddChild(sq, nil)
	root.Selects = []asl.Field{column(t, sq, schema.ColVoID).WithProvider(root)}
	root.AddCondition(&asl.DvOrderedValueCondition{
		Field:    data.WithProvider(root),
		Types:    []string{"DV_QUANTITY", "DV_COUNT"},
		Operator: asl.OpGT,
		Values:   []any{int64(120)},
	})

	stmt := build(t, &Builder{}, root)

	q, _ := m.TypeAlias("DV_QUANTITY")
	co, _ := m.TypeAlias("DV_COUNT")
	tp, err := m.AttributeAlias("_type")
	require.NoError(t, err)
	want := `(("c"."c_data"->>'` + tp + `') IN ('` + q + `', '` + co + `') AND jsonb_dv_ordered_magnitude("c"."c_data") > $1)`
	assert.Equal(t, want, where(t, stmt.SQL))
	assert.Equal(t, []any{int64(120)}, stmt.Args)
}

func TestBuild_AggregateOnExtractedColumn(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColEntityName)
	root.AddChild(sq, nil)
	name := column(t, sq, schema.ColEntityName)
	name.Extracted = schema.NameValue
	root.Selects = []asl.Field{&asl.AggregatingField{Function: aql.AggMax, Base: name.WithProvider(root)}}

	_, err := (&Builder{}).Build(context.Background(), root)
	require.Error(t, err)
	assert.True(t, aql.IsIllegal(err))

	root.Selects = []asl.Field{&asl.AggregatingField{Function: aql.AggCount, Distinct: true, Base: name.WithProvider(root)}}
	stmt := build(t, &Builder{}, root)
	assert.True(t, strings.HasPrefix(stmt.SQL, `SELECT count(DISTINCT "c"."c_entity_name") FROM`), stmt.SQL)
}

func TestBuild_RootConceptSelect(t *testing.T) {
	root := asl.NewRootQuery()
	sq := compositionQuery("c", schema.ColVoID, schema.ColRootConcept)
	root.AddChild(sq, nil)
	rc := column(t, sq, schema.ColRootConcept)
	rc.Extracted = schema.RootConcept
	root.Selects = []asl.Field{rc.WithProvider(root)}

	stmt := build(t, &Builder{}, root)

	assert.True(t, strings.HasPrefix(stmt.SQL, `SELECT ('openEHR-EHR-COMPOSITION' || "c"."c_root_concept") FROM`), stmt.SQL)
}

func TestBuild_FolderItems(t *testing.T) {
	root := asl.NewRootQuery()
	folder := asl.NewStructureQuery("f", schema.RelationFolder, schema.StructureColumnsFor(schema.RelationFolder), []string{"FOLDER"}, nil, "", false)
	folder.AddField(asl.NewFolderItemIDField(folder))
	root.AddChild(folder, nil)
	comp := compositionQuery("c", schema.ColVoID)
	items, ok := asl.FindField(folder, folder, asl.FolderItemIDColumn)
	require.True(t, ok)
	root.AddChild(comp, &asl.Join{Left: folder, Type: asl.JoinInner, Conditions: []asl.Condition{
		&asl.FolderItemJoinCondition{
			ItemIDs: items.WithProvider(root),
			VoID:    column(t, comp, schema.ColVoID).WithProvider(root),
		},
	}})
	root.Selects = []asl.Field{column(t, comp, schema.ColVoID).WithProvider(root)}

	stmt := build(t, &Builder{}, root)

	assert.Contains(t, stmt.SQL, `AS "item_id_values" FROM "ehr"."ehr_folder_data" AS "root") AS "fsq"`)
	assert.Contains(t, stmt.SQL, ` ON "c"."c_vo_id" = ANY("f"."f_item_id_values")`)
}
