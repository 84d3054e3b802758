package asl

import (
	"github.com/roach88/aqlc/internal/schema"
)

// usedColumns records the columns of each structure query read anywhere in
// the algebra.
type usedColumns map[Query]map[string]bool

func (u usedColumns) add(owner Query, columns ...string) {
	if owner == nil {
		return
	}
	set, ok := u[owner]
	if !ok {
		set = make(map[string]bool)
		u[owner] = set
	}
	for _, c := range columns {
		set[c] = true
	}
}

func (u usedColumns) addField(f Field) {
	switch v := f.(type) {
	case nil:
	case *ColumnField:
		u.add(v.Source().Owner, v.Column)
	case *RmPathField:
		u.addField(v.Base)
	case *ConstantField:
	case *AggregatingField:
		u.addField(v.Base)
	case *ComplexExtractedColumnField:
		u.add(v.Source().Owner, v.Columns()...)
	case *SubqueryField:
		base := v.Query.Base
		u.add(base, base.Relation.PrimaryKey()...)
		u.add(base, schema.ColEntityIdx)
		if !base.Root {
			u.add(base, schema.ColNum, schema.ColNumCap)
		}
		for _, c := range v.Filter {
			u.addCondition(c)
		}
	case *FolderItemIDField:
		u.add(v.Source().Owner, FolderItemIDColumn)
	case *StringAggregationField:
		for _, p := range v.Parts {
			u.addField(p)
		}
	}
}

func (u usedColumns) addCondition(c Condition) {
	if c != nil {
		WalkFields(c, u.addField)
	}
}

// Cleanup drops the columns of structure queries nothing reads. vo_id and
// id are kept so no query selects nothing.
func Cleanup(root *RootQuery) {
	used := make(usedColumns)
	for _, f := range root.Selects {
		used.addField(f)
	}
	for _, ob := range root.OrderBy {
		used.addField(ob.Field)
	}
	for _, f := range root.GroupBy {
		used.addField(f)
	}
	for _, f := range root.GroupByDvOrderedMagnitude {
		used.addField(f)
	}
	collectUsed(&root.EncapsulatingQuery, used)

	var prune func(q *EncapsulatingQuery)
	prune = func(q *EncapsulatingQuery) {
		for _, ch := range q.Children {
			switch v := ch.Query.(type) {
			case *StructureQuery:
				keep := used[v]
				v.RemoveFields(func(f Field) bool {
					cf, ok := f.(*ColumnField)
					return !ok || keep[cf.Column]
				})
			case *EncapsulatingQuery:
				prune(v)
			}
		}
	}
	prune(&root.EncapsulatingQuery)
}

func collectUsed(q *EncapsulatingQuery, used usedColumns) {
	for _, c := range q.Conditions {
		used.addCondition(c)
	}
	for _, c := range q.AnyOf {
		used.addCondition(c)
	}
	for _, ch := range q.Children {
		if ch.Join != nil {
			for _, c := range ch.Join.Conditions {
				used.addCondition(c)
			}
		}
		switch v := ch.Query.(type) {
		case *StructureQuery:
			used.add(v, schema.ColVoID, schema.ColID)
		case *EncapsulatingQuery:
			collectUsed(v, used)
		case *PathDataQuery:
			used.addField(v.Data)
		case *FilteringQuery:
			used.addField(v.Source)
		}
	}
}
