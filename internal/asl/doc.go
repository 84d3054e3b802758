// Package asl builds the intermediate query algebra a wrapped AQL query is
// lowered through on its way to SQL.
//
// The algebra is a tree of queries rooted at a RootQuery:
//
//	RootQuery
//	├── StructureQuery       one FROM containment or path structure node
//	├── EncapsulatingQuery   a join container, e.g. for OR operands
//	├── PathDataQuery        lateral JSON navigation, arrays unnested
//	├── ObjectDataQuery      JSON object aggregation of a structure node
//	└── FilteringQuery       a field filtered by path root predicates
//
// Queries expose Fields. A field is owned by the query it originates from
// and threaded outwards with WithProvider, which copies the field. Queries
// are joined with Conditions; DescendantCondition and PathChildCondition
// carry their expansion into plain field comparisons so the SQL layer only
// renders.
//
// Everything here is built once per compilation and discarded afterwards.
package asl
