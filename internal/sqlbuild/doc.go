// Package sqlbuild lowers the query algebra to a single PostgreSQL
// statement.
//
// Every structure query becomes a subquery over its data table, joined to
// the version table when version columns are read. Path data and filtering
// queries are LATERAL subqueries, object data is a correlated subquery in
// the select list. Values from the query are bound as $n arguments.
package sqlbuild
