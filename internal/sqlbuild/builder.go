package sqlbuild

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/roach88/aqlc/internal/asl"
	"github.com/roach88/aqlc/internal/knowledge"
	"github.com/roach88/aqlc/internal/rm"
)

// Statement is a parameterized PostgreSQL query. Args are referenced as
// $1..$n in SQL.
type Statement struct {
	SQL  string
	Args []any
}

// Builder renders the algebra as SQL.
//
// Literal values of conditions, LIMIT and OFFSET are always bound as
// arguments. Only constants of the storage layout (JSON attribute aliases,
// type aliases) appear in the SQL text.
type Builder struct {
	// Model defaults to rm.Default().
	Model *rm.Model
	// Knowledge orders template ids by name. Without it they are ordered by
	// their internal uuid.
	Knowledge knowledge.Lookup
	// PgLljWorkaround wraps the fields of left joined subqueries in
	// COALESCE. It avoids filters in lateral left joins nested in left joins
	// being ignored (PostgreSQL bug #18284).
	PgLljWorkaround bool
	// SystemID completes selected version ids.
	SystemID string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// render holds the state of one Build call.
type render struct {
	*Builder
	ctx    context.Context
	model  *rm.Model
	logger *slog.Logger
	args   []any

	// templates maps template uuids to ids, templateOrder sorts them by id.
	templates     map[uuid.UUID]string
	templateOrder []uuid.UUID
	templatesRead bool
}

// Build renders root. Invalid LIKE patterns are illegal query errors,
// inconsistencies of the algebra internal errors.
func (b *Builder) Build(ctx context.Context, root *asl.RootQuery) (Statement, error) {
	r := &render{Builder: b, ctx: ctx, model: b.Model, logger: b.Logger}
	if r.model == nil {
		r.model = rm.Default()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	sql, err := r.rootQuery(root)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Args: r.args}, nil
}

// arg binds v and returns its placeholder.
func (r *render) arg(v any) string {
	r.args = append(r.args, v)
	return "$" + strconv.Itoa(len(r.args))
}

// typedArg binds v with an explicit cast, for positions where PostgreSQL
// cannot infer the parameter type.
func (r *render) typedArg(v any) string {
	p := r.arg(v)
	switch v.(type) {
	case string:
		return p + "::text"
	case int, int32, int64:
		return p + "::bigint"
	case float32, float64:
		return p + "::numeric"
	case bool:
		return p + "::boolean"
	case uuid.UUID:
		return p + "::uuid"
	default:
		return p
	}
}

// ident quotes a possibly qualified identifier.
func ident(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

// literal quotes a constant of the storage layout.
func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// dataAlias and versionAlias name the tables read by a structure query.
func dataAlias(q asl.Query) string    { return q.Alias() + "sq" }
func versionAlias(q asl.Query) string { return q.Alias() + "_version_sq" }

// attributeAlias returns the JSON key of an RM attribute.
func (r *render) attributeAlias(attr string) string {
	a, err := r.model.AttributeAlias(attr)
	if err != nil {
		return attr
	}
	return a
}

func (r *render) typeAlias(t string) string {
	if a, ok := r.model.TypeAlias(t); ok {
		return a
	}
	return t
}
