package compile

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/asl"
	"github.com/roach88/aqlc/internal/config"
	"github.com/roach88/aqlc/internal/explain"
	"github.com/roach88/aqlc/internal/featurecheck"
	"github.com/roach88/aqlc/internal/knowledge"
	"github.com/roach88/aqlc/internal/prepass"
	"github.com/roach88/aqlc/internal/querywrapper"
	"github.com/roach88/aqlc/internal/rm"
	"github.com/roach88/aqlc/internal/sqlbuild"
)

// Compiler compiles AQL text into PostgreSQL.
//
// A Compiler holds no per-call state and is safe for concurrent use as long
// as its Knowledge lookup is.
type Compiler struct {
	Options config.Options
	// Knowledge resolves template ids. Nil disables template pruning and
	// orders template ids by their internal uuid.
	Knowledge knowledge.Lookup
	// Model defaults to rm.Default().
	Model *rm.Model
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New returns a compiler for opts without a knowledge lookup.
func New(opts config.Options) *Compiler {
	return &Compiler{Options: opts}
}

// Column describes one select of the AQL query, in select order.
type Column struct {
	Name string                  `json:"name" yaml:"name"`
	Kind querywrapper.SelectKind `json:"kind" yaml:"kind"`
	// Value is the constant of a PRIMITIVE select. PRIMITIVE selects have
	// no SQL column; queries selecting only primitives return one row with
	// the row count instead.
	Value any `json:"value" yaml:"value"`
}

// Result is a compiled query.
type Result struct {
	Statement sqlbuild.Statement
	Columns   []Column
	// AQL is the query after the pre-passes.
	AQL    string
	Limit  *int64
	Offset *int64
	// Plan is the canonical JSON description of the algebra, set in dry run
	// mode. Fingerprint identifies it.
	Plan        []byte
	Fingerprint string
}

// SQLColumns returns the number of columns the statement selects.
func (r *Result) SQLColumns() int {
	n := 0
	for _, c := range r.Columns {
		if c.Kind != querywrapper.SelectPrimitive {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// timings records how long each stage took.
type timings struct {
	start time.Time
	last  time.Time
	attrs []any
}

func newTimings() *timings {
	now := time.Now()
	return &timings{start: now, last: now}
}

func (t *timings) mark(stage string) {
	now := time.Now()
	t.attrs = append(t.attrs, slog.Duration(stage, now.Sub(t.last)))
	t.last = now
}

func (c *Compiler) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Compiler) model() *rm.Model {
	if c.Model == nil {
		return rm.Default()
	}
	return c.Model
}

// Compile compiles query with the given parameters and request page.
//
// Compiling the same inputs against the same knowledge yields the same
// statement.
func (c *Compiler) Compile(ctx context.Context, query string, params map[string]any, page prepass.Page) (*Result, error) {
	log := c.logger()
	res, err := c.compile(ctx, query, params, page)
	if err != nil {
		if aql.IsInternal(err) {
			log.Error("query compilation failed",
				"query", query,
				"error", err,
			)
		}
		return nil, err
	}
	return res, nil
}

func (c *Compiler) compile(ctx context.Context, query string, params map[string]any, page prepass.Page) (*Result, error) {
	log := c.logger()
	m := c.model()
	t := newTimings()

	q, err := aql.Parse(query)
	if err != nil {
		return nil, err
	}
	t.mark("parse")

	if q, err = prepass.RewriteEHRPaths(q); err != nil {
		return nil, err
	}
	if q, err = prepass.SubstituteParameters(q, params); err != nil {
		return nil, err
	}
	if q, err = prepass.ReconcileLimit(q, page, c.Options); err != nil {
		return nil, err
	}
	t.mark("prepass")

	checker := featurecheck.New(c.Options)
	checker.Model = m
	if err := checker.Check(q); err != nil {
		return nil, err
	}
	t.mark("check")

	w, err := querywrapper.Wrap(q, m)
	if err != nil {
		return nil, err
	}
	t.mark("wrap")

	ab := &asl.Builder{Model: m, Knowledge: c.Knowledge, SystemID: c.Options.SystemID}
	root, err := ab.Build(ctx, w)
	if err != nil {
		return nil, err
	}
	t.mark("algebra")

	sb := &sqlbuild.Builder{
		Model:           m,
		Knowledge:       c.Knowledge,
		PgLljWorkaround: c.Options.PgLljWorkaround,
		SystemID:        c.Options.SystemID,
		Logger:          log,
	}
	stmt, err := sb.Build(ctx, root)
	if err != nil {
		return nil, err
	}
	t.mark("sql")

	res := &Result{
		Statement: stmt,
		Columns:   columns(w),
		AQL:       q.Render(),
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	if c.Options.DryRun {
		if err := describe(res, root); err != nil {
			return nil, err
		}
		t.mark("explain")
	}

	log.Debug("compiling query",
		append([]any{"query", query, slog.Duration("total", time.Since(t.start))}, t.attrs...)...,
	)
	log.Info("query compiled",
		"aliases", root.AliasCount,
		"sql_length", len(stmt.SQL),
		"args", len(stmt.Args),
	)
	return res, nil
}

// Check runs the pipeline up to the query wrapper. It reports the errors
// Compile would report for unsupported or illegal queries without building
// a statement.
func (c *Compiler) Check(query string, params map[string]any, page prepass.Page) error {
	q, err := aql.Parse(query)
	if err != nil {
		return err
	}
	if q, err = prepass.RewriteEHRPaths(q); err != nil {
		return err
	}
	if q, err = prepass.SubstituteParameters(q, params); err != nil {
		return err
	}
	if q, err = prepass.ReconcileLimit(q, page, c.Options); err != nil {
		return err
	}
	checker := featurecheck.New(c.Options)
	checker.Model = c.model()
	if err := checker.Check(q); err != nil {
		return err
	}
	_, err = querywrapper.Wrap(q, c.model())
	return err
}

func columns(w *querywrapper.QueryWrapper) []Column {
	cols := make([]Column, len(w.Selects))
	for i, s := range w.Selects {
		cols[i] = Column{Name: s.Name(), Kind: s.Kind}
		if p, ok := s.Primitive(); ok {
			cols[i].Value = p.Value()
		}
	}
	return cols
}

func describe(res *Result, root *asl.RootQuery) error {
	plan, err := explain.Describe(root)
	if err != nil {
		return aql.WrapInternalError(err, "describe plan")
	}
	data, err := explain.Marshal(plan)
	if err != nil {
		return aql.WrapInternalError(err, "marshal plan")
	}
	fp, err := explain.Fingerprint(plan)
	if err != nil {
		return aql.WrapInternalError(err, "fingerprint plan")
	}
	res.Plan, res.Fingerprint = data, fp
	return nil
}
