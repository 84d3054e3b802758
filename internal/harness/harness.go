package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/compile"
	"github.com/roach88/aqlc/internal/config"
	"github.com/roach88/aqlc/internal/knowledge"
)

// Harness compiles the cases of scenarios. Cases of one scenario compile
// concurrently on a shared compiler.
type Harness struct {
	logger   *slog.Logger
	parallel int
}

// New returns a harness logging to logger. A nil logger discards output.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{logger: logger, parallel: runtime.GOMAXPROCS(0)}
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true if every assertion of every case held.
	Pass   bool         `json:"pass"`
	Cases  []CaseResult `json:"cases"`
	Errors []string     `json:"errors,omitempty"`
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name    string           `json:"name"`
	SQL     string           `json:"sql,omitempty"`
	Args    []any            `json:"args,omitempty"`
	AQL     string           `json:"aql,omitempty"`
	Columns []compile.Column `json:"columns,omitempty"`
	Limit   *int64           `json:"limit,omitempty"`
	Offset  *int64           `json:"offset,omitempty"`
	// ErrorKind and Error are set when compilation failed.
	ErrorKind aql.ErrorKind `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes a scenario with a discarding logger.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	return New(nil).Run(ctx, s)
}

// Run compiles every case of s and evaluates its assertions. The returned
// error reports a scenario that could not be set up; failed assertions are
// recorded in the result.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	comp, err := h.compiler(s)
	if err != nil {
		return nil, err
	}

	results := make([]CaseResult, len(s.Cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallel)
	for i, c := range s.Cases {
		g.Go(func() error {
			h.logger.Debug("running case", "scenario", s.Name, "case", c.Name)
			results[i] = compileCase(gctx, comp, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run %s: %w", s.Name, err)
	}

	res := &Result{Pass: true, Cases: results}
	for i, c := range s.Cases {
		for _, msg := range evaluate(c, results[i]) {
			res.addError("%s/%s: %s", s.Name, c.Name, msg)
		}
	}
	return res, nil
}

func compileCase(ctx context.Context, comp *compile.Compiler, c Case) CaseResult {
	cr := CaseResult{Name: c.Name}
	out, err := comp.Compile(ctx, c.Query, c.Params, c.Page)
	if err != nil {
		cr.ErrorKind = aql.KindOf(err)
		cr.Error = err.Error()
		return cr
	}
	cr.SQL = out.Statement.SQL
	cr.Args = out.Statement.Args
	cr.AQL = out.AQL
	cr.Columns = out.Columns
	cr.Limit, cr.Offset = out.Limit, out.Offset
	return cr
}

func (h *Harness) compiler(s *Scenario) (*compile.Compiler, error) {
	opts := config.Default()
	if s.Config != "" {
		o, err := config.Load(s.Config)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		opts = o
	}
	comp := &compile.Compiler{Options: opts, Logger: h.logger}
	if s.Templates != "" {
		f, err := os.Open(s.Templates)
		if err != nil {
			return nil, fmt.Errorf("open templates: %w", err)
		}
		defer f.Close()
		templates, err := knowledge.ReadTemplates(f)
		if err != nil {
			return nil, err
		}
		comp.Knowledge = knowledge.NewMemory(templates...)
	}
	return comp, nil
}
