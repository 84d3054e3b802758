package prepass

import (
	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/config"
)

// Page carries the request-level paging parameters. Nil means absent.
type Page struct {
	Fetch  *int64 `json:"fetch,omitempty" yaml:"fetch,omitempty"`
	Offset *int64 `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// ReconcileLimit returns a copy of q whose LIMIT and OFFSET combine the
// query clauses, the request page and the configured bounds.
//
// A zero bound in opts means unbounded; a zero default limit means no
// limit is added.
func ReconcileLimit(q *aql.Query, page Page, opts config.Options) (*aql.Query, error) {
	if q.Limit != nil && opts.MaxLimit > 0 && *q.Limit > opts.MaxLimit {
		return nil, aql.NewPaginationError("Query LIMIT %d exceeds maximum limit %d", *q.Limit, opts.MaxLimit)
	}
	if page.Fetch != nil && opts.MaxFetch > 0 && *page.Fetch > opts.MaxFetch {
		return nil, aql.NewPaginationError("Fetch parameter %d exceeds maximum fetch %d", *page.Fetch, opts.MaxFetch)
	}

	var limit *int64
	switch {
	case page.Fetch == nil:
		if page.Offset != nil {
			return nil, aql.NewPaginationError("Query parameter for offset provided, but no fetch parameter")
		}
		limit = q.Limit
	case q.Limit == nil && q.Offset == nil:
		limit = page.Fetch
	case opts.FetchPrecedence == config.FetchMinFetch:
		// q.Offset is nil past this check, so q.Limit is set.
		if q.Offset != nil {
			return nil, aql.NewPaginationError("Query contains a OFFSET clause, fetch parameter must not be used (with fetch precedence MIN_FETCH)")
		}
		limit = ptr(min(*q.Limit, *page.Fetch))
	case q.Limit == nil:
		return nil, aql.NewPaginationError("Query contains a OFFSET clause, fetch and offset parameters must not be used (with fetch precedence REJECT)")
	default:
		return nil, aql.NewPaginationError("Query contains a LIMIT clause, fetch and offset parameters must not be used (with fetch precedence REJECT)")
	}

	if limit == nil && opts.DefaultLimit > 0 {
		limit = ptr(opts.DefaultLimit)
	}
	offset := q.Offset
	if page.Offset != nil {
		offset = page.Offset
	}

	out := q.Clone()
	out.Limit = copyPtr(limit)
	out.Offset = copyPtr(offset)
	return out, nil
}

func ptr(v int64) *int64 { return &v }

func copyPtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	return ptr(*p)
}
