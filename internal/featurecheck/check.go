package featurecheck

import (
	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/config"
	"github.com/roach88/aqlc/internal/rm"
)

// Checker validates queries against the supported subset.
//
// The zero value checks against the default RM with FOLDER support
// disabled and an empty system id.
type Checker struct {
	// SystemID is compared with the system part of uid::system::version
	// identifiers.
	SystemID string
	// FolderEnabled allows FOLDER containments.
	FolderEnabled bool
	// Model defaults to rm.Default().
	Model *rm.Model
}

// New returns a checker configured from opts.
func New(opts config.Options) *Checker {
	return &Checker{SystemID: opts.SystemID, FolderEnabled: opts.FolderEnabled}
}

func (c *Checker) model() *rm.Model {
	if c.Model == nil {
		return rm.Default()
	}
	return c.Model
}

// Check returns the first unsupported construct found in q, checking FROM,
// SELECT, WHERE and ORDER BY in that order.
func (c *Checker) Check(q *aql.Query) error {
	checks := []func(*aql.Query) error{
		c.checkFrom,
		c.checkSelect,
		c.checkWhere,
		c.checkOrderBy,
	}
	for _, check := range checks {
		if err := check(q); err != nil {
			return err
		}
	}
	return nil
}
