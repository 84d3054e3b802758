package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/aqlc/internal/knowledge"
)

// Templates returns the template fixture shared by tests. UUIDs are
// derived from the template ids, so they are stable across runs.
func Templates() []knowledge.Template {
	return []knowledge.Template{
		{
			UUID:       knowledge.DeriveUUID("vital_signs.v1"),
			TemplateID: "vital_signs.v1",
			Archetypes: []string{
				"openEHR-EHR-COMPOSITION.encounter.v1",
				"openEHR-EHR-OBSERVATION.blood_pressure.v2",
				"openEHR-EHR-OBSERVATION.pulse.v2",
			},
		},
		{
			UUID:       knowledge.DeriveUUID("lab_report.v1"),
			TemplateID: "lab_report.v1",
			Archetypes: []string{
				"openEHR-EHR-COMPOSITION.report-result.v1",
				"openEHR-EHR-OBSERVATION.laboratory_test_result.v1",
			},
		},
	}
}

// Knowledge returns an in-memory lookup over Templates.
func Knowledge() *knowledge.Memory {
	return knowledge.NewMemory(Templates()...)
}

// CountingLookup wraps a lookup and counts the calls per method.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type CountingLookup struct {
	knowledge.Lookup

	mu    sync.Mutex
	calls map[string]int
}

// NewCountingLookup wraps l.
func NewCountingLookup(l knowledge.Lookup) *CountingLookup {
	return &CountingLookup{Lookup: l, calls: make(map[string]int)}
}

func (c *CountingLookup) count(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
}

// Calls returns how often method was called.
func (c *CountingLookup) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *CountingLookup) TemplatesContaining(ctx context.Context, path []string) ([]knowledge.Template, error) {
	c.count("TemplatesContaining")
	return c.Lookup.TemplatesContaining(ctx, path)
}

func (c *CountingLookup) TemplateUUID(ctx context.Context, templateID string) (uuid.UUID, bool, error) {
	c.count("TemplateUUID")
	return c.Lookup.TemplateUUID(ctx, templateID)
}

func (c *CountingLookup) TemplateIDs(ctx context.Context) (map[uuid.UUID]string, error) {
	c.count("TemplateIDs")
	return c.Lookup.TemplateIDs(ctx)
}
