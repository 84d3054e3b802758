package knowledge

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Template is an operational template known to the server.
type Template struct {
	// UUID is the internal id stored in comp_version.template_id.
	UUID       uuid.UUID `yaml:"uuid"`
	TemplateID string    `yaml:"template_id"`
	// Archetypes are the archetype ids used anywhere in the template,
	// including the root COMPOSITION archetype.
	Archetypes []string `yaml:"archetypes"`
}

// Contains reports whether every archetype id of path occurs in the template.
func (t Template) Contains(path []string) bool {
	for _, a := range path {
		if !slices.Contains(t.Archetypes, a) {
			return false
		}
	}
	return true
}

// Lookup is the read-only view of the template cache the compiler uses.
// Implementations must be safe for concurrent use.
type Lookup interface {
	// TemplatesContaining returns the templates using all archetypes of
	// path, ordered by template id. An empty path matches every template.
	TemplatesContaining(ctx context.Context, path []string) ([]Template, error)
	// TemplateUUID resolves a template id to its internal id.
	TemplateUUID(ctx context.Context, templateID string) (uuid.UUID, bool, error)
	// TemplateIDs returns the template id of every known internal id.
	TemplateIDs(ctx context.Context) (map[uuid.UUID]string, error)
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// ReadTemplates decodes a YAML template list. Missing uuids are derived
// from the template id so fixtures stay stable across runs.
func ReadTemplates(r io.Reader) ([]Template, error) {
	var f templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	seen := make(map[string]bool, len(f.Templates))
	for i := range f.Templates {
		t := &f.Templates[i]
		if t.TemplateID == "" {
			return nil, fmt.Errorf("templates[%d]: template_id is required", i)
		}
		if seen[t.TemplateID] {
			return nil, fmt.Errorf("templates[%d]: duplicate template_id %q", i, t.TemplateID)
		}
		seen[t.TemplateID] = true
		if t.UUID == uuid.Nil {
			t.UUID = DeriveUUID(t.TemplateID)
		}
	}
	return f.Templates, nil
}

// DeriveUUID returns the name-based UUID used for templates without an
// explicit internal id.
func DeriveUUID(templateID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("template:"+templateID))
}

// Memory is an in-memory Lookup. The zero value knows no templates.
type Memory struct {
	templates []Template
}

// NewMemory returns a Lookup over the given templates.
func NewMemory(templates ...Template) *Memory {
	ts := slices.Clone(templates)
	sort.Slice(ts, func(i, j int) bool { return ts[i].TemplateID < ts[j].TemplateID })
	return &Memory{templates: ts}
}

func (m *Memory) TemplatesContaining(_ context.Context, path []string) ([]Template, error) {
	var out []Template
	for _, t := range m.templates {
		if t.Contains(path) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) TemplateUUID(_ context.Context, templateID string) (uuid.UUID, bool, error) {
	for _, t := range m.templates {
		if t.TemplateID == templateID {
			return t.UUID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (m *Memory) TemplateIDs(_ context.Context) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(m.templates))
	for _, t := range m.templates {
		out[t.UUID] = t.TemplateID
	}
	return out, nil
}
