package rm

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed model.yaml
var modelYAML []byte

// Attribute is one attribute of an RM type. Type may name an abstract type.
type Attribute struct {
	Name     string `yaml:"-"`
	Type     string `yaml:"type"`
	Multiple bool   `yaml:"multiple"`
	Nullable bool   `yaml:"nullable"`
}

// Type is an RM type with its inherited attributes flattened in.
type Type struct {
	Name       string
	Parent     string
	Abstract   bool
	Attributes map[string]Attribute
}

type typeDoc struct {
	Abstract   bool                 `yaml:"abstract"`
	Parent     string               `yaml:"parent"`
	Attributes map[string]Attribute `yaml:"attributes"`
}

type modelDoc struct {
	Foundation       []string           `yaml:"foundation"`
	Types            map[string]typeDoc `yaml:"types"`
	TypeAliases      map[string]string  `yaml:"type_aliases"`
	AttributeAliases map[string]string  `yaml:"attribute_aliases"`
}

// Model is the loaded RM type information. It is read-only after Load.
type Model struct {
	types       map[string]*Type
	foundation  map[string]bool
	concrete    map[string][]string // type -> sorted concrete descendants incl. itself
	typeAlias   map[string]string
	attrAlias   map[string]string
	aliasToAttr map[string]string
	// attribute -> parent concrete type -> concrete target types
	typedAttributes map[string]map[string][]string
}

var (
	defaultOnce  sync.Once
	defaultModel *Model
)

// Default returns the model embedded in the binary.
func Default() *Model {
	defaultOnce.Do(func() {
		m, err := Load(modelYAML)
		if err != nil {
			panic(fmt.Sprintf("rm: embedded model is invalid: %v", err))
		}
		defaultModel = m
	})
	return defaultModel
}

// Load parses a model document.
func Load(data []byte) (*Model, error) {
	var doc modelDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}

	m := &Model{
		types:           make(map[string]*Type, len(doc.Types)),
		foundation:      make(map[string]bool, len(doc.Foundation)),
		concrete:        make(map[string][]string),
		typeAlias:       doc.TypeAliases,
		attrAlias:       doc.AttributeAliases,
		aliasToAttr:     make(map[string]string, len(doc.AttributeAliases)),
		typedAttributes: make(map[string]map[string][]string),
	}
	for _, f := range doc.Foundation {
		m.foundation[f] = true
	}
	for attr, alias := range doc.AttributeAliases {
		if other, dup := m.aliasToAttr[alias]; dup {
			return nil, fmt.Errorf("alias %q used by %s and %s", alias, other, attr)
		}
		m.aliasToAttr[alias] = attr
	}
	for _, s := range structureTypes {
		if m.typeAlias == nil {
			m.typeAlias = make(map[string]string)
		}
		m.typeAlias[s.Name] = s.Alias
	}

	for name := range doc.Types {
		if _, err := m.flatten(name, doc.Types, nil); err != nil {
			return nil, err
		}
	}

	// attribute types must resolve
	for _, t := range m.types {
		for _, a := range t.Attributes {
			if m.types[a.Type] == nil && !m.foundation[a.Type] {
				return nil, fmt.Errorf("%s.%s: unknown type %s", t.Name, a.Name, a.Type)
			}
		}
	}

	for name, t := range m.types {
		if !t.Abstract {
			for anc := name; anc != ""; anc = m.types[anc].Parent {
				m.concrete[anc] = append(m.concrete[anc], name)
			}
		}
	}
	for k := range m.concrete {
		sort.Strings(m.concrete[k])
	}

	for name, t := range m.types {
		if t.Abstract {
			continue
		}
		for attrName, a := range t.Attributes {
			byParent := m.typedAttributes[attrName]
			if byParent == nil {
				byParent = make(map[string][]string)
				m.typedAttributes[attrName] = byParent
			}
			byParent[name] = m.ConcreteTypes(a.Type)
		}
	}
	return m, nil
}

func (m *Model) flatten(name string, docs map[string]typeDoc, seen []string) (*Type, error) {
	if t, ok := m.types[name]; ok {
		return t, nil
	}
	if slices.Contains(seen, name) {
		return nil, fmt.Errorf("inheritance cycle at %s", name)
	}
	d, ok := docs[name]
	if !ok {
		return nil, fmt.Errorf("unknown parent type %s", name)
	}
	t := &Type{Name: name, Parent: d.Parent, Abstract: d.Abstract, Attributes: make(map[string]Attribute)}
	if d.Parent != "" {
		p, err := m.flatten(d.Parent, docs, append(seen, name))
		if err != nil {
			return nil, err
		}
		for k, v := range p.Attributes {
			t.Attributes[k] = v
		}
	}
	for k, v := range d.Attributes {
		v.Name = k
		t.Attributes[k] = v
	}
	m.types[name] = t
	return t, nil
}

// Type returns the named type.
func (m *Model) Type(name string) (*Type, bool) {
	t, ok := m.types[name]
	return t, ok
}

// Known reports whether name is an RM or foundation type.
func (m *Model) Known(name string) bool {
	return m.types[name] != nil || m.foundation[name]
}

// IsFoundation reports whether name is a foundation (primitive) type.
func (m *Model) IsFoundation(name string) bool {
	return m.foundation[name]
}

// ConcreteTypes returns the sorted non-abstract types assignable to name.
// Foundation and unknown names resolve to themselves.
func (m *Model) ConcreteTypes(name string) []string {
	if c, ok := m.concrete[name]; ok {
		return slices.Clone(c)
	}
	return []string{name}
}

// IsDescendant reports whether t equals ancestor or inherits from it.
func (m *Model) IsDescendant(t, ancestor string) bool {
	for cur := t; cur != ""; {
		if cur == ancestor {
			return true
		}
		ty := m.types[cur]
		if ty == nil {
			return false
		}
		cur = ty.Parent
	}
	return false
}

// Attribute returns the attribute of a concrete or abstract type.
func (m *Model) Attribute(typeName, attr string) (Attribute, bool) {
	t := m.types[typeName]
	if t == nil {
		return Attribute{}, false
	}
	a, ok := t.Attributes[attr]
	return a, ok
}

// TypedAttribute returns, per concrete parent type owning attr, the concrete
// target types of attr.
func (m *Model) TypedAttribute(attr string) (map[string][]string, bool) {
	byParent, ok := m.typedAttributes[attr]
	return byParent, ok
}

// HasAttribute reports whether any type of the model declares attr.
func (m *Model) HasAttribute(attr string) bool {
	_, ok := m.typedAttributes[attr]
	return ok
}

// TypeAlias returns the storage alias of an RM type.
func (m *Model) TypeAlias(typeName string) (string, bool) {
	a, ok := m.typeAlias[typeName]
	return a, ok
}

// AttributeAlias returns the storage alias of an attribute.
func (m *Model) AttributeAlias(attr string) (string, error) {
	a, ok := m.attrAlias[attr]
	if !ok {
		return "", fmt.Errorf("missing alias for attribute %s", attr)
	}
	return a, nil
}

// AttributeForAlias is the inverse of AttributeAlias.
func (m *Model) AttributeForAlias(alias string) (string, bool) {
	a, ok := m.aliasToAttr[alias]
	return a, ok
}

// DvOrderedTypes returns the concrete descendants of DV_ORDERED.
func (m *Model) DvOrderedTypes() []string {
	return m.ConcreteTypes("DV_ORDERED")
}

// IsDvOrdered reports whether t is a concrete DV_ORDERED subtype.
func (m *Model) IsDvOrdered(t string) bool {
	return m.types[t] != nil && !m.types[t].Abstract && m.IsDescendant(t, "DV_ORDERED")
}
