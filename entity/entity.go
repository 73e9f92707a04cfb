package entity

import (
	"sort"

	"github.com/cairn-forensics/cairn/component"
	"github.com/cairn-forensics/cairn/identity"
)

// Entity is a read-only view of one entity at the moment it was fetched:
// its identity plus the component instances attached so far. The view is
// stable; merges that happen after the fetch are not reflected.
type Entity struct {
	id         *identity.Identity
	components map[string]*component.Instance
	seq        uint64
}

// Identity returns the entity's stable identity.
func (e *Entity) Identity() *identity.Identity { return e.id }

// Has reports whether a component of the given type is attached.
func (e *Entity) Has(componentType string) bool {
	_, ok := e.components[componentType]
	return ok
}

// Component returns the attached instance of the given component type.
func (e *Entity) Component(componentType string) (*component.Instance, bool) {
	inst, ok := e.components[componentType]
	return inst, ok
}

// ComponentTypes returns the attached component type names, sorted.
func (e *Entity) ComponentTypes() []string {
	names := make([]string, 0, len(e.components))
	for name := range e.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attr resolves an attribute path such as "File/path" against the entity.
// Missing components, absent fields, and malformed paths all report
// (nil, false): forensic data is routinely incomplete and lookups must
// degrade, not fail.
func (e *Entity) Attr(path string) (any, bool) {
	p, err := component.ParsePath(path)
	if err != nil {
		return nil, false
	}
	inst, ok := e.components[p.Component]
	if !ok {
		return nil, false
	}
	return inst.Get(p.Field)
}
