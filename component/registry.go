package component

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps component type names to their definitions.
//
// A Registry is populated once at process startup and read concurrently by
// every session afterwards; Register is safe for concurrent use but intended
// only for the initialization phase.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// NewStandardRegistry creates a registry pre-populated with the built-in
// forensic component catalog (StandardDefinitions).
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	for _, def := range StandardDefinitions() {
		// The standard catalog is validated by tests; a failure here is a
		// build defect, not a runtime condition.
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a definition after validating it. Registering a name twice
// is an error: definitions are immutable once published.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[def.Name]; ok {
		return fmt.Errorf("%w: component %q already registered", ErrInvalidDefinition, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Lookup returns the definition for the given component type name.
func (r *Registry) Lookup(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return def, nil
}

// Has reports whether a component type is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// Names returns all registered component type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
