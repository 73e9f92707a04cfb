package collector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cairn-forensics/cairn/query"
)

// Registry holds the collectors available to an engine, keyed by name.
// Registration validates the descriptor, so everything the planner reads
// from a registered collector is well formed.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Collector
}

// NewRegistry creates an empty collector registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Collector)}
}

// Register adds a collector. The descriptor must validate and the name must
// be unused.
func (r *Registry) Register(c Collector) error {
	desc := c.Descriptor()
	if err := desc.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[desc.Name]; ok {
		return fmt.Errorf("%w: duplicate collector %q", ErrBadDescriptor, desc.Name)
	}
	r.byID[desc.Name] = c
	return nil
}

// Lookup returns the collector registered under name.
func (r *Registry) Lookup(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[name]
	return c, ok
}

// All returns every registered collector, sorted by name.
func (r *Registry) All() []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Collector, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor().Name < out[j].Descriptor().Name
	})
	return out
}

// Producers returns the collectors with an output satisfying req, sorted by
// ascending cost and then name.
func (r *Registry) Producers(req query.Requirement) []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Collector
	for _, c := range r.byID {
		for _, o := range c.Descriptor().ParsedOutputs() {
			if o.Satisfies(req) {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Descriptor(), out[j].Descriptor()
		if di.Cost != dj.Cost {
			return di.Cost < dj.Cost
		}
		return di.Name < dj.Name
	})
	return out
}

// Len returns the number of registered collectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
