package objmodel

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnavailable is returned by Space.Available when the backing address
// space cannot be read at all. A collection run treats this as fatal for the
// whole session; no collector can make progress without memory.
var ErrUnavailable = errors.New("objmodel: address space unavailable")

// Space is an in-memory address space populated programmatically. It backs
// tests and examples, and serves as the reference implementation of the
// object-model contract for real image readers.
//
// Objects are registered by (address, type); Cast succeeds between any types
// registered at the same address. All methods are safe for concurrent use
// once population is finished.
type Space struct {
	mu      sync.RWMutex
	objects map[uint64]map[string]*staticObject // addr -> type -> object
	err     error
}

// NewSpace returns an empty Space.
func NewSpace() *Space {
	return &Space{objects: make(map[uint64]map[string]*staticObject)}
}

// Available reports whether the address space can be read. A Space marked
// failed via Fail returns the recorded error.
func (s *Space) Available() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Fail marks the space unreadable. Subsequent Available calls return an
// error wrapping ErrUnavailable annotated with reason.
func (s *Space) Fail(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason == nil {
		s.err = ErrUnavailable
		return
	}
	s.err = errors.Join(ErrUnavailable, reason)
}

// Add registers a structure of the given type at addr and returns it.
// Registering a second type at the same address makes the two views
// reachable from each other through Cast.
func (s *Space) Add(typeName string, addr uint64, fields map[string]Value) Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := &staticObject{space: s, typeName: typeName, addr: addr, fields: fields}
	if s.objects[addr] == nil {
		s.objects[addr] = make(map[string]*staticObject)
	}
	s.objects[addr][typeName] = obj
	return obj
}

// Object returns the structure of the given type at addr, if registered.
func (s *Space) Object(typeName string, addr uint64) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[addr][typeName]
	if !ok {
		return nil, false
	}
	return obj, true
}

// ObjectsOfType returns every registered structure of the given type in
// ascending address order. This stands in for a full-memory scan.
func (s *Space) ObjectsOfType(typeName string) []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Object
	for _, byType := range s.objects {
		if obj, ok := byType[typeName]; ok {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address() < out[j].Address() })
	return out
}

type staticObject struct {
	space    *Space
	typeName string
	addr     uint64
	fields   map[string]Value
}

func (o *staticObject) TypeName() string { return o.typeName }

func (o *staticObject) Address() uint64 { return o.addr }

func (o *staticObject) Field(name string) Value {
	o.space.mu.RLock()
	defer o.space.mu.RUnlock()
	if o.space.err != nil {
		return Absent()
	}
	v, ok := o.fields[name]
	if !ok {
		return Absent()
	}
	return v
}

func (o *staticObject) Cast(typeName string) (Object, bool) {
	return o.space.Object(typeName, o.addr)
}
