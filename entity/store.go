package entity

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/cairn-forensics/cairn/component"
	"github.com/cairn-forensics/cairn/identity"
)

// Sentinel errors for store operations.
var (
	// ErrNilIdentity indicates a merge against a nil identity.
	ErrNilIdentity = errors.New("entity: nil identity")

	// ErrInvalidInstance indicates a merge of an instance that recorded a
	// construction error.
	ErrInvalidInstance = errors.New("entity: invalid component instance")

	// ErrConflict indicates a field-level merge conflict under the Strict
	// policy: two non-absent values for the same field disagree.
	ErrConflict = errors.New("entity: conflicting field values")
)

// MergePolicy decides what happens when an incoming instance carries a
// non-absent value for a field that already holds a different non-absent
// value.
type MergePolicy string

const (
	// LastWriteWins overwrites the existing value. This matches the
	// implicit behavior of evaluation-order-dependent mergers and is the
	// default.
	LastWriteWins MergePolicy = "last-write-wins"

	// FirstWriteWins keeps the existing value and drops the incoming one.
	FirstWriteWins MergePolicy = "first-write-wins"

	// Strict rejects the merge with ErrConflict, leaving the entity
	// unchanged. The record that carried the conflicting instance is
	// skipped by the runner.
	Strict MergePolicy = "strict"
)

type record struct {
	id         *identity.Identity
	components map[string]*component.Instance
	seq        uint64
}

// Store holds the merged entities of one analysis session.
//
// All writes funnel through Merge under a single lock; collectors may race,
// but merges are serialized and published instances are immutable, so no
// reader ever observes a torn component.
type Store struct {
	mu      sync.Mutex
	policy  MergePolicy
	records map[string]*record // identity token -> record
	order   []*record          // discovery order
	version uint64
}

// NewStore creates an empty per-session entity store with the given merge
// policy. An empty policy means LastWriteWins.
func NewStore(policy MergePolicy) *Store {
	if policy == "" {
		policy = LastWriteWins
	}
	return &Store{policy: policy, records: make(map[string]*record)}
}

// Policy returns the store's merge policy.
func (s *Store) Policy() MergePolicy { return s.policy }

// Merge attaches inst to the entity with the given identity. If the entity
// does not yet carry the component type, the instance is attached as a copy;
// otherwise the merge is field-level: every field set on inst lands on the
// entity, fields absent on inst leave existing values alone, and disagreeing
// non-absent values are resolved by the store's policy.
//
// Merging the same instance twice leaves the entity unchanged after the
// first merge (idempotence).
func (s *Store) Merge(id *identity.Identity, inst *component.Instance) error {
	if id == nil {
		return ErrNilIdentity
	}
	if inst == nil || inst.Len() == 0 {
		return nil
	}
	if err := inst.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstance, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id.Token()]
	if !ok {
		rec = &record{
			id:         id,
			components: make(map[string]*component.Instance),
			seq:        uint64(len(s.order)),
		}
		s.records[id.Token()] = rec
		s.order = append(s.order, rec)
	}

	existing, ok := rec.components[inst.Name()]
	if !ok {
		rec.components[inst.Name()] = inst.Clone()
		s.version++
		return nil
	}

	merged, changed, err := s.mergeFields(existing, inst)
	if err != nil {
		return err
	}
	if changed {
		rec.components[inst.Name()] = merged
		s.version++
	}
	return nil
}

// mergeFields produces a fresh instance combining existing and incoming.
// The existing instance is never mutated: published views stay stable.
func (s *Store) mergeFields(existing, incoming *component.Instance) (*component.Instance, bool, error) {
	merged := existing.Clone()
	changed := false
	for _, name := range incoming.FieldNames() {
		newVal, _ := incoming.Get(name)
		oldVal, present := existing.Get(name)
		if !present {
			merged.Set(name, newVal)
			changed = true
			continue
		}
		if component.Equal(oldVal, newVal) {
			continue
		}
		switch s.policy {
		case FirstWriteWins:
			// keep oldVal
		case Strict:
			return nil, false, fmt.Errorf("%w: %s/%s: %v vs %v",
				ErrConflict, incoming.Name(), name, oldVal, newVal)
		default: // LastWriteWins
			merged.Set(name, newVal)
			changed = true
		}
	}
	if err := merged.Err(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidInstance, err)
	}
	return merged, changed, nil
}

// Get returns the current merged view of the entity with the given identity.
func (s *Store) Get(id *identity.Identity) (*Entity, bool) {
	if id == nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id.Token()]
	if !ok {
		return nil, false
	}
	return snapshot(rec), true
}

// All returns a lazy, restartable sequence over a snapshot of the store
// taken at call time, in discovery order. Merges that happen after the call
// are not reflected; each restart of the sequence replays the same snapshot.
func (s *Store) All() iter.Seq[*Entity] {
	s.mu.Lock()
	views := make([]*Entity, len(s.order))
	for i, rec := range s.order {
		views[i] = snapshot(rec)
	}
	s.mu.Unlock()

	return func(yield func(*Entity) bool) {
		for _, e := range views {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of entities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Version returns a counter that increases on every merge that changed the
// store. Callers can compare two readings to tell whether anything was
// merged in between, and a merge that changes nothing leaves it unchanged.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// snapshot captures a stable view of a record. Caller holds s.mu. Instances
// are immutable once published, so a shallow copy of the component map
// suffices.
func snapshot(rec *record) *Entity {
	components := make(map[string]*component.Instance, len(rec.components))
	for name, inst := range rec.components {
		components[name] = inst
	}
	return &Entity{id: rec.id, components: components, seq: rec.seq}
}
