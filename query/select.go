package query

import (
	"iter"

	"github.com/cairn-forensics/cairn/entity"
)

// Select compiles src and returns a lazy sequence of the store's entities
// that match it. The store is snapshotted when the sequence is iterated, so
// entities merged after a Select call appear on the next iteration.
func Select(store *entity.Store, src string) (iter.Seq[*entity.Entity], error) {
	q, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return q.Select(store), nil
}

// Select returns the store's matching entities as a lazy sequence.
func (q *Query) Select(store *entity.Store) iter.Seq[*entity.Entity] {
	return func(yield func(*entity.Entity) bool) {
		for e := range store.All() {
			ok, err := q.Match(e)
			if err != nil || !ok {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
