package objmodel

import "iter"

// Object is a typed view over a raw kernel structure in the address space.
//
// Implementations must never panic on bad input: unknown fields, unmapped
// casts, and invalid memory all surface as absent values or a false ok.
type Object interface {
	// TypeName returns the structure type this view interprets the memory
	// as, e.g. "socket" or "vnode".
	TypeName() string

	// Address returns the virtual address the structure was read from.
	// Two views of the same memory compare equal by address.
	Address() uint64

	// Field reads a named field. Unknown or unreadable fields yield the
	// absent value.
	Field(name string) Value

	// Cast reinterprets the same memory as another structure type, the way
	// a fileproc's fg_data is recast as a socket or vnode once its type tag
	// is known. Returns false when no such view exists.
	Cast(typeName string) (Object, bool)
}

// WalkList follows an intrusive linked list starting at head, yielding each
// node including head itself. The walk stops at the first absent link, at a
// self-pointer (a common in-kernel terminator), and at any address already
// visited, so a corrupted loop cannot hang the caller.
func WalkList(head Object, linkField string) iter.Seq[Object] {
	return func(yield func(Object) bool) {
		seen := make(map[uint64]bool)
		for cur := head; cur != nil; {
			if seen[cur.Address()] {
				return
			}
			seen[cur.Address()] = true
			if !yield(cur) {
				return
			}
			next, ok := cur.Field(linkField).Object()
			if !ok || next.Address() == cur.Address() {
				return
			}
			cur = next
		}
	}
}
