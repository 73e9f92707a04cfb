// Package query compiles the small predicate language collectors and
// callers use to describe sets of entities.
//
// Three primitive forms, conjoinable with "and":
//
//	has component Process
//	MemoryObject/type is 'socket'
//	Handle/process is Process/self
//
// The first tests component membership, the second compares an attribute
// against a literal (single-quoted string or bare integer), the third
// compares two attributes of the same entity. Unknown components, absent
// fields, and malformed paths evaluate to "no match", never to an error:
// a query over incomplete forensic data filters, it does not fail the run.
//
// Richer predicates use CEL (github.com/google/cel-go) behind the "cel:"
// prefix, with the entity exposed as a map of component name to field map:
//
//	cel:"OSILayer4" in entity && entity.OSILayer4.dst_port == 443
//
// CEL queries are accepted by Compile and Select but not in collector
// dependency declarations, since the planner cannot derive producer/consumer
// edges from an opaque expression.
package query
