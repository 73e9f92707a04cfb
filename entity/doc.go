// Package entity maintains the merged knowledge graph of an analysis
// session: identity → the set of component instances attached to it.
//
// Entities are never deleted mid-run; they only grow as collectors attach new
// components or refine existing ones. Merging is field-level and additive: a
// field set in the incoming instance lands on the entity, a field absent in
// the incoming instance leaves the existing value untouched. Partial,
// repeated descriptions of the same object by different collectors therefore
// accumulate instead of clobbering one another.
//
// What happens when two collectors assert different non-absent values for
// the same field is a policy decision, made explicit here rather than left to
// evaluation order: LastWriteWins (the default), FirstWriteWins, or Strict,
// which rejects the conflicting record.
//
// Reads are snapshot-consistent. Merging never mutates a published instance,
// it installs a freshly merged copy, so an Entity obtained from Get or All
// is a stable view no later merge can tear.
package entity
