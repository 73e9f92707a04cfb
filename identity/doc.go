// Package identity assigns stable, process-lifetime-unique identities to the
// entities discovered during an analysis session.
//
// An identity is only ever produced from a canonical Key: a set of
// (attribute path, value) pairs such as {"File/path": "/tmp/x.sock"} or the
// composite key an event uses ({"Event/actor": ..., "Event/action": ...}).
// Identify is memoized: two collectors that independently discover the same
// socket through the same key converge on the same identity, which is what
// lets redundant collectors cooperate instead of duplicating entities.
//
// Alias binds a second key to an existing identity for the case where a later
// collector learns another name for an object it has already seen. Binding a
// key that already resolves to a different identity is a contract violation
// in the calling collector and fails with ErrConflict.
//
// A Store is scoped to one session. All operations are atomic with respect to
// concurrent callers: two racing Identify calls for the same key return the
// same identity.
package identity
