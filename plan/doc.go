// Package plan turns a set of requested component types into an ordered
// schedule of collectors.
//
// Planning is demand driven. Starting from the requested types, it pulls in
// every registered collector whose outputs can satisfy the demand, then the
// producers of those collectors' inputs, and so on until the closure is
// complete. Collectors nothing demands are never included, no matter how
// cheap they are. The closure is then topologically sorted by the
// supplier/consumer edges; collectors at the same depth are ordered by
// ascending cost, then name, so cheap producers run before expensive ones.
//
// Dependency cycles do not fail the plan. A cycle is broken by releasing one
// of its members early, preferring collectors that can re-run incrementally,
// since those will pick up the late-arriving inputs on a later pass.
package plan
