// Package component defines the typed component schemas that make up an
// entity's shape.
//
// A component is a named record of typed fields such as File, Connection or
// Handle, and an entity is nothing more than an identity plus the set of
// component instances attached to it. There is no inheritance between component types:
// an AF_UNIX socket is an entity that happens to carry Connection, Socket,
// and Named components at once, not an instance of some socket class.
//
// The Registry holds the component definitions for a deployment and is
// populated once at startup, either from the built-in forensic catalog
// (StandardDefinitions) or from YAML files (LoadDefinitions). It is passed
// explicitly into each session rather than accessed as ambient global state.
//
// An Instance is a partial record: fields that were never set are absent,
// which is distinct from being set to a zero value. Absence is what makes
// merging additive: a collector that only knows a file's path produces an
// instance whose timestamps are absent, and a later collector fills the
// timestamps in without touching the path.
package component
