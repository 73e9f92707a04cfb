// Package cairn is an entity collection engine for memory forensics.
//
// Instead of asking "what does the process list say", cairn asks "what do we
// know about this thing". Every fact extracted from a memory image is
// recorded as a component attached to an entity, and an entity is nothing
// but an opaque identity plus the components that have accumulated on it.
// Two collectors that describe the same process through different kernel
// structures contribute to the same entity, because both resolve the same
// canonical key to the same identity.
//
// # Architecture
//
// The engine is assembled from small packages:
//
//   - component: typed component definitions, the vocabulary of facts
//   - identity: canonical keys, memoized identities, aliasing
//   - entity: the per-session store with field-level additive merging
//   - query: the selection language collectors and callers filter with
//   - collector: the contract between the engine and extraction code
//   - plan: demand-driven scheduling of collectors
//   - runner: pass-based execution with incremental re-runs
//   - objmodel: typed views over raw kernel structures
//   - snapshot: archival of the entity graph, with a Redis backend
//   - catalog: etcd-based discovery of analysis workers
//
// # Usage
//
// Build an Engine once, with the collectors for the image's platform, then
// open a Session per analysis:
//
//	engine, err := cairn.New(
//	    cairn.WithCollectors(processes, handles, sockets, files),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session := engine.NewSession()
//	defer session.Close()
//
//	result, err := session.Collect(ctx, "Connection")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range result.Entities {
//	    family, _ := e.Attr("Connection/protocol_family")
//	    fmt.Println(e.Identity(), family)
//	}
//
// Collect plans backwards from the requested component types: only the
// collectors whose outputs are demanded, directly or transitively, are
// scheduled. Results accumulate in the session, so a second Collect call
// reuses everything the first one found.
//
// # Queries
//
// Entities are selected with a small conjunctive language:
//
//	has component Process
//	Process/command is 'launchd'
//	has component Socket and Socket/type is 'unix'
//
// or, prefixed with "cel:", with a CEL expression over the entity's
// components. See the query package for the full grammar.
package cairn
