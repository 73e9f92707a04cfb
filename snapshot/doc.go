// Package snapshot serializes a session's entity graph so collected
// evidence outlives the memory image it came from.
//
// The wire form is JSON. Identities travel as their session tokens and
// cross-entity references are preserved, so a restored graph has the same
// shape as the archived one even though every identity is re-minted on the
// way in. Structure references are archived as type and address only; the
// underlying memory is not part of a snapshot.
//
// Archive stores snapshots in Redis under a configurable key prefix, one
// key per session.
package snapshot
