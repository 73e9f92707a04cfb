// Package runner executes a collector schedule against a session's stores.
//
// Execution proceeds in passes. In each pass the runner walks the schedule
// rank by rank, decides which steps are runnable, and invokes the runnable
// steps of a rank concurrently. A step runs with the entities matching its
// declared inputs; incremental steps receive only the entities that appeared
// since their previous invocation. The run ends when a full pass leaves the
// entity store unchanged and every step has either completed or quiesced.
//
// Collectors are untrusted in the defensive sense: a record that fails to
// merge is skipped and counted, a panicking collector loses that one
// invocation, and neither aborts the run. Cancellation is honored between
// invocations and yields a report marked incomplete rather than an error.
package runner
