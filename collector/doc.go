// Package collector defines the contract between the engine and the code
// that extracts entities from a memory image.
//
// A collector declares, through its Descriptor, what component types it
// produces and what entities it needs as input. The engine uses those
// declarations to schedule collectors in dependency order; a collector never
// calls another collector directly. During a run the engine hands each
// collector the entities matching its declared inputs and consumes the
// records it yields, folding them into the session's entity store.
//
// Collectors are built either by implementing the Collector interface or by
// wrapping a plain function with New:
//
//	sockets := collector.New(collector.Descriptor{
//		Name:    "sockets",
//		Outputs: []string{"Connection", "Socket"},
//		CollectArgs: map[string]string{
//			"handles": "MemoryObject/type is 'socket'",
//		},
//	}, collectSockets)
package collector
