// Package objmodel defines the raw object-model contract that collectors use
// to interpret kernel data structures in a memory image.
//
// Memory under analysis is untrusted: pointers dangle, lengths lie, and list
// links loop. Every access primitive in this package therefore reports absence
// instead of failing: field reads on invalid structures return an absent
// Value, dereferences of bad pointers return no object, and list walks stop at
// the first terminator, self-pointer, or revisited node. Callers branch on the
// ok result and move on; nothing in this package panics or returns an error
// for bad memory.
//
// The engine itself never touches this package. It exists so that collector
// plugins share one defensive access idiom, and so that tests can stand up a
// synthetic address space (Space) without a real memory image.
//
// Example:
//
//	space := objmodel.NewSpace()
//	sock := space.Add("socket", 0x1000, map[string]objmodel.Value{
//	    "family": objmodel.String("AF_UNIX"),
//	})
//
//	if fam, ok := sock.Field("family").Str(); ok {
//	    // fam == "AF_UNIX"
//	}
//	if _, ok := sock.Field("missing").Int(); !ok {
//	    // absent, not an error
//	}
package objmodel
