package objmodel

// Ref is a detached structure reference: a type name and address with no
// backing address space. Restored archives use it where a live Object was
// recorded, so the provenance of a fact survives even though the memory
// behind it is gone.
type Ref struct {
	Type string
	Addr uint64
}

func (r Ref) TypeName() string { return r.Type }

func (r Ref) Address() uint64 { return r.Addr }

// Field always reports absent; a Ref carries no data.
func (r Ref) Field(name string) Value { return Absent() }

// Cast always fails; there is no address space to reinterpret.
func (r Ref) Cast(typeName string) (Object, bool) { return nil, false }
