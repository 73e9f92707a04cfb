package component

import (
	"fmt"
	"sort"
	"time"

	"github.com/cairn-forensics/cairn/identity"
	"github.com/cairn-forensics/cairn/objmodel"
)

// Instance is one partial description of a component attached to an entity.
//
// Fields are set individually and tracked for presence: a field never set is
// absent, and absent fields do not participate in merging. Set is chainable
// so collectors can build records inline:
//
//	inst := component.New(fileDef).
//	    Set("path", "/var/run/mDNSResponder").
//	    Set("type", "socket")
//	if err := inst.Err(); err != nil { ... }
//
// A type-mismatched Set records the first error instead of panicking; the
// entity store rejects instances with a recorded error, so one malformed
// field invalidates exactly the record that carried it.
type Instance struct {
	def    Definition
	fields map[string]any
	err    error
}

// New creates an empty instance of the given definition.
func New(def Definition) *Instance {
	return &Instance{def: def, fields: make(map[string]any)}
}

// Definition returns the schema this instance conforms to.
func (i *Instance) Definition() Definition { return i.def }

// Name returns the component type name.
func (i *Instance) Name() string { return i.def.Name }

// Set assigns a field value after normalizing it against the declared type.
// Setting a nil value is a no-op, so optional lookups can be passed straight
// through without branching. Unknown fields and type mismatches record an
// error retrievable via Err.
func (i *Instance) Set(field string, value any) *Instance {
	if i.err != nil {
		return i
	}
	if value == nil {
		return i
	}

	f, ok := i.def.Field(field)
	if !ok {
		i.err = fmt.Errorf("%w: %s/%s", ErrUnknownField, i.def.Name, field)
		return i
	}

	norm, err := normalize(f, value)
	if err != nil {
		i.err = err
		return i
	}
	i.fields[field] = norm
	return i
}

// Err returns the first error recorded by Set, if any.
func (i *Instance) Err() error { return i.err }

// Get returns the value of a set field. Absent fields return (nil, false).
func (i *Instance) Get(field string) (any, bool) {
	v, ok := i.fields[field]
	return v, ok
}

// FieldNames returns the names of set fields, sorted.
func (i *Instance) FieldNames() []string {
	names := make([]string, 0, len(i.fields))
	for name := range i.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of set fields.
func (i *Instance) Len() int { return len(i.fields) }

// Clone returns an independent copy of the instance.
func (i *Instance) Clone() *Instance {
	fields := make(map[string]any, len(i.fields))
	for k, v := range i.fields {
		fields[k] = v
	}
	return &Instance{def: i.def, fields: fields, err: i.err}
}

// normalize checks value against the declared field type and converts it to
// the canonical in-memory representation: int64 for integers, string for
// strings and enums, time.Time for datetimes, *identity.Identity for
// references, objmodel.Object for raw object handles.
func normalize(f Field, value any) (any, error) {
	switch f.Type {
	case TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case TypeInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int8:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint:
			return int64(v), nil
		case uint8:
			return int64(v), nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case uint64:
			return int64(v), nil
		}
	case TypeIdentity:
		if id, ok := value.(*identity.Identity); ok && id != nil {
			return id, nil
		}
	case TypeDateTime:
		if t, ok := value.(time.Time); ok {
			return t, nil
		}
	case TypeEnum:
		if s, ok := value.(string); ok {
			for _, allowed := range f.Values {
				if s == allowed {
					return s, nil
				}
			}
			return nil, fmt.Errorf("%w: %q is not a permitted value of enum field %q",
				ErrBadValue, s, f.Name)
		}
	case TypeObject:
		if o, ok := value.(objmodel.Object); ok && o != nil {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: field %q (%s) cannot hold %T",
		ErrBadValue, f.Name, f.Type, value)
}

// Equal reports whether two set values compare equal under the canonical
// representation. Identities compare by token, objects by address,
// timestamps by instant.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case *identity.Identity:
		bv, ok := b.(*identity.Identity)
		return ok && av.Token() == bv.Token()
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case objmodel.Object:
		bv, ok := b.(objmodel.Object)
		return ok && av.Address() == bv.Address()
	default:
		return a == b
	}
}
