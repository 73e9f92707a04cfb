package objmodel

import (
	"fmt"
	"time"
)

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	// KindAbsent marks a value that could not be read: the field does not
	// exist, the backing memory is out of range, or the type did not match.
	KindAbsent Kind = iota

	// KindInt holds a signed integer.
	KindInt

	// KindString holds a string.
	KindString

	// KindBool holds a boolean.
	KindBool

	// KindTime holds a timestamp.
	KindTime

	// KindObject holds a reference to another typed object, such as a
	// pointer target.
	KindObject
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the result of reading a field from a raw memory structure.
//
// A Value is either present with one concrete kind, or absent. Accessors
// return (zero, false) on kind mismatch or absence, so a chain of reads over
// corrupt memory degrades to absence without branching on errors at every
// step.
type Value struct {
	kind Kind
	i    int64
	s    string
	b    bool
	t    time.Time
	o    Object
}

// Absent returns the absent value.
func Absent() Value { return Value{} }

// Int wraps a signed integer.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// String wraps a string.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bool wraps a boolean.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Time wraps a timestamp.
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }

// Obj wraps a reference to another object. A nil object produces the absent
// value, so a failed lookup can be passed through directly.
func Obj(o Object) Value {
	if o == nil {
		return Absent()
	}
	return Value{kind: KindObject, o: o}
}

// Kind reports the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value could not be read.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Int returns the integer payload.
func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Str returns the string payload.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Time returns the timestamp payload.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return v.t, true
}

// Object returns the referenced object.
func (v Value) Object() (Object, bool) {
	if v.kind != KindObject || v.o == nil {
		return nil, false
	}
	return v.o, true
}

// Interface returns the payload as an untyped value, or nil when absent.
// Useful when handing a field straight to a component instance.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindString:
		return v.s
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	case KindObject:
		return v.o
	default:
		return nil
	}
}
