package component

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for schema operations.
var (
	// ErrNotRegistered indicates a lookup for a component type the
	// registry does not know.
	ErrNotRegistered = errors.New("component: type not registered")

	// ErrInvalidDefinition indicates a definition that fails validation.
	ErrInvalidDefinition = errors.New("component: invalid definition")

	// ErrUnknownField indicates a set or read of a field the definition
	// does not declare.
	ErrUnknownField = errors.New("component: unknown field")

	// ErrBadValue indicates a value whose type does not match the field's
	// declared type.
	ErrBadValue = errors.New("component: value does not match field type")

	// ErrBadPath indicates an attribute path that is not of the form
	// "Component/field".
	ErrBadPath = errors.New("component: malformed attribute path")
)

// FieldType is the declared type of a component field.
type FieldType string

const (
	// TypeString is a free-form string field.
	TypeString FieldType = "string"

	// TypeInt is a signed integer field.
	TypeInt FieldType = "int"

	// TypeIdentity is a reference to another entity's identity.
	TypeIdentity FieldType = "identity"

	// TypeDateTime is a timestamp field.
	TypeDateTime FieldType = "datetime"

	// TypeEnum is a string field restricted to a declared value set.
	TypeEnum FieldType = "enum"

	// TypeObject is an opaque reference to a raw kernel object, used by
	// bridge components such as MemoryObject/base_object.
	TypeObject FieldType = "object"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeInt, TypeIdentity, TypeDateTime, TypeEnum, TypeObject:
		return true
	}
	return false
}

// Field declares one typed attribute of a component.
type Field struct {
	// Name is the field identifier, unique within its component.
	Name string

	// Type is the declared field type.
	Type FieldType

	// Values lists the permitted values for TypeEnum fields.
	Values []string

	// Doc is an optional one-line description.
	Doc string
}

// Definition is the schema of one component type: a name plus its typed
// fields. Definitions carry no behavior beyond validation.
type Definition struct {
	// Name is the component type name, e.g. "File" or "Connection".
	Name string

	// Doc is an optional one-line description.
	Doc string

	// Fields lists the declared fields in declaration order.
	Fields []Field
}

// Field returns the declared field with the given name.
func (d Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks structural well-formedness: a non-blank name, at least one
// field, unique field names, known field types, and a value set on every enum.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: blank component name", ErrInvalidDefinition)
	}
	if strings.ContainsRune(d.Name, '/') {
		return fmt.Errorf("%w: component name %q must not contain '/'", ErrInvalidDefinition, d.Name)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: component %q declares no fields", ErrInvalidDefinition, d.Name)
	}

	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: component %q has a blank field name", ErrInvalidDefinition, d.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: component %q declares field %q twice", ErrInvalidDefinition, d.Name, f.Name)
		}
		seen[f.Name] = true
		if !f.Type.valid() {
			return fmt.Errorf("%w: component %q field %q has unknown type %q", ErrInvalidDefinition, d.Name, f.Name, f.Type)
		}
		if f.Type == TypeEnum && len(f.Values) == 0 {
			return fmt.Errorf("%w: component %q enum field %q declares no values", ErrInvalidDefinition, d.Name, f.Name)
		}
		if f.Type != TypeEnum && len(f.Values) > 0 {
			return fmt.Errorf("%w: component %q field %q declares values but is not an enum", ErrInvalidDefinition, d.Name, f.Name)
		}
	}
	return nil
}

// Path is a parsed attribute path of the form "Component/field".
type Path struct {
	Component string
	Field     string
}

// ParsePath splits an attribute path into its component and field parts.
func ParsePath(s string) (Path, error) {
	comp, field, ok := strings.Cut(s, "/")
	if !ok || strings.TrimSpace(comp) == "" || strings.TrimSpace(field) == "" {
		return Path{}, fmt.Errorf("%w: %q", ErrBadPath, s)
	}
	return Path{Component: comp, Field: field}, nil
}

// String renders the path back to "Component/field" form.
func (p Path) String() string { return p.Component + "/" + p.Field }
