package component

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairn-forensics/cairn/objmodel"
)

func TestDefinitionValidate(t *testing.T) {
	good := Definition{
		Name: "Driver",
		Fields: []Field{
			{Name: "path", Type: TypeString},
			{Name: "state", Type: TypeEnum, Values: []string{"loaded", "unloading"}},
		},
	}
	require.NoError(t, good.Validate())

	cases := []struct {
		name string
		def  Definition
	}{
		{"blank name", Definition{Fields: []Field{{Name: "x", Type: TypeString}}}},
		{"slash in name", Definition{Name: "A/B", Fields: []Field{{Name: "x", Type: TypeString}}}},
		{"no fields", Definition{Name: "A"}},
		{"blank field name", Definition{Name: "A", Fields: []Field{{Type: TypeString}}}},
		{"duplicate field", Definition{Name: "A", Fields: []Field{
			{Name: "x", Type: TypeString}, {Name: "x", Type: TypeInt}}}},
		{"unknown type", Definition{Name: "A", Fields: []Field{{Name: "x", Type: "blob"}}}},
		{"enum without values", Definition{Name: "A", Fields: []Field{{Name: "x", Type: TypeEnum}}}},
		{"values on non-enum", Definition{Name: "A", Fields: []Field{
			{Name: "x", Type: TypeString, Values: []string{"y"}}}}},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, tc.def.Validate(), ErrInvalidDefinition, tc.name)
	}
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("File/path")
	require.NoError(t, err)
	assert.Equal(t, Path{Component: "File", Field: "path"}, p)
	assert.Equal(t, "File/path", p.String())

	for _, bad := range []string{"File", "File/", "/path", ""} {
		_, err := ParsePath(bad)
		assert.ErrorIs(t, err, ErrBadPath, bad)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	def := Definition{Name: "Driver", Fields: []Field{{Name: "path", Type: TypeString}}}
	require.NoError(t, reg.Register(def))
	assert.True(t, reg.Has("Driver"))

	got, err := reg.Lookup("Driver")
	require.NoError(t, err)
	assert.Equal(t, "Driver", got.Name)

	assert.Error(t, reg.Register(def), "duplicate registration")

	_, err = reg.Lookup("Nonesuch")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestStandardRegistry(t *testing.T) {
	reg := NewStandardRegistry()

	for _, name := range []string{
		"MemoryObject", "Named", "Process", "User", "Handle", "File",
		"Socket", "Connection", "OSILayer3", "OSILayer4", "Timestamps",
		"Permissions", "Event",
	} {
		assert.True(t, reg.Has(name), name)
	}

	file, err := reg.Lookup("File")
	require.NoError(t, err)
	typ, ok := file.Field("type")
	require.True(t, ok)
	assert.Equal(t, TypeEnum, typ.Type)
	assert.Contains(t, typ.Values, "socket")
}

func TestInstanceSet(t *testing.T) {
	reg := NewStandardRegistry()
	def, err := reg.Lookup("Process")
	require.NoError(t, err)

	inst := New(def).Set("pid", int32(205)).Set("command", "mds")
	require.NoError(t, inst.Err())
	assert.Equal(t, 2, inst.Len())

	pid, ok := inst.Get("pid")
	require.True(t, ok)
	assert.Equal(t, int64(205), pid, "integers normalize to int64")

	// nil values pass through as no-ops.
	inst.Set("user", nil)
	require.NoError(t, inst.Err())
	assert.Equal(t, 2, inst.Len())
}

func TestInstanceSetErrors(t *testing.T) {
	reg := NewStandardRegistry()
	def, err := reg.Lookup("File")
	require.NoError(t, err)

	unknown := New(def).Set("nope", 1)
	assert.ErrorIs(t, unknown.Err(), ErrUnknownField)

	mismatch := New(def).Set("path", 42)
	assert.ErrorIs(t, mismatch.Err(), ErrBadValue)

	badEnum := New(def).Set("type", "teapot")
	assert.ErrorIs(t, badEnum.Err(), ErrBadValue)

	// The first error latches; later sets do not overwrite it.
	latched := New(def).Set("nope", 1).Set("path", 42)
	assert.ErrorIs(t, latched.Err(), ErrUnknownField)
}

func TestInstanceClone(t *testing.T) {
	reg := NewStandardRegistry()
	def, err := reg.Lookup("Process")
	require.NoError(t, err)

	orig := New(def).Set("pid", 1)
	clone := orig.Clone()
	clone.Set("command", "mds")

	_, ok := orig.Get("command")
	assert.False(t, ok, "clone is independent")
}

func TestEqual(t *testing.T) {
	now := time.Now()
	inUTC := now.UTC()

	space := objmodel.NewSpace()
	a := space.Add("proc", 0x1000, nil)
	b := space.Add("task", 0x1000, nil)
	c := space.Add("proc", 0x2000, nil)

	assert.True(t, Equal("x", "x"))
	assert.False(t, Equal("x", "y"))
	assert.True(t, Equal(int64(1), int64(1)))
	assert.True(t, Equal(now, inUTC), "timestamps compare by instant")
	assert.True(t, Equal(a, b), "objects compare by address")
	assert.False(t, Equal(a, c))
	assert.False(t, Equal("x", int64(1)))
}

func TestParseDefinitionsYAML(t *testing.T) {
	src := `
components:
  - name: Driver
    doc: A loaded kernel extension.
    fields:
      - name: path
        type: string
      - name: state
        type: enum
        values: [loaded, unloading]
`
	defs, err := ParseDefinitions(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Driver", defs[0].Name)
	require.Len(t, defs[0].Fields, 2)
	assert.Equal(t, TypeEnum, defs[0].Fields[1].Type)

	_, err = ParseDefinitions(strings.NewReader("components:\n  - name: Bad\n"))
	assert.ErrorIs(t, err, ErrInvalidDefinition, "no fields")

	_, err = ParseDefinitions(strings.NewReader("unknown_key: true\n"))
	assert.Error(t, err, "unknown document keys are rejected")
}
