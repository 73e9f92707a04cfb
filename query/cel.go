package query

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/cairn-forensics/cairn/entity"
	"github.com/cairn-forensics/cairn/identity"
	"github.com/cairn-forensics/cairn/objmodel"
)

var (
	celEnvOnce sync.Once
	celEnv     *cel.Env
	celEnvErr  error
)

func env() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("entity", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return celEnv, celEnvErr
}

type celProgram struct {
	prog cel.Program
}

func compileCEL(expr string) (*celProgram, error) {
	e, err := env()
	if err != nil {
		return nil, fmt.Errorf("query: cel environment: %w", err)
	}
	ast, iss := e.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("query: cel compile: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("query: cel expression must yield bool, got %v", ast.OutputType())
	}
	prog, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("query: cel program: %w", err)
	}
	return &celProgram{prog: prog}, nil
}

func (p *celProgram) eval(e *entity.Entity) (bool, error) {
	out, _, err := p.prog.Eval(map[string]any{"entity": activation(e)})
	if err != nil {
		// Missing keys surface as evaluation errors; absent data is a
		// non-match, same as the term grammar.
		return false, nil
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("query: cel result is %T, want bool", out.Value())
	}
	return b, nil
}

// activation renders an entity as nested maps for CEL: one key per component
// type, each holding its fields with CEL-friendly value types.
func activation(e *entity.Entity) map[string]any {
	m := make(map[string]any)
	for _, ct := range e.ComponentTypes() {
		inst, ok := e.Component(ct)
		if !ok {
			continue
		}
		fields := make(map[string]any)
		for _, name := range inst.FieldNames() {
			val, ok := inst.Get(name)
			if !ok {
				continue
			}
			fields[name] = celValue(val)
		}
		m[ct] = fields
	}
	return m
}

func celValue(val any) any {
	switch v := val.(type) {
	case *identity.Identity:
		return v.Token()
	case objmodel.Object:
		return map[string]any{
			"type":    v.TypeName(),
			"address": int64(v.Address()),
		}
	default:
		return val
	}
}
