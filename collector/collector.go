package collector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/cairn-forensics/cairn/component"
	"github.com/cairn-forensics/cairn/entity"
	"github.com/cairn-forensics/cairn/identity"
	"github.com/cairn-forensics/cairn/query"
)

// Cost ranks how expensive a collector is to run. When several collectors
// could satisfy the same demand the planner prefers the cheaper one.
type Cost int

const (
	Cheap Cost = iota
	Medium
	High
)

func (c Cost) String() string {
	switch c {
	case Cheap:
		return "cheap"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("cost(%d)", int(c))
	}
}

// TriggerMode controls when a collector runs relative to its inputs.
type TriggerMode int

const (
	// Once runs the collector a single time, as soon as all its inputs have
	// produced at least their first results.
	Once TriggerMode = iota

	// Incremental re-runs the collector whenever new input entities appear,
	// passing only the entities it has not seen yet.
	Incremental

	// FixedPoint defers the collector until every upstream collector has
	// quiesced, then runs it once over the complete input set.
	FixedPoint
)

func (m TriggerMode) String() string {
	switch m {
	case Once:
		return "once"
	case Incremental:
		return "incremental"
	case FixedPoint:
		return "fixed-point"
	default:
		return fmt.Sprintf("trigger(%d)", int(m))
	}
}

// Validation errors.
var (
	ErrBadDescriptor = errors.New("collector: invalid descriptor")
	ErrBadOutput     = errors.New("collector: invalid output declaration")
)

// Output is a parsed output declaration. The string form is either a bare
// component type ("Socket") or a type narrowed by one field value
// ("MemoryObject/type=socket"), promising that every produced instance of
// that component carries the given field value.
type Output struct {
	Component string
	Field     string
	Value     string
}

// ParseOutput parses the string form of an output declaration.
func ParseOutput(s string) (Output, error) {
	head, val, narrowed := strings.Cut(s, "=")
	if !narrowed {
		if strings.TrimSpace(s) == "" || strings.Contains(s, "/") {
			return Output{}, fmt.Errorf("%w: %q", ErrBadOutput, s)
		}
		return Output{Component: s}, nil
	}
	path, err := component.ParsePath(head)
	if err != nil || strings.TrimSpace(val) == "" {
		return Output{}, fmt.Errorf("%w: %q", ErrBadOutput, s)
	}
	return Output{Component: path.Component, Field: path.Field, Value: val}, nil
}

// String renders the declaration back to its string form.
func (o Output) String() string {
	if o.Field == "" {
		return o.Component
	}
	return fmt.Sprintf("%s/%s=%s", o.Component, o.Field, o.Value)
}

// Satisfies reports whether this output can serve a demand. A bare demand is
// served by any output of the component type; a narrowed demand needs a bare
// output (which may produce anything) or a matching narrowed one.
func (o Output) Satisfies(req query.Requirement) bool {
	if o.Component != req.Component {
		return false
	}
	if o.Field == "" || req.Field == "" {
		return true
	}
	return o.Field == req.Field && o.Value == req.Literal
}

// Descriptor declares a collector's contract with the scheduler.
type Descriptor struct {
	// Name uniquely identifies the collector within a registry.
	Name string

	// Outputs lists the component types the collector produces, each in
	// Output string form.
	Outputs []string

	// CollectArgs maps each input parameter name to the query selecting the
	// entities the collector wants for it. The queries must use the plannable
	// term grammar; CEL expressions are rejected because the scheduler cannot
	// derive dependencies from them.
	CollectArgs map[string]string

	// Trigger controls re-running behavior. Collectors with no CollectArgs
	// always behave as Once.
	Trigger TriggerMode

	// Cost ranks the collector for planner tie-breaking.
	Cost Cost
}

// Validate checks the descriptor's internal consistency.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: blank name", ErrBadDescriptor)
	}
	if len(d.Outputs) == 0 {
		return fmt.Errorf("%w: collector %q declares no outputs", ErrBadDescriptor, d.Name)
	}
	for _, out := range d.Outputs {
		if _, err := ParseOutput(out); err != nil {
			return fmt.Errorf("collector %q: %w", d.Name, err)
		}
	}
	for arg, src := range d.CollectArgs {
		if strings.TrimSpace(arg) == "" {
			return fmt.Errorf("%w: collector %q has a blank collect arg name", ErrBadDescriptor, d.Name)
		}
		if _, err := query.Requirements(src); err != nil {
			return fmt.Errorf("collector %q, arg %q: %w", d.Name, arg, err)
		}
	}
	return nil
}

// ParsedOutputs returns the descriptor's output declarations in parsed form.
// It assumes Validate has passed; unparsable entries are skipped.
func (d Descriptor) ParsedOutputs() []Output {
	outs := make([]Output, 0, len(d.Outputs))
	for _, s := range d.Outputs {
		out, err := ParseOutput(s)
		if err != nil {
			continue
		}
		outs = append(outs, out)
	}
	return outs
}

// Resolver is the identity surface collectors use to name the entities they
// describe. Identify memoizes, so two collectors identifying the same key
// contribute components to the same entity.
type Resolver interface {
	Identify(key identity.Key) (*identity.Identity, error)
	Alias(id *identity.Identity, key identity.Key) error
}

// Hint narrows a collection run. Collectors may use it to skip work that
// cannot contribute to the hinted component types; ignoring it is always
// correct.
type Hint struct {
	// Components lists the component types the run was asked for. Empty
	// means collect everything.
	Components []string
}

// Record is one entity contribution yielded by a collector: who the entity
// is, plus the component instances to merge onto it. Exactly one of Identity
// and Key must be set; Key is resolved through the session resolver before
// merging.
type Record struct {
	Identity   *identity.Identity
	Key        identity.Key
	Components []*component.Instance
}

// Func is the body of a collector. Inputs holds, per collect arg, the
// entities matching the arg's query that this invocation should process.
// Implementations yield one Record per described entity and may yield an
// error in place of a record to report a single failed extraction without
// aborting the run.
type Func func(ctx context.Context, r Resolver, hint Hint, inputs map[string][]*entity.Entity) iter.Seq2[Record, error]

// Collector couples a descriptor with its collection body.
type Collector interface {
	Descriptor() Descriptor
	Collect(ctx context.Context, r Resolver, hint Hint, inputs map[string][]*entity.Entity) iter.Seq2[Record, error]
}

type funcCollector struct {
	desc Descriptor
	fn   Func
}

// New wraps a plain function as a Collector.
func New(desc Descriptor, fn Func) Collector {
	return &funcCollector{desc: desc, fn: fn}
}

func (c *funcCollector) Descriptor() Descriptor { return c.desc }

func (c *funcCollector) Collect(ctx context.Context, r Resolver, hint Hint, inputs map[string][]*entity.Entity) iter.Seq2[Record, error] {
	return c.fn(ctx, r, hint, inputs)
}
