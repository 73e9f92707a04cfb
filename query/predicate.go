package query

import (
	"strings"

	"github.com/cairn-forensics/cairn/component"
	"github.com/cairn-forensics/cairn/entity"
)

// Query is a compiled predicate over entities. Compiling is separate from
// matching so a query parsed once can be evaluated against many entities.
type Query struct {
	src   string
	terms []term
	cel   *celProgram
}

// Compile parses a query string into a reusable predicate. Strings with the
// "cel:" prefix compile as CEL expressions; anything else uses the term
// grammar documented on the package.
func Compile(src string) (*Query, error) {
	if expr, ok := strings.CutPrefix(src, celPrefix); ok {
		prog, err := compileCEL(expr)
		if err != nil {
			return nil, err
		}
		return &Query{src: src, cel: prog}, nil
	}
	terms, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Query{src: src, terms: terms}, nil
}

// String returns the source the query was compiled from.
func (q *Query) String() string { return q.src }

// Match reports whether the entity satisfies every term of the query.
// Attribute paths the entity does not carry never match; they never error.
func (q *Query) Match(e *entity.Entity) (bool, error) {
	if e == nil {
		return false, nil
	}
	if q.cel != nil {
		return q.cel.eval(e)
	}
	for _, t := range q.terms {
		ok, err := matchTerm(t, e)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchTerm(t term, e *entity.Entity) (bool, error) {
	switch term := t.(type) {
	case hasTerm:
		return e.Has(term.component), nil

	case literalTerm:
		val, ok := e.Attr(term.path.String())
		if !ok {
			return false, nil
		}
		switch term.lit.kind {
		case litInt:
			return valueEqualsInt(val, term.lit.i), nil
		default:
			s, ok := val.(string)
			return ok && s == term.lit.s, nil
		}

	case crossTerm:
		left, ok := e.Attr(term.left.String())
		if !ok {
			return false, nil
		}
		right, ok := e.Attr(term.right.String())
		if !ok {
			return false, nil
		}
		return component.Equal(left, right), nil
	}
	return false, nil
}

func valueEqualsInt(val any, want int64) bool {
	switch v := val.(type) {
	case int64:
		return v == want
	case int:
		return int64(v) == want
	}
	return false
}
