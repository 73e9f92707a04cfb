package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cairn-forensics/cairn/component"
)

// Sentinel errors for query compilation.
var (
	// ErrSyntax indicates a query string that does not parse.
	ErrSyntax = errors.New("query: syntax error")

	// ErrCELInDependency indicates a "cel:" query where only the plannable
	// grammar is allowed (collector dependency declarations).
	ErrCELInDependency = errors.New("query: cel expressions cannot be planned")
)

// celPrefix marks a query string as a CEL expression.
const celPrefix = "cel:"

// Requirement describes one component-type demand a query makes, used by the
// dependency planner to match consumers to producers. Field and Literal are
// set only for literal-equality terms, allowing a narrow match against a
// producer's qualified output (e.g. "MemoryObject/type=socket").
type Requirement struct {
	Component string
	Field     string
	Literal   string
}

// Requirements parses a query and returns the component types it demands.
// CEL queries are rejected: their demands are not statically derivable.
func Requirements(src string) ([]Requirement, error) {
	if strings.HasPrefix(src, celPrefix) {
		return nil, fmt.Errorf("%w: %q", ErrCELInDependency, src)
	}
	terms, err := parse(src)
	if err != nil {
		return nil, err
	}

	var reqs []Requirement
	for _, t := range terms {
		switch term := t.(type) {
		case hasTerm:
			reqs = append(reqs, Requirement{Component: term.component})
		case literalTerm:
			r := Requirement{Component: term.path.Component, Field: term.path.Field}
			if term.lit.kind == litString {
				r.Literal = term.lit.s
			} else {
				r.Literal = strconv.FormatInt(term.lit.i, 10)
			}
			reqs = append(reqs, r)
		case crossTerm:
			reqs = append(reqs,
				Requirement{Component: term.left.Component},
				Requirement{Component: term.right.Component})
		}
	}
	return reqs, nil
}

type term interface{ isTerm() }

type hasTerm struct{ component string }

type literalTerm struct {
	path component.Path
	lit  literal
}

type crossTerm struct{ left, right component.Path }

func (hasTerm) isTerm()     {}
func (literalTerm) isTerm() {}
func (crossTerm) isTerm()   {}

type litKind int

const (
	litString litKind = iota
	litInt
)

type literal struct {
	kind litKind
	s    string
	i    int64
}

// parse splits the query into "and"-joined terms and parses each.
func parse(src string) ([]term, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty query", ErrSyntax)
	}

	var terms []term
	start := 0
	for i := 0; i <= len(tokens); i++ {
		if i < len(tokens) && !tokens[i].isKeyword("and") {
			continue
		}
		t, err := parseTerm(tokens[start:i])
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
		start = i + 1
	}
	return terms, nil
}

func parseTerm(tokens []token) (term, error) {
	switch {
	case len(tokens) == 3 && tokens[0].isKeyword("has") && tokens[1].isKeyword("component"):
		if tokens[2].quoted {
			return nil, fmt.Errorf("%w: component name must be bare, got %q", ErrSyntax, tokens[2].text)
		}
		return hasTerm{component: tokens[2].text}, nil

	case len(tokens) == 3 && tokens[1].isKeyword("is"):
		path, err := component.ParsePath(tokens[0].text)
		if err != nil || tokens[0].quoted {
			return nil, fmt.Errorf("%w: expected attribute path, got %q", ErrSyntax, tokens[0].text)
		}
		rhs := tokens[2]
		if rhs.quoted {
			return literalTerm{path: path, lit: literal{kind: litString, s: rhs.text}}, nil
		}
		if n, err := strconv.ParseInt(rhs.text, 10, 64); err == nil {
			return literalTerm{path: path, lit: literal{kind: litInt, i: n}}, nil
		}
		other, err := component.ParsePath(rhs.text)
		if err != nil {
			return nil, fmt.Errorf("%w: expected literal or attribute path, got %q", ErrSyntax, rhs.text)
		}
		return crossTerm{left: path, right: other}, nil

	default:
		var parts []string
		for _, t := range tokens {
			parts = append(parts, t.text)
		}
		return nil, fmt.Errorf("%w: cannot parse term %q", ErrSyntax, strings.Join(parts, " "))
	}
}

type token struct {
	text   string
	quoted bool
}

func (t token) isKeyword(kw string) bool {
	return !t.quoted && strings.EqualFold(t.text, kw)
}

// tokenize splits on whitespace, treating single-quoted runs as one token.
func tokenize(src string) ([]token, error) {
	var tokens []token
	var cur strings.Builder
	inQuote := false
	flush := func(quoted bool) {
		if cur.Len() > 0 || quoted {
			tokens = append(tokens, token{text: cur.String(), quoted: quoted})
			cur.Reset()
		}
	}
	for _, r := range src {
		switch {
		case r == '\'':
			if inQuote {
				flush(true)
				inQuote = false
			} else {
				flush(false)
				inQuote = true
			}
		case !inQuote && (r == ' ' || r == '\t' || r == '\n'):
			flush(false)
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrSyntax, src)
	}
	flush(false)
	return tokens, nil
}
