package packaging

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Namespace is a small set of named boolean facts (eg: `win64`)
// that selector expressions are evaluated against.
type Namespace map[string]bool

// Eval evaluates a selector expression. The grammar is deliberately
// small: identifiers, `and`, `or`, `not`, and parentheses.
//
//	win64
//	win and not x86_64
//	(linux or osx) and x86_64
func (ns Namespace) Eval(expr string) (bool, error) {
	p := &selectorParser{ns: ns, tokens: tokenizeSelector(expr)}
	if len(p.tokens) == 0 {
		return false, errors.New("empty selector")
	}

	v, err := p.parseOr()
	if err != nil {
		return false, errors.Wrapf(err, "selector '%s'", expr)
	}
	if p.pos != len(p.tokens) {
		return false, errors.Errorf("selector '%s': unexpected '%s'", expr, p.tokens[p.pos])
	}
	return v, nil
}

func tokenizeSelector(expr string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range expr {
		switch {
		case r == '(' || r == ')':
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return tokens
}

type selectorParser struct {
	ns     Namespace
	tokens []string
	pos    int
}

func (p *selectorParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *selectorParser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.peek() == "or" {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (p *selectorParser) parseAnd() (bool, error) {
	left, err := p.parseNot()
	if err != nil {
		return false, err
	}
	for p.peek() == "and" {
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (p *selectorParser) parseNot() (bool, error) {
	if p.peek() == "not" {
		p.pos++
		v, err := p.parseNot()
		return !v, err
	}
	return p.parsePrimary()
}

func (p *selectorParser) parsePrimary() (bool, error) {
	tok := p.peek()
	switch tok {
	case "":
		return false, errors.New("unexpected end of expression")
	case "(":
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.peek() != ")" {
			return false, errors.New("missing ')'")
		}
		p.pos++
		return v, nil
	case ")", "and", "or":
		return false, errors.Errorf("unexpected '%s'", tok)
	}

	v, ok := p.ns[tok]
	if !ok {
		return false, errors.Errorf("unknown name '%s'", tok)
	}
	p.pos++
	return v, nil
}
