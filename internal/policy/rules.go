package policy

import (
	"fmt"
	"strings"
)

// check is one compiled node of a rule expression.
type check interface {
	eval(e *Enforcer, creds Credentials, target map[string]string, depth int) bool
}

type trueCheck struct{}

func (trueCheck) eval(*Enforcer, Credentials, map[string]string, int) bool { return true }

type falseCheck struct{}

func (falseCheck) eval(*Enforcer, Credentials, map[string]string, int) bool { return false }

type orCheck []check

func (c orCheck) eval(e *Enforcer, creds Credentials, target map[string]string, depth int) bool {
	for _, sub := range c {
		if sub.eval(e, creds, target, depth) {
			return true
		}
	}
	return false
}

type andCheck []check

func (c andCheck) eval(e *Enforcer, creds Credentials, target map[string]string, depth int) bool {
	for _, sub := range c {
		if !sub.eval(e, creds, target, depth) {
			return false
		}
	}
	return true
}

type notCheck struct{ inner check }

func (c notCheck) eval(e *Enforcer, creds Credentials, target map[string]string, depth int) bool {
	return !c.inner.eval(e, creds, target, depth)
}

type roleCheck string

func (c roleCheck) eval(_ *Enforcer, creds Credentials, _ map[string]string, _ int) bool {
	for _, role := range creds.Roles {
		if strings.EqualFold(role, string(c)) {
			return true
		}
	}
	return false
}

type ruleCheck string

func (c ruleCheck) eval(e *Enforcer, creds Credentials, target map[string]string, depth int) bool {
	if depth >= maxRuleDepth {
		return false
	}
	rule, ok := e.rules[string(c)]
	if !ok {
		return false
	}
	return rule.eval(e, creds, target, depth+1)
}

// genericCheck matches a credential attribute against a literal or a
// %(name)s reference into the target.
type genericCheck struct {
	key   string
	match string
}

func (c genericCheck) eval(_ *Enforcer, creds Credentials, target map[string]string, _ int) bool {
	want := c.match
	if strings.HasPrefix(want, "%(") && strings.HasSuffix(want, ")s") {
		v, ok := target[want[2:len(want)-2]]
		if !ok {
			return false
		}
		want = v
	}

	have, ok := creds.attr(c.key)
	if !ok {
		return false
	}
	if c.key == "is_admin" {
		return strings.EqualFold(have, want)
	}
	return have == want
}

const maxRuleDepth = 16

// parseRule compiles a rule string.
//
// Grammar: expr := term { "or" term }; term := factor { "and" factor };
// factor := "not" factor | "(" expr ")" | atom. Atoms are "@", "!",
// "role:X", "rule:X" and "key:value". An empty rule always passes.
func parseRule(s string) (check, error) {
	tokens := tokenize(s)
	if len(tokens) == 0 {
		return trueCheck{}, nil
	}

	p := &parser{tokens: tokens}
	c, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q", p.tokens[p.pos])
	}
	return c, nil
}

func tokenize(s string) []string {
	s = strings.ReplaceAll(s, "(", " ( ")
	s = strings.ReplaceAll(s, ")", " ) ")
	// Restore %(name)s references split above.
	s = strings.ReplaceAll(s, "% ( ", "%(")
	s = strings.ReplaceAll(s, " ) s", ")s")
	return strings.Fields(s)
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) expr() (check, error) {
	first, err := p.term()
	if err != nil {
		return nil, err
	}
	terms := orCheck{first}
	for strings.EqualFold(p.peek(), "or") {
		p.pos++
		next, err := p.term()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return terms, nil
}

func (p *parser) term() (check, error) {
	first, err := p.factor()
	if err != nil {
		return nil, err
	}
	factors := andCheck{first}
	for strings.EqualFold(p.peek(), "and") {
		p.pos++
		next, err := p.factor()
		if err != nil {
			return nil, err
		}
		factors = append(factors, next)
	}
	if len(factors) == 1 {
		return first, nil
	}
	return factors, nil
}

func (p *parser) factor() (check, error) {
	tok := p.peek()
	switch {
	case tok == "":
		return nil, fmt.Errorf("unexpected end of rule")
	case strings.EqualFold(tok, "not"):
		p.pos++
		inner, err := p.factor()
		if err != nil {
			return nil, err
		}
		return notCheck{inner}, nil
	case tok == "(":
		p.pos++
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	}

	p.pos++
	return parseAtom(tok)
}

func parseAtom(tok string) (check, error) {
	switch tok {
	case "@":
		return trueCheck{}, nil
	case "!":
		return falseCheck{}, nil
	}

	kind, value, ok := strings.Cut(tok, ":")
	if !ok || kind == "" || value == "" {
		return nil, fmt.Errorf("invalid check %q", tok)
	}
	switch kind {
	case "role":
		return roleCheck(value), nil
	case "rule":
		return ruleCheck(value), nil
	}
	return genericCheck{key: kind, match: value}, nil
}
