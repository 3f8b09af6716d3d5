package harness

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
)

// Vars are the only names a formula may reference.
type Vars struct {
	Level float64
	XP    float64
}

// Expr is a parsed arithmetic formula over numbers, level and xp.
type Expr interface {
	Eval(v Vars) (float64, error)
}

type number float64

func (n number) Eval(Vars) (float64, error) { return float64(n), nil }

type variable string

func (name variable) Eval(v Vars) (float64, error) {
	switch name {
	case "level":
		return v.Level, nil
	case "xp":
		return v.XP, nil
	}
	return 0, apperr.New(apperr.ErrValidation, "unknown variable %q", string(name))
}

type negate struct{ x Expr }

func (n negate) Eval(v Vars) (float64, error) {
	x, err := n.x.Eval(v)
	return -x, err
}

type binary struct {
	op   byte
	l, r Expr
}

func (b binary) Eval(v Vars) (float64, error) {
	l, err := b.l.Eval(v)
	if err != nil {
		return 0, err
	}
	r, err := b.r.Eval(v)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, apperr.New(apperr.ErrValidation, "division by zero")
		}
		return l / r, nil
	}
	return 0, apperr.New(apperr.ErrValidation, "unknown operator %q", b.op)
}

// ParseFormula parses expr. Only + - * /, parentheses, numbers and the
// variables level and xp are accepted.
func ParseFormula(expr string) (Expr, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, apperr.New(apperr.ErrValidation, "unexpected %q at token %d", p.toks[p.pos].text, p.pos)
	}
	return e, nil
}

// EvalFormula parses and evaluates expr in one step.
func EvalFormula(expr string, v Vars) (float64, error) {
	e, err := ParseFormula(expr)
	if err != nil {
		return 0, err
	}
	return e.Eval(v)
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) ([]token, error) {
	var out []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			out = append(out, token{tokNumber, string(rs[i:j])})
			i = j
		case unicode.IsLetter(r):
			j := i
			for j < len(rs) && unicode.IsLetter(rs[j]) {
				j++
			}
			name := string(rs[i:j])
			if name != "level" && name != "xp" {
				return nil, apperr.New(apperr.ErrValidation, "unknown variable %q", name)
			}
			out = append(out, token{tokIdent, name})
			i = j
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')':
			out = append(out, token{tokOp, string(r)})
			i++
		default:
			return nil, apperr.New(apperr.ErrValidation, "unexpected character %q", r)
		}
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.ErrValidation, "empty formula")
	}
	return out, nil
}

// parser is recursive descent over:
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | ident | "(" expr ")" | "-" factor
type parser struct {
	toks []token
	pos  int
}

func (p *parser) peekOp(ops string) (byte, bool) {
	if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokOp {
		return 0, false
	}
	c := p.toks[p.pos].text[0]
	for i := 0; i < len(ops); i++ {
		if ops[i] == c {
			return c, true
		}
	}
	return 0, false
}

func (p *parser) expr() (Expr, error) {
	l, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return l, nil
		}
		p.pos++
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		l = binary{op: op, l: l, r: r}
	}
}

func (p *parser) term() (Expr, error) {
	l, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp("*/")
		if !ok {
			return l, nil
		}
		p.pos++
		r, err := p.factor()
		if err != nil {
			return nil, err
		}
		l = binary{op: op, l: l, r: r}
	}
}

func (p *parser) factor() (Expr, error) {
	if p.pos >= len(p.toks) {
		return nil, apperr.New(apperr.ErrValidation, "unexpected end of formula")
	}
	t := p.toks[p.pos]
	p.pos++
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrValidation, fmt.Errorf("bad number %q", t.text))
		}
		return number(f), nil
	case tokIdent:
		return variable(t.text), nil
	}
	switch t.text {
	case "-":
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		return negate{x: x}, nil
	case "(":
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, ok := p.peekOp(")"); !ok {
			return nil, apperr.New(apperr.ErrValidation, "missing closing parenthesis")
		}
		p.pos++
		return e, nil
	}
	return nil, apperr.New(apperr.ErrValidation, "unexpected %q", t.text)
}
