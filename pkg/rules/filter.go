package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is returned for rules that cannot be parsed.
var ErrSyntax = errors.New("rule syntax error")

// Expr is a parsed filter expression.
type Expr interface {
	Eval(Record) bool
	String() string
}

type cmpExpr struct {
	attr   string
	value  string
	negate bool
}

func (c cmpExpr) Eval(r Record) bool {
	return r.Has(c.attr, c.value) != c.negate
}

func (c cmpExpr) String() string {
	op := "="
	if c.negate {
		op = "!="
	}
	return c.attr + op + c.value
}

type andExpr struct{ left, right Expr }

func (a andExpr) Eval(r Record) bool { return a.left.Eval(r) && a.right.Eval(r) }
func (a andExpr) String() string     { return "(" + a.left.String() + "&" + a.right.String() + ")" }

type orExpr struct{ left, right Expr }

func (o orExpr) Eval(r Record) bool { return o.left.Eval(r) || o.right.Eval(r) }
func (o orExpr) String() string     { return "(" + o.left.String() + "|" + o.right.String() + ")" }

// binding powers for the infix operators
var precedence = map[byte]int{'|': 1, '&': 2}

type parser struct {
	src string
	pos int
}

// ParseExpr parses a filter expression without a group list.
func ParseExpr(src string) (Expr, error) {
	p := &parser{src: src}
	e, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return e, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d in %q: %s", ErrSyntax, p.pos, p.src, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// expr parses operands joined by operators binding tighter than minPrec.
func (p *parser) expr(minPrec int) (Expr, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		prec, ok := precedence[op]
		if !ok || prec <= minPrec {
			return left, nil
		}
		p.pos++
		right, err := p.expr(prec)
		if err != nil {
			return nil, err
		}
		if op == '&' {
			left = andExpr{left, right}
		} else {
			left = orExpr{left, right}
		}
	}
}

func (p *parser) operand() (Expr, error) {
	if p.peek() == '(' {
		p.pos++
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("missing ')'")
		}
		p.pos++
		return e, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (Expr, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '=' && p.src[p.pos] != '!' {
		if strings.IndexByte("&|()", p.src[p.pos]) >= 0 {
			return nil, p.errorf("expected comparison")
		}
		p.pos++
	}
	attr := strings.TrimSpace(p.src[start:p.pos])
	if attr == "" {
		return nil, p.errorf("missing attribute name")
	}

	negate := false
	switch {
	case strings.HasPrefix(p.src[p.pos:], "!="):
		negate = true
		p.pos += 2
	case strings.HasPrefix(p.src[p.pos:], "="):
		p.pos++
	default:
		return nil, p.errorf("expected '=' or '!='")
	}

	return cmpExpr{attr: attr, value: p.value(), negate: negate}, nil
}

// value scans a comparison value. Parentheses balanced within the value
// belong to it; an unmatched ')' ends it.
func (p *parser) value() string {
	start := p.pos
	inner := 0
loop:
	for ; p.pos < len(p.src); p.pos++ {
		switch p.src[p.pos] {
		case '&', '|':
			break loop
		case '(':
			inner++
		case ')':
			if inner == 0 {
				break loop
			}
			inner--
		}
	}
	return strings.TrimSpace(p.src[start:p.pos])
}
