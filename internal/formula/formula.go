// Package formula evaluates small arithmetic expressions over named
// variables: salary components, service pricing, and similar per-row
// computations stored as text. The grammar is fixed — addition,
// subtraction, multiplication, division, parentheses, decimal literals,
// and identifiers from a caller-supplied vocabulary. Anything else is
// rejected at parse time; nothing is ever passed to a general-purpose
// evaluator.
package formula

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// ErrSyntax indicates the expression does not match the grammar.
	ErrSyntax = errors.New("formula: syntax error")
	// ErrUnknownVariable indicates an identifier outside the vocabulary.
	ErrUnknownVariable = errors.New("formula: unknown variable")
	// ErrDivisionByZero indicates a division whose divisor evaluated to zero.
	ErrDivisionByZero = errors.New("formula: division by zero")
)

// Expr is one node of the parsed expression tree.
type Expr interface {
	eval(vars map[string]decimal.Decimal) (decimal.Decimal, error)
}

type literal struct {
	value decimal.Decimal
}

func (l literal) eval(map[string]decimal.Decimal) (decimal.Decimal, error) {
	return l.value, nil
}

type variable struct {
	name string
}

func (v variable) eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	value, ok := vars[v.name]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownVariable, v.name)
	}
	return value, nil
}

type binary struct {
	op          byte
	left, right Expr
}

func (b binary) eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	left, err := b.left.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	right, err := b.right.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	switch b.op {
	case '+':
		return left.Add(right), nil
	case '-':
		return left.Sub(right), nil
	case '*':
		return left.Mul(right), nil
	default:
		if right.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		return left.Div(right), nil
	}
}

type negate struct {
	inner Expr
}

func (n negate) eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	v, err := n.inner.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Neg(), nil
}

// Formula is a parsed, reusable expression bound to a vocabulary.
type Formula struct {
	source string
	root   Expr
}

// Source returns the original expression text.
func (f *Formula) Source() string {
	return f.source
}

// Eval computes the formula over the given variable values. Every
// vocabulary variable must be present.
func (f *Formula) Eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	return f.root.eval(vars)
}

// Parse validates the expression against the grammar and vocabulary.
// Identifiers not in vocabulary fail immediately, before any values are
// supplied.
func Parse(source string, vocabulary []string) (*Formula, error) {
	vocab := make(map[string]struct{}, len(vocabulary))
	for _, name := range vocabulary {
		vocab[name] = struct{}{}
	}
	p := &parser{input: source, vocab: vocab}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("%w: unexpected %q at position %d", ErrSyntax, p.input[p.pos:], p.pos)
	}
	return &Formula{source: source, root: root}, nil
}

// Eval is the one-shot form: parse then evaluate. The vocabulary is the
// key set of vars.
func Eval(source string, vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	vocabulary := make([]string, 0, len(vars))
	for name := range vars {
		vocabulary = append(vocabulary, name)
	}
	f, err := Parse(source, vocabulary)
	if err != nil {
		return decimal.Zero, err
	}
	return f.Eval(vars)
}

// Recursive descent over:
//
//	expr   = term { ('+'|'-') term }
//	term   = factor { ('*'|'/') factor }
//	factor = number | ident | '(' expr ')' | '-' factor
type parser struct {
	input string
	pos   int
	vocab map[string]struct{}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
}

func (p *parser) parseFactor() (Expr, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.pos++
		return inner, nil
	case c == '-':
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return negate{inner: inner}, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentStart(rune(c)):
		return p.parseIdent()
	case c == 0:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return nil, fmt.Errorf("%w: unexpected %q at position %d", ErrSyntax, string(c), p.pos)
	}
}

func (p *parser) parseNumber() (Expr, error) {
	start := p.pos
	seenDot := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '.' {
			if seenDot {
				return nil, fmt.Errorf("%w: malformed number at position %d", ErrSyntax, start)
			}
			seenDot = true
			p.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	text := p.input[start:p.pos]
	value, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed number %q", ErrSyntax, text)
	}
	return literal{value: value}, nil
}

func isIdentStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

func (p *parser) parseIdent() (Expr, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if !isIdentStart(c) && !unicode.IsDigit(c) {
			break
		}
		p.pos++
	}
	name := strings.ToLower(p.input[start:p.pos])
	if _, ok := p.vocab[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return variable{name: name}, nil
}
