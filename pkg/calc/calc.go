// Package calc evaluates arithmetic expressions with a small recursive-descent parser.
//
// Supported syntax: decimal and exponent literals, unary + and -, the binary
// operators + - * / and ** (right-associative, binding tighter than unary minus
// on its left operand so that -2**2 == -4), and parentheses. Anything else is
// rejected; nothing is ever executed.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyExpression = errors.New("empty expression")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrNotFinite       = errors.New("result is not a finite number")
)

// SyntaxError reports an unexpected token and its byte offset.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
}

// Eval parses and evaluates expr.
func Eval(expr string) (float64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, ErrEmptyExpression
	}
	p := &parser{src: expr}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		if p.src[p.pos] == ')' {
			return 0, &SyntaxError{Pos: p.pos, Msg: "unbalanced parenthesis"}
		}
		return 0, &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf("unexpected character %q", p.src[p.pos])}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

// Format renders v the way a JavaScript number prints: integers without a
// fraction, very large or very small magnitudes in exponent form.
func Format(v float64) string {
	if v == 0 {
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(v, 'e', -1, 64)
		// Go prints e+07 / e-07, JavaScript prints e+7 / e-7.
		if i := strings.IndexByte(s, 'e'); i >= 0 && i+2 < len(s) {
			mant, sign, exp := s[:i], s[i+1], strings.TrimLeft(s[i+2:], "0")
			if exp == "" {
				exp = "0"
			}
			s = mant + "e" + string(sign) + exp
		}
		return s
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekPow() bool {
	p.skipSpace()
	return strings.HasPrefix(p.src[p.pos:], "**")
}

// expr = term (('+' | '-') term)*
func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// term = unary (('*' | '/') unary)*
func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		c := p.peek()
		if c == '*' && !p.peekPow() {
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
			continue
		}
		if c == '/' {
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left /= right
			continue
		}
		return left, nil
	}
}

// unary = ('+' | '-') unary | power
func (p *parser) parseUnary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parsePower()
}

// power = primary ('**' unary)?
func (p *parser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.peekPow() {
		p.pos += 2
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

// primary = number | '(' expr ')'
func (p *parser) parsePrimary() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		open := p.pos
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, &SyntaxError{Pos: open, Msg: "unbalanced parenthesis"}
		}
		p.pos++
		return v, nil
	case c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case c == 0:
		return 0, &SyntaxError{Pos: p.pos, Msg: "unexpected end of expression"}
	default:
		return 0, &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf("unexpected character %q", c)}
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	digits := 0
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
		digits++
	}
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		p.pos++
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
			digits++
		}
	}
	if digits == 0 {
		return 0, &SyntaxError{Pos: start, Msg: "malformed number"}
	}
	if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		mark := p.pos
		p.pos++
		if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
			p.pos++
		}
		expDigits := 0
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
			expDigits++
		}
		if expDigits == 0 {
			return 0, &SyntaxError{Pos: mark, Msg: "malformed exponent"}
		}
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, &SyntaxError{Pos: start, Msg: "malformed number"}
	}
	// out of range literals parse to ±Inf or 0 and are caught by the finiteness check
	return v, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
