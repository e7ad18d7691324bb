package condition

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Parse compiles an expression into a Node tree.
//
// Parameters:
//   - expr: expression text; blank input yields True
//
// Returns:
//   - Node: the parsed tree
//   - error: a *ParseError (matching ErrSyntax) describing the first problem
func Parse(expr string) (Node, error) {
	if strings.TrimSpace(expr) == "" {
		return True{}, nil
	}
	p := &parser{src: expr}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		if p.peek() == ')' {
			return nil, p.errorf("unbalanced ')'")
		}
		return nil, p.errorf("unexpected %q", string(p.peek()))
	}
	return n, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(expr string) Node {
	n, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.peek())) {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	return newParseError(p.src, p.pos, format, args...)
}

// expect consumes c or fails.
func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.eof() {
		return p.errorf("expected %q, found end of input", string(c))
	}
	if p.peek() != c {
		return p.errorf("expected %q", string(c))
	}
	p.pos++
	return nil
}

// expr := unary (('&' | '|') unary)*
func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.eof() {
			return left, nil
		}
		op := p.peek()
		if op != '&' && op != '|' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == '&' {
			left = &And{Left: left, Right: right}
		} else {
			left = &Or{Left: left, Right: right}
		}
	}
}

// unary := '!' unary | primary
func (p *parser) parseUnary() (Node, error) {
	p.skipSpace()
	if !p.eof() && p.peek() == '!' {
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{X: x}, nil
	}
	return p.parsePrimary()
}

// primary := '(' expr ')' | leaf | 'true'
func (p *parser) parsePrimary() (Node, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("expected operand")
	}
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return n, nil
	case c == '[':
		return p.parseLeaf()
	case strings.HasPrefix(p.src[p.pos:], "true"):
		p.pos += len("true")
		return True{}, nil
	default:
		return nil, p.errorf("expected operand")
	}
}

// leaf := '[' name (',' num ',' num)? ']' ('{' num ',' num '}')?
func (p *parser) parseLeaf() (Node, error) {
	start := p.pos
	p.pos++ // '['

	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return nil, newParseError(p.src, start, "unterminated state leaf")
	}
	body := p.src[p.pos : p.pos+end]
	bodyPos := p.pos
	p.pos += end + 1

	parts := strings.Split(body, ",")
	name := NormalizeName(parts[0])
	if name == "" {
		return nil, newParseError(p.src, start, "empty state name")
	}
	if strings.ContainsAny(name, "[](){}&|!") {
		return nil, newParseError(p.src, bodyPos, "invalid character in state name %q", name)
	}

	leaf := &Leaf{State: name, Window: Window{Min: 0, Max: Unbounded}}
	switch len(parts) {
	case 1:
	case 3:
		lo, err := parseNumber(parts[1])
		if err != nil {
			return nil, newParseError(p.src, bodyPos, "invalid window minimum %q", strings.TrimSpace(parts[1]))
		}
		hi, err := parseNumber(parts[2])
		if err != nil {
			return nil, newParseError(p.src, bodyPos, "invalid window maximum %q", strings.TrimSpace(parts[2]))
		}
		if lo < 0 || hi < lo {
			return nil, newParseError(p.src, start, "invalid window [%s, %s]", strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]))
		}
		leaf.Window = Window{Min: toDuration(lo), Max: toDuration(hi)}
	default:
		return nil, newParseError(p.src, start, "state leaf takes a name and optionally two window bounds")
	}

	p.skipSpace()
	if p.eof() || p.peek() != '{' {
		return leaf, nil
	}

	rangeStart := p.pos
	p.pos++
	end = strings.IndexByte(p.src[p.pos:], '}')
	if end < 0 {
		return nil, newParseError(p.src, rangeStart, "unterminated value range")
	}
	bounds := strings.Split(p.src[p.pos:p.pos+end], ",")
	p.pos += end + 1
	if len(bounds) != 2 {
		return nil, newParseError(p.src, rangeStart, "value range takes two bounds")
	}
	lo, err := parseNumber(bounds[0])
	if err != nil {
		return nil, newParseError(p.src, rangeStart, "invalid range minimum %q", strings.TrimSpace(bounds[0]))
	}
	hi, err := parseNumber(bounds[1])
	if err != nil {
		return nil, newParseError(p.src, rangeStart, "invalid range maximum %q", strings.TrimSpace(bounds[1]))
	}
	if hi < lo {
		return nil, newParseError(p.src, rangeStart, "value range minimum exceeds maximum")
	}
	leaf.Range = &Range{Min: lo, Max: hi}
	return leaf, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

// toDuration converts seconds to a Duration, saturating at Unbounded.
func toDuration(sec float64) time.Duration {
	if math.IsInf(sec, 1) || sec*float64(time.Second) >= float64(math.MaxInt64) {
		return Unbounded
	}
	return time.Duration(sec * float64(time.Second))
}
