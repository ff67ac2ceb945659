package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokOpen
	tokClose
	tokComma
	tokEnd
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Binding powers. Prefix sign sits between the multiplicative operators and
// exponentiation, so -x^2 is -(x^2) while -x*3 is (-x)*3.
const (
	precAdditive = 1 + iota
	precMultiplicative
	precPrefix
	precPower
)

var binaryPrec = map[string]int{
	"+":  precAdditive,
	"-":  precAdditive,
	"*":  precMultiplicative,
	"/":  precMultiplicative,
	"%":  precMultiplicative,
	"^":  precPower,
	"**": precPower,
}

// normalize rewrites math notation into fully parenthesized govaluate text.
// Exponentiation is right associative and binds tighter than a prefix sign,
// scientific literals are expanded, and every token is space separated so
// govaluate never merges adjacent symbols such as "^-".
func normalize(source string) (string, error) {
	tokens, err := lex(source)
	if err != nil {
		return "", err
	}
	p := &parser{tokens: tokens}
	out, err := p.expression(0)
	if err != nil {
		return "", err
	}
	if t := p.peek(); t.kind != tokEnd {
		return "", fmt.Errorf("unexpected %q at position %d", t.text, t.pos+1)
	}
	return out, nil
}

func lex(source string) ([]token, error) {
	var tokens []token
	runes := []rune(source)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			// Exponent only when digits follow, so "2e" stays 2 followed by e.
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j < len(runes) && unicode.IsDigit(runes[j]) {
					for j < len(runes) && unicode.IsDigit(runes[j]) {
						j++
					}
					i = j
				}
			}
			text, err := number(string(runes[start:i]))
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		case r == '(':
			tokens = append(tokens, token{kind: tokOpen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokClose, text: ")", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == '*' && i+1 < len(runes) && runes[i+1] == '*':
			tokens = append(tokens, token{kind: tokOp, text: "**", pos: i})
			i += 2
		case strings.ContainsRune("+-*/%^", r):
			tokens = append(tokens, token{kind: tokOp, text: string(r), pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", r, i+1)
		}
	}
	return append(tokens, token{kind: tokEnd, pos: len(runes)}), nil
}

func number(text string) (string, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(v, 0) {
		return "", fmt.Errorf("invalid number %q", text)
	}
	if !strings.ContainsAny(text, "eE") {
		return text, nil
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

var errUnexpectedEnd = errors.New("unexpected end of expression")

type parser struct {
	tokens []token
	next   int
}

func (p *parser) peek() token {
	return p.tokens[p.next]
}

func (p *parser) advance() token {
	t := p.tokens[p.next]
	if t.kind != tokEnd {
		p.next++
	}
	return t
}

// expression parses operators binding tighter than minPrec.
func (p *parser) expression(minPrec int) (string, error) {
	left, err := p.unary()
	if err != nil {
		return "", err
	}
	for {
		t := p.peek()
		if t.kind != tokOp {
			return left, nil
		}
		prec := binaryPrec[t.text]
		if prec <= minPrec {
			return left, nil
		}
		p.advance()
		op := t.text
		next := prec
		if prec == precPower {
			op = "**"
			// Right associative: the exponent may itself be a power.
			next = prec - 1
		}
		right, err := p.expression(next)
		if err != nil {
			return "", err
		}
		left = "( " + left + " " + op + " " + right + " )"
	}
}

func (p *parser) unary() (string, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.advance()
		operand, err := p.expression(precPrefix)
		if err != nil {
			return "", err
		}
		if t.text == "+" {
			return operand, nil
		}
		return "( - " + operand + " )", nil
	}
	return p.primary()
}

func (p *parser) primary() (string, error) {
	t := p.advance()
	switch t.kind {
	case tokNumber:
		return t.text, nil
	case tokIdent:
		if p.peek().kind != tokOpen {
			return t.text, nil
		}
		p.advance()
		args, err := p.arguments()
		if err != nil {
			return "", err
		}
		return t.text + " ( " + strings.Join(args, " , ") + " )", nil
	case tokOpen:
		inner, err := p.expression(0)
		if err != nil {
			return "", err
		}
		if err := p.expect(tokClose); err != nil {
			return "", err
		}
		return "( " + inner + " )", nil
	case tokEnd:
		return "", errUnexpectedEnd
	default:
		return "", fmt.Errorf("unexpected %q at position %d", t.text, t.pos+1)
	}
}

func (p *parser) arguments() ([]string, error) {
	if p.peek().kind == tokClose {
		p.advance()
		return nil, nil
	}
	var args []string
	for {
		arg, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().kind == tokComma {
			p.advance()
			continue
		}
		return args, p.expect(tokClose)
	}
}

func (p *parser) expect(kind tokenKind) error {
	t := p.advance()
	if t.kind == kind {
		return nil
	}
	if t.kind == tokEnd {
		return errUnexpectedEnd
	}
	return fmt.Errorf("unexpected %q at position %d", t.text, t.pos+1)
}
