package host

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Parse reads a value literal as typed on a command line:
//
//	null  true  false  42  -7  123456789012345678901234  2.5  1e9
//	"quoted"  b"bytes"  [1, "two", [3.0]]
//
// Anything else is taken as a bare string.
func Parse(text string) (Value, error) {
	p := &literalParser{src: strings.TrimSpace(text)}
	if p.src == "" {
		return StrValue(""), nil
	}
	if !strings.ContainsAny(p.src[:1], `["`) && !strings.HasPrefix(p.src, `b"`) {
		return scalar(p.src), nil
	}
	v, err := p.value()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Value{}, fmt.Errorf("host: trailing text %q in literal", p.src[p.pos:])
	}
	return v, nil
}

// ParseAll parses each argument with Parse.
func ParseAll(args []string) ([]Value, error) {
	values := make([]Value, len(args))
	for i, a := range args {
		v, err := Parse(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func scalar(tok string) Value {
	switch tok {
	case "null", "nil":
		return NilValue()
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if n, ok := new(big.Int).SetString(tok, 10); ok {
		return Value{Kind: KindInt, Int: n}
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return FloatValue(f)
	}
	return StrValue(tok)
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *literalParser) value() (Value, error) {
	p.skipSpace()
	rest := p.src[p.pos:]
	switch {
	case rest == "":
		return Value{}, fmt.Errorf("host: unexpected end of literal")
	case rest[0] == '[':
		return p.list()
	case rest[0] == '"':
		s, err := p.quoted()
		return StrValue(s), err
	case strings.HasPrefix(rest, `b"`):
		p.pos++
		s, err := p.quoted()
		return BytesValue([]byte(s)), err
	}
	end := strings.IndexAny(rest, ",]")
	if end < 0 {
		end = len(rest)
	}
	tok := strings.TrimSpace(rest[:end])
	p.pos += end
	if tok == "" {
		return Value{}, fmt.Errorf("host: empty element in literal")
	}
	return scalar(tok), nil
}

func (p *literalParser) quoted() (string, error) {
	q, err := strconv.QuotedPrefix(p.src[p.pos:])
	if err != nil {
		return "", fmt.Errorf("host: bad quoted string at offset %d: %w", p.pos, err)
	}
	p.pos += len(q)
	return strconv.Unquote(q)
}

func (p *literalParser) list() (Value, error) {
	p.pos++ // [
	elems := []Value{}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		return ListValue(elems...), nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return Value{}, fmt.Errorf("host: unterminated list")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return ListValue(elems...), nil
		default:
			return Value{}, fmt.Errorf("host: unexpected %q in list", p.src[p.pos])
		}
	}
}
