package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is matched by every error returned from the parse functions.
var ErrInvalid = errors.New("invalid descriptor")

// InvalidError describes why a descriptor was rejected.
type InvalidError struct {
	Text   string
	Offset int
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid descriptor %q at offset %d: %s", e.Text, e.Offset, e.Reason)
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

// Parsed is the result of Parse. Exactly one of Field and Method is set.
type Parsed struct {
	Field  *Type
	Method *Method
}

// Parse accepts either a field descriptor or a method descriptor. Text that
// starts with '(' is parsed as a method.
func Parse(text string) (*Parsed, error) {
	if strings.HasPrefix(text, "(") {
		m, err := ParseMethod(text)
		if err != nil {
			return nil, err
		}
		return &Parsed{Method: m}, nil
	}
	t, err := ParseField(text)
	if err != nil {
		return nil, err
	}
	return &Parsed{Field: &t}, nil
}

// ParseField parses a single field descriptor such as "I" or "[Ljava/lang/String;".
func ParseField(text string) (Type, error) {
	if err := checkChars(text); err != nil {
		return Type{}, err
	}
	p := parser{text: text}
	t, err := p.field()
	if err != nil {
		return Type{}, err
	}
	if p.pos != len(text) {
		return Type{}, p.fail("unexpected trailing characters")
	}
	return t, nil
}

// ParseMethod parses a method descriptor such as "(ILjava/lang/String;)V".
// The returned Method is not varargs.
func ParseMethod(text string) (*Method, error) {
	if err := checkChars(text); err != nil {
		return nil, err
	}
	p := parser{text: text}
	if !p.accept('(') {
		return nil, p.fail("method descriptor must start with '('")
	}
	params := []Type{}
	for {
		if p.eof() {
			return nil, p.fail("missing ')'")
		}
		if p.accept(')') {
			break
		}
		t, err := p.field()
		if err != nil {
			return nil, err
		}
		params = append(params, t)
	}

	m := &Method{Params: params}
	if !p.accept(byte(voidCode)) {
		ret, err := p.field()
		if err != nil {
			return nil, err
		}
		m.Return = &ret
	}
	if !p.eof() {
		return nil, p.fail("unexpected trailing characters")
	}
	return m, nil
}

// ParseVarargs parses a method descriptor for a method declared with a
// variable-arity trailing parameter. The last parameter must be an array.
func ParseVarargs(text string) (*Method, error) {
	m, err := ParseMethod(text)
	if err != nil {
		return nil, err
	}
	if len(m.Params) == 0 || !m.Params[len(m.Params)-1].IsArray() {
		return nil, &InvalidError{Text: text, Offset: len(text), Reason: "varargs method must end with an array parameter"}
	}
	m.Varargs = true
	return m, nil
}

// MustParseMethod is like ParseMethod but panics on error. It is meant for
// descriptors that are compile-time constants.
func MustParseMethod(text string) *Method {
	m, err := ParseMethod(text)
	if err != nil {
		panic(err)
	}
	return m
}

// MustParseField is like ParseField but panics on error.
func MustParseField(text string) Type {
	t, err := ParseField(text)
	if err != nil {
		panic(err)
	}
	return t
}

func checkChars(text string) error {
	if i := strings.IndexAny(text, ",."); i >= 0 {
		return &InvalidError{Text: text, Offset: i, Reason: fmt.Sprintf("illegal character %q", text[i])}
	}
	if text == "" {
		return &InvalidError{Text: text, Reason: "empty descriptor"}
	}
	return nil
}

type parser struct {
	text string
	pos  int
}

func (p *parser) eof() bool { return p.pos >= len(p.text) }

func (p *parser) accept(c byte) bool {
	if !p.eof() && p.text[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) fail(reason string) error {
	return &InvalidError{Text: p.text, Offset: p.pos, Reason: reason}
}

// field reads one field descriptor starting at p.pos.
func (p *parser) field() (Type, error) {
	dims := 0
	for p.accept('[') {
		dims++
	}
	if p.eof() {
		return Type{}, p.fail("missing element type")
	}

	c := Code(p.text[p.pos])
	switch {
	case c.IsPrimitive():
		p.pos++
		return Type{code: c, dims: dims}, nil

	case c == objectCode:
		start := p.pos + 1
		end := strings.IndexByte(p.text[start:], ';')
		if end < 0 {
			return Type{}, p.fail("unterminated class name")
		}
		name := p.text[start : start+end]
		if name == "" {
			return Type{}, p.fail("empty class name")
		}
		if strings.ContainsAny(name, "[()") {
			return Type{}, p.fail("illegal character in class name")
		}
		p.pos = start + end + 1
		return Type{code: objectCode, class: name, dims: dims}, nil
	}
	return Type{}, p.fail(fmt.Sprintf("unknown type code %q", byte(c)))
}

// ---------------------------------------------------------------------------
// Source notation
// ---------------------------------------------------------------------------

var primitiveNames = map[string]Code{
	"boolean": Boolean,
	"byte":    Byte,
	"char":    Char,
	"short":   Short,
	"int":     Int,
	"long":    Long,
	"float":   Float,
	"double":  Double,
}

// FromJavaName converts source notation ("int", "java.lang.String[]") to a
// Type. Descriptor text is accepted as well and passed to ParseField.
func FromJavaName(name string) (Type, error) {
	name = strings.TrimSpace(name)
	dims := 0
	for strings.HasSuffix(name, "[]") {
		dims++
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
	}
	if name == "" {
		return Type{}, &InvalidError{Text: name, Reason: "empty type name"}
	}

	var t Type
	if c, ok := primitiveNames[name]; ok {
		t = Type{code: c}
	} else if dims == 0 && (len(name) == 1 || strings.HasPrefix(name, "[") || strings.HasSuffix(name, ";")) {
		return ParseField(name)
	} else {
		if strings.ContainsAny(name, ",;[") {
			return Type{}, &InvalidError{Text: name, Reason: "illegal character in class name"}
		}
		t = Object(strings.ReplaceAll(name, ".", "/"))
	}
	t.dims = dims
	return t, nil
}
