// Package descriptor parses and renders JVM field and method type descriptors.
//
// The grammar is the one used in class files and JNI:
//
//	field-descriptor  ::= primitive-code | 'L' class-name ';' | '[' field-descriptor
//	method-descriptor ::= '(' field-descriptor* ')' (field-descriptor | 'V')
//
// Class names use '/' as the package separator. The characters ',' and '.'
// never appear in a well-formed descriptor.
package descriptor

import (
	"strings"
)

// Code is a single-character type code.
type Code byte

const (
	Boolean Code = 'Z'
	Byte    Code = 'B'
	Char    Code = 'C'
	Short   Code = 'S'
	Int     Code = 'I'
	Long    Code = 'J'
	Float   Code = 'F'
	Double  Code = 'D'

	objectCode Code = 'L'
	voidCode   Code = 'V'
)

// IsPrimitive reports whether c is one of Z B C S I J F D.
func (c Code) IsPrimitive() bool {
	switch c {
	case Boolean, Byte, Char, Short, Int, Long, Float, Double:
		return true
	}
	return false
}

// JavaName returns the source-level keyword for a primitive code.
func (c Code) JavaName() string {
	switch c {
	case Boolean:
		return "boolean"
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case voidCode:
		return "void"
	}
	return string(rune(c))
}

// Kind classifies a Type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindPrimitive
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "invalid"
}

// Type is a parsed field descriptor. It is a comparable value: two Types are
// equal exactly when their descriptor text is equal.
//
// An array type is stored as its base (innermost element) plus a dimension
// count, so nesting never needs pointers.
type Type struct {
	code  Code   // base primitive code, or 'L'
	class string // base class name when code is 'L'
	dims  int
}

// Primitive returns the primitive type for code c. It panics if c is not a
// primitive code; use ParseField for untrusted input.
func Primitive(c Code) Type {
	if !c.IsPrimitive() {
		panic("descriptor.Primitive: not a primitive code: " + string(rune(c)))
	}
	return Type{code: c}
}

// Object returns the object type for an internal class name such as
// "java/lang/String".
func Object(className string) Type {
	return Type{code: objectCode, class: className}
}

// ArrayOf returns the array type whose element type is elem.
func ArrayOf(elem Type) Type {
	elem.dims++
	return elem
}

// Kind returns the variant of t.
func (t Type) Kind() Kind {
	switch {
	case t.code == 0:
		return KindInvalid
	case t.dims > 0:
		return KindArray
	case t.code == objectCode:
		return KindObject
	default:
		return KindPrimitive
	}
}

func (t Type) IsPrimitive() bool { return t.Kind() == KindPrimitive }
func (t Type) IsObject() bool    { return t.Kind() == KindObject }
func (t Type) IsArray() bool     { return t.Kind() == KindArray }

// Code returns the primitive code of a primitive type, 'L' for object types
// and '[' for arrays.
func (t Type) Code() Code {
	if t.dims > 0 {
		return '['
	}
	return t.code
}

// ClassName returns the internal class name of an object type, or "" for
// any other kind.
func (t Type) ClassName() string {
	if t.Kind() != KindObject {
		return ""
	}
	return t.class
}

// Depth returns the array nesting depth (0 for non-arrays).
func (t Type) Depth() int { return t.dims }

// Elem returns the element type of an array type. For a non-array it
// returns t unchanged.
func (t Type) Elem() Type {
	if t.dims == 0 {
		return t
	}
	t.dims--
	return t
}

// Base returns the innermost element type of an array (t itself otherwise).
func (t Type) Base() Type {
	t.dims = 0
	return t
}

// String renders t back to descriptor text.
func (t Type) String() string {
	if t.code == 0 {
		return ""
	}
	var b strings.Builder
	t.writeTo(&b)
	return b.String()
}

func (t Type) writeTo(b *strings.Builder) {
	for i := 0; i < t.dims; i++ {
		b.WriteByte('[')
	}
	b.WriteByte(byte(t.code))
	if t.code == objectCode {
		b.WriteString(t.class)
		b.WriteByte(';')
	}
}

// JavaName renders t in source notation, e.g. "java.lang.String[]".
func (t Type) JavaName() string {
	var base string
	if t.code == objectCode {
		base = strings.ReplaceAll(t.class, "/", ".")
	} else {
		base = t.code.JavaName()
	}
	return base + strings.Repeat("[]", t.dims)
}

// Method is a parsed method descriptor plus the varargs flag, which the
// descriptor text itself does not carry. A Method is never modified after
// it is constructed.
type Method struct {
	Params  []Type
	Return  *Type // nil for void
	Varargs bool
}

// Arity returns the number of declared parameters.
func (m *Method) Arity() int { return len(m.Params) }

// String renders the method descriptor text (varargs is not represented).
func (m *Method) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.Params {
		p.writeTo(&b)
	}
	b.WriteByte(')')
	if m.Return == nil {
		b.WriteByte(byte(voidCode))
	} else {
		m.Return.writeTo(&b)
	}
	return b.String()
}

// JavaParams renders the parameter list in source notation, with a
// trailing "..." when the method is varargs.
func (m *Method) JavaParams() string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.JavaName()
	}
	if m.Varargs && len(names) > 0 {
		last := m.Params[len(m.Params)-1]
		names[len(names)-1] = last.Elem().JavaName() + "..."
	}
	return "(" + strings.Join(names, ", ") + ")"
}
