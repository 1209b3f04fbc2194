// Package host is the dynamically-typed value model on the Go side of the
// bridge. Values are what callers pass to overloaded JVM methods and what
// they get back from them.
package host

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/chazu/jbridge/jni"
)

// Kind is the dispatch kind of a host value. Overload specificity depends on
// the kind of each argument, never on its contents.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindBytes
	KindList
	KindObject
)

var kindNames = [...]string{"nil", "bool", "int", "float", "str", "bytes", "list", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged host value. The zero Value is nil.
type Value struct {
	Kind   Kind
	Int    *big.Int
	Float  float64
	Bool   bool
	Str    string
	Bytes  []byte
	List   []Value
	Object *Object
}

// NilValue returns the nil value.
func NilValue() Value {
	return Value{Kind: KindNil}
}

// BoolValue creates a boolean value.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// IntValue creates an integer value.
func IntValue(n int64) Value {
	return Value{Kind: KindInt, Int: big.NewInt(n)}
}

// BigIntValue creates an integer value of arbitrary size. n is copied.
func BigIntValue(n *big.Int) Value {
	return Value{Kind: KindInt, Int: new(big.Int).Set(n)}
}

// FloatValue creates a float value.
func FloatValue(f float64) Value {
	return Value{Kind: KindFloat, Float: f}
}

// StrValue creates a string value.
func StrValue(s string) Value {
	return Value{Kind: KindStr, Str: s}
}

// BytesValue creates a byte-string value.
func BytesValue(b []byte) Value {
	return Value{Kind: KindBytes, Bytes: b}
}

// ListValue creates a list value.
func ListValue(elems ...Value) Value {
	return Value{Kind: KindList, List: elems}
}

// ObjectValue wraps a JVM object.
func ObjectValue(o *Object) Value {
	if o == nil {
		return NilValue()
	}
	return Value{Kind: KindObject, Object: o}
}

// IsNil reports whether v is nil.
func (v Value) IsNil() bool {
	return v.Kind == KindNil
}

// Kinds returns the dispatch kind of each value.
func Kinds(args []Value) []Kind {
	kinds := make([]Kind, len(args))
	for i, a := range args {
		kinds[i] = a.Kind
	}
	return kinds
}

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return v.Int.String()
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindStr:
		return strconv.Quote(v.Str)
	case KindBytes:
		return fmt.Sprintf("b%q", v.Bytes)
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		return v.Object.String()
	default:
		return v.Kind.String()
	}
}

// ---------------------------------------------------------------------------
// Object wrappers
// ---------------------------------------------------------------------------

// Object is a wrapper around a JVM object handle. Class is the apparent
// class the wrapper presents to overload resolution, in internal form
// (java/lang/String, or descriptor text such as [I for arrays). It can be a
// supertype of the object's real class.
//
// Wrappers are immutable; As returns a new one.
type Object struct {
	Ref   jni.Ref
	Class string
}

// NewObject wraps ref with apparent class className.
func NewObject(ref jni.Ref, className string) *Object {
	return &Object{Ref: ref, Class: className}
}

// Assignability answers whether an instance of class from can be used where
// class to is expected.
type Assignability interface {
	IsAssignable(from, to string) bool
}

// As returns a wrapper for the same handle presenting className as its
// apparent class. It fails unless className is the current apparent class
// or one of its supertypes.
func (o *Object) As(className string, checker Assignability) (*Object, error) {
	if className != o.Class && !checker.IsAssignable(o.Class, className) {
		return nil, fmt.Errorf("host: cannot view %s as %s", o.Class, className)
	}
	return &Object{Ref: o.Ref, Class: className}, nil
}

func (o *Object) String() string {
	return fmt.Sprintf("<%s@%#x>", o.Class, uintptr(o.Ref))
}
