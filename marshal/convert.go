// Package marshal converts host values to JVM values for a declared
// descriptor type and converts JVM results back.
//
// Conversion happens in two steps. TryConvert checks a value against a type
// and describes the JVM value it would become, without touching the VM, so
// the overload resolver can use it as a probe. Native.Materialize then
// creates that value through a jni.Env.
package marshal

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"unicode/utf16"

	"github.com/tliron/commonlog"

	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/host"
	"github.com/chazu/jbridge/jni"
)

var log = commonlog.GetLogger("jbridge.marshal")

// ErrTypeMismatch is matched by every MismatchError.
var ErrTypeMismatch = errors.New("type mismatch")

// MismatchError reports that a host value cannot stand in for a declared type.
type MismatchError struct {
	Type   descriptor.Type
	Value  host.Value
	Reason string
}

func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("marshal: cannot convert %s %s to %s", e.Value.Kind, e.Value, e.Type.JavaName())
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *MismatchError) Unwrap() error { return ErrTypeMismatch }

func mismatch(t descriptor.Type, v host.Value, reason string) error {
	return &MismatchError{Type: t, Value: v, Reason: reason}
}

// Hierarchy answers class assignability questions in internal names
// (java/lang/String, [I).
type Hierarchy interface {
	IsAssignable(from, to string) bool
}

// Class names the conversion contract refers to.
const (
	ObjectClass       = "java/lang/Object"
	StringClass       = "java/lang/String"
	NumberClass       = "java/lang/Number"
	CharSequenceClass = "java/lang/CharSequence"
	SerializableClass = "java/io/Serializable"
	ComparableClass   = "java/lang/Comparable"
	CloneableClass    = "java/lang/Cloneable"
	CharacterClass    = "java/lang/Character"
)

// boxClasses maps each wrapper class to its primitive.
var boxClasses = map[string]descriptor.Code{
	"java/lang/Boolean":   descriptor.Boolean,
	"java/lang/Byte":      descriptor.Byte,
	"java/lang/Character": descriptor.Char,
	"java/lang/Short":     descriptor.Short,
	"java/lang/Integer":   descriptor.Int,
	"java/lang/Long":      descriptor.Long,
	"java/lang/Float":     descriptor.Float,
	"java/lang/Double":    descriptor.Double,
}

// BoxClass returns the wrapper class for a primitive code.
func BoxClass(c descriptor.Code) string {
	for name, code := range boxClasses {
		if code == c {
			return name
		}
	}
	return ""
}

// UnboxCode returns the primitive a wrapper class holds.
func UnboxCode(className string) (descriptor.Code, bool) {
	c, ok := boxClasses[className]
	return c, ok
}

func oneOf(name string, set ...string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// TryConvert
// ---------------------------------------------------------------------------

// TryConvert checks whether v can be passed where t is declared and returns
// a description of the JVM value. It never touches the VM. A failure is
// always a *MismatchError.
func TryConvert(h Hierarchy, t descriptor.Type, v host.Value) (Native, error) {
	switch t.Kind() {
	case descriptor.KindPrimitive:
		return convertPrimitive(t, v)
	case descriptor.KindObject:
		return convertObject(h, t, v)
	case descriptor.KindArray:
		return convertArray(h, t, v)
	}
	return Native{}, mismatch(t, v, "invalid type")
}

func convertPrimitive(t descriptor.Type, v host.Value) (Native, error) {
	code := t.Code()
	switch code {
	case descriptor.Boolean:
		if v.Kind == host.KindBool {
			return primitive(t, jni.Boolean(v.Bool)), nil
		}
	case descriptor.Byte, descriptor.Short, descriptor.Int, descriptor.Long:
		if v.Kind == host.KindInt {
			val, ok := integerValue(code, v.Int)
			if !ok {
				return Native{}, mismatch(t, v, "out of range")
			}
			return primitive(t, val), nil
		}
	case descriptor.Char:
		if v.Kind == host.KindStr {
			units := utf16.Encode([]rune(v.Str))
			if len(units) != 1 {
				return Native{}, mismatch(t, v, "not a single UTF-16 unit")
			}
			return primitive(t, jni.Char(units[0])), nil
		}
	case descriptor.Float, descriptor.Double:
		f, ok := floatOf(v)
		if !ok {
			break
		}
		if code == descriptor.Double {
			return primitive(t, jni.Double(f)), nil
		}
		if !fitsFloat32(f) {
			return Native{}, mismatch(t, v, "out of range")
		}
		return primitive(t, jni.Float(float32(f))), nil
	}
	return Native{}, mismatch(t, v, "")
}

var integerBounds = map[descriptor.Code][2]int64{
	descriptor.Byte:  {math.MinInt8, math.MaxInt8},
	descriptor.Short: {math.MinInt16, math.MaxInt16},
	descriptor.Int:   {math.MinInt32, math.MaxInt32},
	descriptor.Long:  {math.MinInt64, math.MaxInt64},
}

func integerValue(code descriptor.Code, n *big.Int) (jni.Value, bool) {
	if !n.IsInt64() {
		return 0, false
	}
	i := n.Int64()
	b := integerBounds[code]
	if i < b[0] || i > b[1] {
		return 0, false
	}
	switch code {
	case descriptor.Byte:
		return jni.Byte(int8(i)), true
	case descriptor.Short:
		return jni.Short(int16(i)), true
	case descriptor.Int:
		return jni.Int(int32(i)), true
	default:
		return jni.Long(i), true
	}
}

func floatOf(v host.Value) (float64, bool) {
	switch v.Kind {
	case host.KindFloat:
		return v.Float, true
	case host.KindInt:
		f, _ := new(big.Float).SetInt(v.Int).Float64()
		return f, true
	}
	return 0, false
}

func fitsFloat32(f float64) bool {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return true
	}
	return math.Abs(f) <= math.MaxFloat32
}

func convertObject(h Hierarchy, t descriptor.Type, v host.Value) (Native, error) {
	class := t.ClassName()
	switch v.Kind {
	case host.KindNil:
		return null(t), nil

	case host.KindStr:
		if oneOf(class, StringClass, ObjectClass, CharSequenceClass, SerializableClass, ComparableClass) {
			return Native{Type: t, kind: nativeString, str: v.Str}, nil
		}
		if class == CharacterClass {
			p, err := convertPrimitive(descriptor.Primitive(descriptor.Char), v)
			if err != nil {
				return Native{}, mismatch(t, v, "not a single UTF-16 unit")
			}
			return boxed(t, descriptor.Char, p.prim), nil
		}

	case host.KindBool:
		if oneOf(class, "java/lang/Boolean", ObjectClass, SerializableClass, ComparableClass) {
			return boxed(t, descriptor.Boolean, jni.Boolean(v.Bool)), nil
		}

	case host.KindInt:
		code, ok := boxClasses[class]
		switch {
		case ok && code != descriptor.Boolean && code != descriptor.Char:
		case oneOf(class, NumberClass, ObjectClass, SerializableClass, ComparableClass):
			code = descriptor.Int
			if !v.Int.IsInt64() || v.Int.Int64() < math.MinInt32 || v.Int.Int64() > math.MaxInt32 {
				code = descriptor.Long
			}
		default:
			return Native{}, mismatch(t, v, "")
		}
		p, err := convertPrimitive(descriptor.Primitive(code), v)
		if err != nil {
			return Native{}, mismatch(t, v, "out of range")
		}
		return boxed(t, code, p.prim), nil

	case host.KindFloat:
		code := descriptor.Double
		switch {
		case class == "java/lang/Float":
			code = descriptor.Float
		case oneOf(class, "java/lang/Double", NumberClass, ObjectClass, SerializableClass, ComparableClass):
		default:
			return Native{}, mismatch(t, v, "")
		}
		p, err := convertPrimitive(descriptor.Primitive(code), v)
		if err != nil {
			return Native{}, mismatch(t, v, "out of range")
		}
		return boxed(t, code, p.prim), nil

	case host.KindObject:
		if v.Object.Class == class || h.IsAssignable(v.Object.Class, class) {
			return Native{Type: t, kind: nativeRef, ref: v.Object.Ref}, nil
		}
		return Native{}, mismatch(t, v, v.Object.Class+" is not assignable")

	case host.KindList, host.KindBytes:
		// Passed as an Object[] or byte[].
		if oneOf(class, ObjectClass, CloneableClass, SerializableClass) {
			elem := descriptor.Object(ObjectClass)
			if v.Kind == host.KindBytes {
				elem = descriptor.Primitive(descriptor.Byte)
			}
			n, err := convertArray(h, descriptor.ArrayOf(elem), v)
			if err != nil {
				return Native{}, mismatch(t, v, "")
			}
			// n.Type stays the array type Materialize has to build.
			return n, nil
		}
	}
	return Native{}, mismatch(t, v, "")
}

func convertArray(h Hierarchy, t descriptor.Type, v host.Value) (Native, error) {
	elem := t.Elem()
	switch v.Kind {
	case host.KindNil:
		return null(t), nil

	case host.KindList:
		n := Native{Type: t, kind: nativeArray, elems: make([]Native, len(v.List))}
		for i, e := range v.List {
			en, err := TryConvert(h, elem, e)
			if err != nil {
				return Native{}, mismatch(t, v, fmt.Sprintf("element %d: %v", i, err))
			}
			n.elems[i] = en
		}
		return n, nil

	case host.KindBytes:
		if elem.IsPrimitive() && elem.Code() == descriptor.Byte {
			n := Native{Type: t, kind: nativeArray, elems: make([]Native, len(v.Bytes))}
			for i, b := range v.Bytes {
				n.elems[i] = primitive(elem, jni.Byte(int8(b)))
			}
			return n, nil
		}

	case host.KindStr:
		if elem.IsPrimitive() && elem.Code() == descriptor.Char {
			units := utf16.Encode([]rune(v.Str))
			n := Native{Type: t, kind: nativeArray, elems: make([]Native, len(units))}
			for i, u := range units {
				n.elems[i] = primitive(elem, jni.Char(u))
			}
			return n, nil
		}

	case host.KindObject:
		if v.Object.Class == t.String() || h.IsAssignable(v.Object.Class, t.String()) {
			return Native{Type: t, kind: nativeRef, ref: v.Object.Ref}, nil
		}
		return Native{}, mismatch(t, v, v.Object.Class+" is not assignable")
	}
	return Native{}, mismatch(t, v, "")
}

// ---------------------------------------------------------------------------
// Argument lists
// ---------------------------------------------------------------------------

// ConvertArgs converts args for sig. With varargs, the trailing arguments
// are collected into an array of the last parameter's type.
func ConvertArgs(h Hierarchy, sig *descriptor.Method, args []host.Value, varargs bool) ([]Native, error) {
	params := sig.Params
	if varargs {
		fixed := len(params) - 1
		if fixed < 0 || len(args) < fixed || !params[fixed].IsArray() {
			return nil, fmt.Errorf("marshal: %d arguments do not fit varargs %s", len(args), sig)
		}
		packed := append(append([]host.Value{}, args[:fixed]...), host.ListValue(args[fixed:]...))
		args = packed
	}
	if len(args) != len(params) {
		return nil, fmt.Errorf("marshal: %s takes %d arguments, got %d", sig, len(params), len(args))
	}
	natives := make([]Native, len(args))
	for i, a := range args {
		n, err := TryConvert(h, params[i], a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		natives[i] = n
	}
	return natives, nil
}
