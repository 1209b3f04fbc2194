package marshal

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/chazu/jbridge/bridge"
	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/host"
	"github.com/chazu/jbridge/jni"
)

// FromNative converts a value returned by a method declared to return t
// (nil for void) into a host value. It takes ownership of an object result:
// strings and boxed primitives, including those returned through a declared
// supertype such as Object or Number, are copied out and the local is
// deleted. Any other object is promoted to a global reference and wrapped
// with its declared type as apparent class.
//
// An error is only possible when the VM throws while the result is read; it
// wraps ErrPending.
func FromNative(env jni.Env, t *descriptor.Type, v jni.Value) (host.Value, error) {
	if t == nil {
		return host.NilValue(), nil
	}
	if t.IsPrimitive() {
		return fromPrimitive(t.Code(), v), nil
	}

	ref := v.Ref()
	if ref.IsNull() {
		return host.NilValue(), nil
	}
	defer env.DeleteLocalRef(ref)

	if t.IsObject() {
		class := t.ClassName()
		if class == StringClass || isString(env, ref, class) {
			s := env.GetStringUTF(ref)
			if env.ExceptionCheck() {
				return host.Value{}, fmt.Errorf("reading string result: %w", ErrPending)
			}
			return host.StrValue(s), nil
		}
		if code, ok := boxClasses[class]; ok {
			return unbox(env, ref, class, code)
		}
		wrapper, code, err := runtimeBox(env, ref, class)
		if err != nil {
			return host.Value{}, err
		}
		if wrapper != "" {
			return unbox(env, ref, wrapper, code)
		}
	}

	apparent := t.ClassName()
	if t.IsArray() {
		apparent = t.String()
	}
	global := env.NewGlobalRef(ref)
	return host.ObjectValue(host.NewObject(global, apparent)), nil
}

func fromPrimitive(code descriptor.Code, v jni.Value) host.Value {
	switch code {
	case descriptor.Boolean:
		return host.BoolValue(v.Bool())
	case descriptor.Byte:
		return host.IntValue(int64(v.Byte()))
	case descriptor.Short:
		return host.IntValue(int64(v.Short()))
	case descriptor.Int:
		return host.IntValue(int64(v.Int()))
	case descriptor.Long:
		return host.IntValue(v.Long())
	case descriptor.Char:
		return host.StrValue(string(utf16.Decode([]uint16{v.Char()})))
	case descriptor.Float:
		return host.FloatValue(float64(v.Float()))
	default:
		return host.FloatValue(v.Double())
	}
}

// isString reports whether a result declared as one of String's supertypes
// is a String at runtime.
func isString(env jni.Env, ref jni.Ref, declared string) bool {
	if !oneOf(declared, ObjectClass, CharSequenceClass, SerializableClass, ComparableClass) {
		return false
	}
	cls := env.FindClass(StringClass)
	if cls.IsNull() {
		env.ExceptionClear()
		return false
	}
	defer env.DeleteLocalRef(cls)
	return env.IsInstanceOf(ref, cls)
}

// runtimeBox reports the wrapper class of a result declared as one of the
// wrappers' supertypes. It returns "" when the object is not a wrapper.
func runtimeBox(env jni.Env, ref jni.Ref, declared string) (string, descriptor.Code, error) {
	if !oneOf(declared, ObjectClass, NumberClass, SerializableClass, ComparableClass) {
		return "", 0, nil
	}
	name, err := bridge.RuntimeClassName(env, ref)
	if err != nil {
		if env.ExceptionCheck() {
			return "", 0, fmt.Errorf("reading result class: %w", ErrPending)
		}
		log.Debugf("cannot name result class: %s", err)
		return "", 0, nil
	}
	class := strings.ReplaceAll(name, ".", "/")
	code, ok := boxClasses[class]
	if !ok {
		return "", 0, nil
	}
	return class, code, nil
}

var unboxMethods = map[descriptor.Code]string{
	descriptor.Boolean: "booleanValue",
	descriptor.Byte:    "byteValue",
	descriptor.Char:    "charValue",
	descriptor.Short:   "shortValue",
	descriptor.Int:     "intValue",
	descriptor.Long:    "longValue",
	descriptor.Float:   "floatValue",
	descriptor.Double:  "doubleValue",
}

func unbox(env jni.Env, ref jni.Ref, class string, code descriptor.Code) (host.Value, error) {
	cls := env.GetObjectClass(ref)
	defer env.DeleteLocalRef(cls)
	name := unboxMethods[code]
	m := env.GetMethodID(cls, name, "()"+string(rune(code)))
	if m == 0 {
		return host.Value{}, fmt.Errorf("%s.%s: %w", class, name, ErrPending)
	}
	t := descriptor.Primitive(code)
	v := env.CallMethod(ref, m, jni.ReturnOf(&t), nil)
	if env.ExceptionCheck() {
		return host.Value{}, fmt.Errorf("unboxing %s: %w", class, ErrPending)
	}
	return fromPrimitive(code, v), nil
}
