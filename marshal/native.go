package marshal

import (
	"errors"
	"fmt"

	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/jni"
)

// ErrPending is returned when the VM raised an exception while a value was
// being created or read. The exception is left pending for the caller to
// drain.
var ErrPending = errors.New("marshal: JVM exception pending")

type nativeKind int

const (
	nativeNull nativeKind = iota
	nativePrimitive
	nativeRef
	nativeString
	nativeBox
	nativeArray
)

// Native describes a JVM value produced by TryConvert. Creating it costs
// nothing; Materialize does the VM work.
type Native struct {
	Type descriptor.Type

	kind  nativeKind
	prim  jni.Value
	code  descriptor.Code // boxed primitive
	ref   jni.Ref
	str   string
	elems []Native
}

func primitive(t descriptor.Type, v jni.Value) Native {
	return Native{Type: t, kind: nativePrimitive, prim: v}
}

func null(t descriptor.Type) Native {
	return Native{Type: t, kind: nativeNull}
}

func boxed(t descriptor.Type, code descriptor.Code, v jni.Value) Native {
	return Native{Type: t, kind: nativeBox, code: code, prim: v}
}

// IsNull reports whether the value is a null reference.
func (n Native) IsNull() bool { return n.kind == nativeNull }

// Len returns the element count of an array value.
func (n Native) Len() int { return len(n.elems) }

// Materialize creates the value through env. Every local reference it
// creates is tracked by scope; references wrapped by host objects are passed
// through untracked.
func (n Native) Materialize(env jni.Env, scope *jni.Scope) (jni.Value, error) {
	switch n.kind {
	case nativeNull:
		return 0, nil
	case nativePrimitive:
		return n.prim, nil
	case nativeRef:
		return jni.Object(n.ref), nil
	case nativeString:
		s := scope.Track(env.NewStringUTF(n.str))
		if env.ExceptionCheck() {
			return 0, fmt.Errorf("creating string: %w", ErrPending)
		}
		return jni.Object(s), nil
	case nativeBox:
		return n.materializeBox(env, scope)
	case nativeArray:
		return n.materializeArray(env, scope)
	}
	return 0, fmt.Errorf("marshal: unknown native kind %d", n.kind)
}

// MaterializeAll materializes each value in order.
func MaterializeAll(env jni.Env, scope *jni.Scope, natives []Native) ([]jni.Value, error) {
	values := make([]jni.Value, len(natives))
	for i, n := range natives {
		v, err := n.Materialize(env, scope)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func (n Native) materializeBox(env jni.Env, scope *jni.Scope) (jni.Value, error) {
	class := BoxClass(n.code)
	cls := scope.Track(env.FindClass(class))
	if cls.IsNull() {
		return 0, fmt.Errorf("loading %s: %w", class, ErrPending)
	}
	sig := "(" + string(rune(n.code)) + ")L" + class + ";"
	valueOf := env.GetStaticMethodID(cls, "valueOf", sig)
	if valueOf == 0 {
		return 0, fmt.Errorf("%s.valueOf%s: %w", class, sig, ErrPending)
	}
	box := scope.Track(env.CallStaticMethod(cls, valueOf, jni.ReturnObject, []jni.Value{n.prim}).Ref())
	if env.ExceptionCheck() {
		return 0, fmt.Errorf("boxing %s: %w", class, ErrPending)
	}
	scope.Release(cls)
	return jni.Object(box), nil
}

func (n Native) materializeArray(env jni.Env, scope *jni.Scope) (jni.Value, error) {
	elem := n.Type.Elem()
	count := len(n.elems)

	if elem.IsPrimitive() {
		arr := scope.Track(env.NewPrimitiveArray(elem.Code(), count))
		if arr.IsNull() {
			return 0, fmt.Errorf("allocating %s: %w", n.Type, ErrPending)
		}
		values := make([]jni.Value, count)
		for i, e := range n.elems {
			values[i] = e.prim
		}
		env.SetPrimitiveArrayRegion(arr, elem.Code(), 0, values)
		if env.ExceptionCheck() {
			return 0, fmt.Errorf("filling %s: %w", n.Type, ErrPending)
		}
		log.Debugf("materialized %s of length %d", n.Type, count)
		return jni.Object(arr), nil
	}

	className := elem.ClassName()
	if elem.IsArray() {
		className = elem.String()
	}
	cls := scope.Track(env.FindClass(className))
	if cls.IsNull() {
		return 0, fmt.Errorf("loading %s: %w", className, ErrPending)
	}
	arr := scope.Track(env.NewObjectArray(count, cls, 0))
	if arr.IsNull() {
		return 0, fmt.Errorf("allocating %s: %w", n.Type, ErrPending)
	}
	scope.Release(cls)

	for i, e := range n.elems {
		// Each element gets its own scope so a long array does not pile up
		// local references.
		inner := jni.NewScope(env)
		v, err := e.Materialize(env, inner)
		if err != nil {
			inner.Close()
			return 0, fmt.Errorf("element %d: %w", i, err)
		}
		env.SetObjectArrayElement(arr, i, v.Ref())
		inner.Close()
		if env.ExceptionCheck() {
			return 0, fmt.Errorf("storing element %d: %w", i, ErrPending)
		}
	}
	log.Debugf("materialized %s of length %d", n.Type, count)
	return jni.Object(arr), nil
}
