// Package jni defines the native-call boundary between the bridge and a JVM.
//
// Env mirrors the subset of the JNI function table the bridge needs. It keeps
// JNI's conventions: methods that fail return a zero value and leave a Java
// exception pending, and every Ref returned to the caller is a new local
// reference the caller must release with DeleteLocalRef.
//
// NativeEnv implements Env over a real JNIEnv pointer using purego; the
// jnitest package provides an in-memory implementation for tests.
package jni

import (
	"math"

	"github.com/chazu/jbridge/descriptor"
)

// Ref is an opaque JNI object reference (jobject, jclass, jstring, jarray).
// The zero Ref is the Java null reference.
type Ref uintptr

// IsNull reports whether r is the null reference.
func (r Ref) IsNull() bool { return r == 0 }

// MethodID identifies a resolved method. The zero MethodID means lookup failed.
type MethodID uintptr

// Value holds the bits of a jvalue. Primitives occupy the low-order bytes,
// matching the jvalue union on little-endian platforms.
type Value uint64

func Boolean(b bool) Value {
	if b {
		return 1
	}
	return 0
}

func Byte(b int8) Value { return Value(uint8(b)) }
func Char(c uint16) Value { return Value(c) }
func Short(s int16) Value { return Value(uint16(s)) }
func Int(i int32) Value { return Value(uint32(i)) }
func Long(l int64) Value { return Value(uint64(l)) }
func Float(f float32) Value { return Value(math.Float32bits(f)) }
func Double(d float64) Value { return Value(math.Float64bits(d)) }
func Object(r Ref) Value { return Value(r) }

// Accessors reinterpret the bits; they do not convert between types.
func (v Value) Bool() bool { return uint8(v) != 0 }
func (v Value) Byte() int8 { return int8(uint8(v)) }
func (v Value) Char() uint16 { return uint16(v) }
func (v Value) Short() int16 { return int16(uint16(v)) }
func (v Value) Int() int32 { return int32(uint32(v)) }
func (v Value) Long() int64 { return int64(v) }
func (v Value) Float() float32 { return math.Float32frombits(uint32(v)) }
func (v Value) Double() float64 { return math.Float64frombits(uint64(v)) }
func (v Value) Ref() Ref { return Ref(v) }

// ReturnType selects the Call<Type>Method family used for an invocation.
type ReturnType byte

const (
	ReturnVoid    ReturnType = 'V'
	ReturnObject  ReturnType = 'L'
	ReturnBoolean ReturnType = ReturnType(descriptor.Boolean)
	ReturnByte    ReturnType = ReturnType(descriptor.Byte)
	ReturnChar    ReturnType = ReturnType(descriptor.Char)
	ReturnShort   ReturnType = ReturnType(descriptor.Short)
	ReturnInt     ReturnType = ReturnType(descriptor.Int)
	ReturnLong    ReturnType = ReturnType(descriptor.Long)
	ReturnFloat   ReturnType = ReturnType(descriptor.Float)
	ReturnDouble  ReturnType = ReturnType(descriptor.Double)
)

// ReturnOf maps a declared return type (nil for void) to its call family.
// Arrays and objects both use ReturnObject.
func ReturnOf(t *descriptor.Type) ReturnType {
	if t == nil {
		return ReturnVoid
	}
	if t.IsPrimitive() {
		return ReturnType(t.Code())
	}
	return ReturnObject
}

// Env is one thread's view of an attached JVM. Implementations are not safe
// for use from more than one goroutine; each goroutine must hold its own.
type Env interface {
	// Classes
	FindClass(name string) Ref
	GetObjectClass(obj Ref) Ref
	GetSuperclass(class Ref) Ref
	IsAssignableFrom(sub, sup Ref) bool
	IsInstanceOf(obj, class Ref) bool
	IsSameObject(a, b Ref) bool

	// Methods
	GetMethodID(class Ref, name, sig string) MethodID
	GetStaticMethodID(class Ref, name, sig string) MethodID
	CallMethod(obj Ref, m MethodID, ret ReturnType, args []Value) Value
	CallStaticMethod(class Ref, m MethodID, ret ReturnType, args []Value) Value
	NewObject(class Ref, ctor MethodID, args []Value) Ref

	// Exceptions
	ExceptionCheck() bool
	ExceptionOccurred() Ref
	ExceptionClear()

	// Strings
	NewStringUTF(s string) Ref
	GetStringUTF(str Ref) string

	// Arrays
	GetArrayLength(arr Ref) int
	NewObjectArray(length int, elemClass Ref, init Ref) Ref
	GetObjectArrayElement(arr Ref, index int) Ref
	SetObjectArrayElement(arr Ref, index int, value Ref)
	NewPrimitiveArray(elem descriptor.Code, length int) Ref
	GetPrimitiveArrayRegion(arr Ref, elem descriptor.Code, start int, out []Value)
	SetPrimitiveArrayRegion(arr Ref, elem descriptor.Code, start int, values []Value)

	// References
	NewGlobalRef(r Ref) Ref
	DeleteGlobalRef(r Ref)
	DeleteLocalRef(r Ref)
}

// CallObject invokes an object-returning instance method and returns the
// resulting local reference.
func CallObject(env Env, obj Ref, m MethodID, args ...Value) Ref {
	return env.CallMethod(obj, m, ReturnObject, args).Ref()
}
