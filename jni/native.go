//go:build darwin || linux

package jni

import (
	"encoding/binary"
	"math"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/chazu/jbridge/descriptor"
)

// Slots in the JNINativeInterface_ function table.
const (
	slotFindClass               = 6
	slotGetSuperclass           = 10
	slotIsAssignableFrom        = 11
	slotExceptionOccurred       = 15
	slotExceptionClear          = 17
	slotNewGlobalRef            = 21
	slotDeleteGlobalRef         = 22
	slotDeleteLocalRef          = 23
	slotIsSameObject            = 24
	slotNewObjectA              = 30
	slotGetObjectClass          = 31
	slotIsInstanceOf            = 32
	slotGetMethodID             = 33
	slotCallObjectMethodA       = 36
	slotGetStaticMethodID       = 113
	slotCallStaticObjectMethodA = 116
	slotNewStringUTF            = 167
	slotGetStringUTFLength      = 168
	slotGetStringUTFChars       = 169
	slotReleaseStringUTFChars   = 170
	slotGetArrayLength          = 171
	slotNewObjectArray          = 172
	slotGetObjectArrayElement   = 173
	slotSetObjectArrayElement   = 174
	slotNewBooleanArray         = 175
	slotGetBooleanArrayRegion   = 199
	slotSetBooleanArrayRegion   = 207
	slotExceptionCheck          = 228

	functionTableSize = 233
)

// callOrder is the order of the Call<Type>Method families in the table.
// Each family occupies three slots (varargs, va_list, jvalue array).
var callOrder = map[ReturnType]int{
	ReturnObject:  0,
	ReturnBoolean: 1,
	ReturnByte:    2,
	ReturnChar:    3,
	ReturnShort:   4,
	ReturnInt:     5,
	ReturnLong:    6,
	ReturnFloat:   7,
	ReturnDouble:  8,
	ReturnVoid:    9,
}

// primitiveOrder is the order of the per-primitive array function groups.
var primitiveOrder = map[descriptor.Code]int{
	descriptor.Boolean: 0,
	descriptor.Byte:    1,
	descriptor.Char:    2,
	descriptor.Short:   3,
	descriptor.Int:     4,
	descriptor.Long:    5,
	descriptor.Float:   6,
	descriptor.Double:  7,
}

var elemSize = map[descriptor.Code]int{
	descriptor.Boolean: 1,
	descriptor.Byte:    1,
	descriptor.Char:    2,
	descriptor.Short:   2,
	descriptor.Int:     4,
	descriptor.Long:    8,
	descriptor.Float:   4,
	descriptor.Double:  8,
}

// NativeEnv implements Env by calling through a JNIEnv function table.
// Floating-point returns cannot travel through purego.SyscallN, so the
// float and double call families are bound with purego.RegisterFunc on
// first use.
type NativeEnv struct {
	env uintptr
	fns *[functionTableSize]uintptr

	floatOnce        sync.Once
	callFloat        func(env, obj, mid, args uintptr) float32
	callDouble       func(env, obj, mid, args uintptr) float64
	callStaticFloat  func(env, class, mid, args uintptr) float32
	callStaticDouble func(env, class, mid, args uintptr) float64
}

var _ Env = (*NativeEnv)(nil)

// FromPointer wraps a JNIEnv* obtained from the JVM for the current thread.
func FromPointer(env uintptr) *NativeEnv {
	table := *(*uintptr)(unsafe.Pointer(env))
	return &NativeEnv{
		env: env,
		fns: (*[functionTableSize]uintptr)(unsafe.Pointer(table)),
	}
}

// Pointer returns the wrapped JNIEnv*.
func (e *NativeEnv) Pointer() uintptr { return e.env }

func (e *NativeEnv) call(slot int, args ...uintptr) uintptr {
	full := make([]uintptr, 0, len(args)+1)
	full = append(full, e.env)
	full = append(full, args...)
	r1, _, _ := purego.SyscallN(e.fns[slot], full...)
	return r1
}

func (e *NativeEnv) loadFloatCalls() {
	e.floatOnce.Do(func() {
		purego.RegisterFunc(&e.callFloat, e.fns[slotCallObjectMethodA+3*callOrder[ReturnFloat]])
		purego.RegisterFunc(&e.callDouble, e.fns[slotCallObjectMethodA+3*callOrder[ReturnDouble]])
		purego.RegisterFunc(&e.callStaticFloat, e.fns[slotCallStaticObjectMethodA+3*callOrder[ReturnFloat]])
		purego.RegisterFunc(&e.callStaticDouble, e.fns[slotCallStaticObjectMethodA+3*callOrder[ReturnDouble]])
	})
}

func cstring(pin *runtime.Pinner, s string) uintptr {
	b := EncodeModifiedUTF8(s)
	pin.Pin(&b[0])
	return uintptr(unsafe.Pointer(&b[0]))
}

func valuesPtr(pin *runtime.Pinner, args []Value) uintptr {
	if len(args) == 0 {
		return 0
	}
	pin.Pin(&args[0])
	return uintptr(unsafe.Pointer(&args[0]))
}

func jbool(r uintptr) bool { return uint8(r) != 0 }

// narrow truncates a raw integer return register to the declared width.
func narrow(ret ReturnType, r uintptr) Value {
	switch ret {
	case ReturnVoid:
		return 0
	case ReturnBoolean:
		return Boolean(jbool(r))
	case ReturnByte:
		return Byte(int8(r))
	case ReturnChar:
		return Char(uint16(r))
	case ReturnShort:
		return Short(int16(r))
	case ReturnInt:
		return Int(int32(r))
	}
	return Value(r)
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

func (e *NativeEnv) FindClass(name string) Ref {
	var pin runtime.Pinner
	defer pin.Unpin()
	return Ref(e.call(slotFindClass, cstring(&pin, name)))
}

func (e *NativeEnv) GetObjectClass(obj Ref) Ref {
	return Ref(e.call(slotGetObjectClass, uintptr(obj)))
}

func (e *NativeEnv) GetSuperclass(class Ref) Ref {
	return Ref(e.call(slotGetSuperclass, uintptr(class)))
}

func (e *NativeEnv) IsAssignableFrom(sub, sup Ref) bool {
	return jbool(e.call(slotIsAssignableFrom, uintptr(sub), uintptr(sup)))
}

func (e *NativeEnv) IsInstanceOf(obj, class Ref) bool {
	return jbool(e.call(slotIsInstanceOf, uintptr(obj), uintptr(class)))
}

func (e *NativeEnv) IsSameObject(a, b Ref) bool {
	return jbool(e.call(slotIsSameObject, uintptr(a), uintptr(b)))
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

func (e *NativeEnv) GetMethodID(class Ref, name, sig string) MethodID {
	var pin runtime.Pinner
	defer pin.Unpin()
	return MethodID(e.call(slotGetMethodID, uintptr(class), cstring(&pin, name), cstring(&pin, sig)))
}

func (e *NativeEnv) GetStaticMethodID(class Ref, name, sig string) MethodID {
	var pin runtime.Pinner
	defer pin.Unpin()
	return MethodID(e.call(slotGetStaticMethodID, uintptr(class), cstring(&pin, name), cstring(&pin, sig)))
}

func (e *NativeEnv) CallMethod(obj Ref, m MethodID, ret ReturnType, args []Value) Value {
	var pin runtime.Pinner
	defer pin.Unpin()
	argp := valuesPtr(&pin, args)

	switch ret {
	case ReturnFloat:
		e.loadFloatCalls()
		return Float(e.callFloat(e.env, uintptr(obj), uintptr(m), argp))
	case ReturnDouble:
		e.loadFloatCalls()
		return Double(e.callDouble(e.env, uintptr(obj), uintptr(m), argp))
	}
	slot := slotCallObjectMethodA + 3*callOrder[ret]
	return narrow(ret, e.call(slot, uintptr(obj), uintptr(m), argp))
}

func (e *NativeEnv) CallStaticMethod(class Ref, m MethodID, ret ReturnType, args []Value) Value {
	var pin runtime.Pinner
	defer pin.Unpin()
	argp := valuesPtr(&pin, args)

	switch ret {
	case ReturnFloat:
		e.loadFloatCalls()
		return Float(e.callStaticFloat(e.env, uintptr(class), uintptr(m), argp))
	case ReturnDouble:
		e.loadFloatCalls()
		return Double(e.callStaticDouble(e.env, uintptr(class), uintptr(m), argp))
	}
	slot := slotCallStaticObjectMethodA + 3*callOrder[ret]
	return narrow(ret, e.call(slot, uintptr(class), uintptr(m), argp))
}

func (e *NativeEnv) NewObject(class Ref, ctor MethodID, args []Value) Ref {
	var pin runtime.Pinner
	defer pin.Unpin()
	return Ref(e.call(slotNewObjectA, uintptr(class), uintptr(ctor), valuesPtr(&pin, args)))
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

func (e *NativeEnv) ExceptionCheck() bool {
	return jbool(e.call(slotExceptionCheck))
}

func (e *NativeEnv) ExceptionOccurred() Ref {
	return Ref(e.call(slotExceptionOccurred))
}

func (e *NativeEnv) ExceptionClear() {
	e.call(slotExceptionClear)
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

func (e *NativeEnv) NewStringUTF(s string) Ref {
	var pin runtime.Pinner
	defer pin.Unpin()
	return Ref(e.call(slotNewStringUTF, cstring(&pin, s)))
}

func (e *NativeEnv) GetStringUTF(str Ref) string {
	if str.IsNull() {
		return ""
	}
	n := int(int32(e.call(slotGetStringUTFLength, uintptr(str))))
	chars := e.call(slotGetStringUTFChars, uintptr(str), 0)
	if chars == 0 {
		return ""
	}
	defer e.call(slotReleaseStringUTFChars, uintptr(str), chars)
	return DecodeModifiedUTF8(unsafe.Slice((*byte)(unsafe.Pointer(chars)), n))
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

func (e *NativeEnv) GetArrayLength(arr Ref) int {
	return int(int32(e.call(slotGetArrayLength, uintptr(arr))))
}

func (e *NativeEnv) NewObjectArray(length int, elemClass Ref, init Ref) Ref {
	return Ref(e.call(slotNewObjectArray, uintptr(length), uintptr(elemClass), uintptr(init)))
}

func (e *NativeEnv) GetObjectArrayElement(arr Ref, index int) Ref {
	return Ref(e.call(slotGetObjectArrayElement, uintptr(arr), uintptr(index)))
}

func (e *NativeEnv) SetObjectArrayElement(arr Ref, index int, value Ref) {
	e.call(slotSetObjectArrayElement, uintptr(arr), uintptr(index), uintptr(value))
}

func (e *NativeEnv) NewPrimitiveArray(elem descriptor.Code, length int) Ref {
	return Ref(e.call(slotNewBooleanArray+primitiveOrder[elem], uintptr(length)))
}

func (e *NativeEnv) GetPrimitiveArrayRegion(arr Ref, elem descriptor.Code, start int, out []Value) {
	if len(out) == 0 {
		return
	}
	size := elemSize[elem]
	buf := make([]byte, size*len(out))
	var pin runtime.Pinner
	pin.Pin(&buf[0])
	defer pin.Unpin()

	e.call(slotGetBooleanArrayRegion+primitiveOrder[elem],
		uintptr(arr), uintptr(start), uintptr(len(out)), uintptr(unsafe.Pointer(&buf[0])))
	for i := range out {
		out[i] = decodeElem(elem, buf[i*size:])
	}
}

func (e *NativeEnv) SetPrimitiveArrayRegion(arr Ref, elem descriptor.Code, start int, values []Value) {
	if len(values) == 0 {
		return
	}
	size := elemSize[elem]
	buf := make([]byte, size*len(values))
	for i, v := range values {
		encodeElem(elem, buf[i*size:], v)
	}
	var pin runtime.Pinner
	pin.Pin(&buf[0])
	defer pin.Unpin()

	e.call(slotSetBooleanArrayRegion+primitiveOrder[elem],
		uintptr(arr), uintptr(start), uintptr(len(values)), uintptr(unsafe.Pointer(&buf[0])))
}

func decodeElem(elem descriptor.Code, b []byte) Value {
	order := binary.NativeEndian
	switch elem {
	case descriptor.Boolean:
		return Boolean(b[0] != 0)
	case descriptor.Byte:
		return Byte(int8(b[0]))
	case descriptor.Char:
		return Char(order.Uint16(b))
	case descriptor.Short:
		return Short(int16(order.Uint16(b)))
	case descriptor.Int:
		return Int(int32(order.Uint32(b)))
	case descriptor.Long:
		return Long(int64(order.Uint64(b)))
	case descriptor.Float:
		return Float(math.Float32frombits(order.Uint32(b)))
	case descriptor.Double:
		return Double(math.Float64frombits(order.Uint64(b)))
	}
	return 0
}

func encodeElem(elem descriptor.Code, b []byte, v Value) {
	order := binary.NativeEndian
	switch elem {
	case descriptor.Boolean, descriptor.Byte:
		b[0] = uint8(v)
	case descriptor.Char, descriptor.Short:
		order.PutUint16(b, uint16(v))
	case descriptor.Int, descriptor.Float:
		order.PutUint32(b, uint32(v))
	case descriptor.Long, descriptor.Double:
		order.PutUint64(b, uint64(v))
	}
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

func (e *NativeEnv) NewGlobalRef(r Ref) Ref {
	return Ref(e.call(slotNewGlobalRef, uintptr(r)))
}

func (e *NativeEnv) DeleteGlobalRef(r Ref) {
	if !r.IsNull() {
		e.call(slotDeleteGlobalRef, uintptr(r))
	}
}

func (e *NativeEnv) DeleteLocalRef(r Ref) {
	if !r.IsNull() {
		e.call(slotDeleteLocalRef, uintptr(r))
	}
}
