// Package jnitest provides an in-memory JVM that implements jni.Env.
//
// It models just enough of the Java object model for the bridge: a class
// graph with interfaces and arrays, strings, boxed primitives, throwables
// with causes and stack frames, and instance/static methods written in Go.
// Every local reference handed out is counted, and misuse (double release,
// use of a released reference, calling into the VM while an exception is
// pending) is recorded as a violation instead of crashing.
//
// A VM is not safe for concurrent use, exactly like a JNIEnv.
package jnitest

import (
	"fmt"
	"strings"

	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/jni"
)

// Impl is the Go body of a Java method. Static methods receive a nil this.
// To throw, call vm.Throw and return the zero Value.
type Impl func(vm *VM, this *Object, args []jni.Value) jni.Value

// Class is a loaded class, interface or array class.
type Class struct {
	Name       string // internal name, or descriptor text for arrays
	Super      *Class
	Interfaces []*Class
	Interface  bool

	vm      *VM
	mirror  *Object // the java.lang.Class instance
	elem    *Class  // component class for reference arrays
	prim    descriptor.Code
	methods map[string]jni.MethodID
	statics map[string]jni.MethodID
}

// Object is a heap object.
type Object struct {
	Class *Class

	Text    string      // java.lang.String contents
	Of      *Class      // java.lang.Class target
	Prim    jni.Value   // boxed primitive
	Values  []jni.Value // primitive array elements
	Elems   []*Object   // reference array elements
	Message *string     // Throwable message; nil is null
	Cause   *Object     // Throwable cause
	Frames  []string    // Throwable stack frames, rendered
	Fields  map[string]any
}

type methodEntry struct {
	class  *Class
	name   string
	sig    string
	static bool
	impl   Impl
}

type refEntry struct {
	obj    *Object
	global bool
}

// VM is the fake virtual machine.
type VM struct {
	classes map[string]*Class
	methods []*methodEntry // index is MethodID-1

	refs    map[jni.Ref]refEntry
	nextRef jni.Ref
	dead    map[jni.Ref]bool

	pending *Object

	failCalls   map[string]int
	failClasses map[string]bool

	acquired   int
	released   int
	globals    int
	violations []string
}

var _ jni.Env = (*VM)(nil)

// New returns a VM with the java.lang core classes loaded.
func New() *VM {
	vm := &VM{
		classes:     make(map[string]*Class),
		refs:        make(map[jni.Ref]refEntry),
		dead:        make(map[jni.Ref]bool),
		nextRef:     0x1000,
		failCalls:   make(map[string]int),
		failClasses: make(map[string]bool),
	}
	vm.bootstrap()
	return vm
}

// ---------------------------------------------------------------------------
// Accounting
// ---------------------------------------------------------------------------

// Acquired returns the number of local references handed out.
func (vm *VM) Acquired() int { return vm.acquired }

// Released returns the number of local references deleted.
func (vm *VM) Released() int { return vm.released }

// Live returns the number of local references not yet deleted.
func (vm *VM) Live() int { return vm.acquired - vm.released }

// Globals returns the number of live global references.
func (vm *VM) Globals() int { return vm.globals }

// Violations lists every JNI rule the caller broke.
func (vm *VM) Violations() []string { return vm.violations }

// Pending returns the pending throwable, if any, without clearing it.
func (vm *VM) Pending() *Object { return vm.pending }

func (vm *VM) violate(format string, args ...any) {
	vm.violations = append(vm.violations, fmt.Sprintf(format, args...))
}

// guard records a violation when op is called with an exception pending.
func (vm *VM) guard(op string) {
	if vm.pending != nil {
		vm.violate("%s called with pending %s", op, vm.pending.Class.Name)
	}
}

// ---------------------------------------------------------------------------
// Failure injection
// ---------------------------------------------------------------------------

// FailCall makes the next n invocations of any method called name throw a
// java.lang.RuntimeException instead of running.
func (vm *VM) FailCall(name string, n int) {
	vm.failCalls[name] += n
}

// FailFindClass makes FindClass(name) throw NoClassDefFoundError.
func (vm *VM) FailFindClass(name string) {
	vm.failClasses[name] = true
}

// ---------------------------------------------------------------------------
// Heap helpers for tests and method bodies
// ---------------------------------------------------------------------------

// Local returns a new local reference to o (null for nil).
func (vm *VM) Local(o *Object) jni.Ref {
	if o == nil {
		return 0
	}
	vm.nextRef++
	r := vm.nextRef
	vm.refs[r] = refEntry{obj: o}
	vm.acquired++
	return r
}

// Deref returns the object behind r, recording a violation for released or
// unknown references.
func (vm *VM) Deref(r jni.Ref) *Object {
	if r.IsNull() {
		return nil
	}
	e, ok := vm.refs[r]
	if !ok {
		if vm.dead[r] {
			vm.violate("use of released reference %#x", r)
		} else {
			vm.violate("use of unknown reference %#x", r)
		}
		return nil
	}
	return e.obj
}

// Class returns a loaded class, or nil.
func (vm *VM) Class(name string) *Class {
	if c, ok := vm.classes[name]; ok {
		return c
	}
	if strings.HasPrefix(name, "[") {
		return vm.arrayClass(name)
	}
	return nil
}

// MustClass is Class but panics when name is not loaded.
func (vm *VM) MustClass(name string) *Class {
	c := vm.Class(name)
	if c == nil {
		panic("jnitest: no class " + name)
	}
	return c
}

// DefineClass loads a class with the given superclass and interfaces. An
// empty super means java/lang/Object.
func (vm *VM) DefineClass(name, super string, interfaces ...string) *Class {
	c := &Class{
		Name:    name,
		vm:      vm,
		methods: make(map[string]jni.MethodID),
		statics: make(map[string]jni.MethodID),
	}
	if super == "" && name != "java/lang/Object" {
		super = "java/lang/Object"
	}
	if super != "" {
		c.Super = vm.MustClass(super)
	}
	for _, i := range interfaces {
		c.Interfaces = append(c.Interfaces, vm.MustClass(i))
	}
	vm.classes[name] = c
	return c
}

// DefineInterface loads an interface.
func (vm *VM) DefineInterface(name string, supers ...string) *Class {
	c := vm.DefineClass(name, "java/lang/Object", supers...)
	c.Interface = true
	c.Super = nil
	return c
}

// Method adds or replaces an instance method.
func (c *Class) Method(name, sig string, impl Impl) *Class {
	c.methods[name+sig] = c.vm.addMethod(&methodEntry{class: c, name: name, sig: sig, impl: impl})
	return c
}

// Static adds or replaces a static method.
func (c *Class) Static(name, sig string, impl Impl) *Class {
	c.statics[name+sig] = c.vm.addMethod(&methodEntry{class: c, name: name, sig: sig, static: true, impl: impl})
	return c
}

func (vm *VM) addMethod(m *methodEntry) jni.MethodID {
	vm.methods = append(vm.methods, m)
	return jni.MethodID(len(vm.methods))
}

// New allocates an instance of className.
func (vm *VM) New(className string) *Object {
	return &Object{Class: vm.MustClass(className), Fields: make(map[string]any)}
}

// String allocates a java.lang.String.
func (vm *VM) String(s string) *Object {
	return &Object{Class: vm.MustClass("java/lang/String"), Text: s}
}

// Box allocates a boxed primitive such as java/lang/Integer.
func (vm *VM) Box(className string, v jni.Value) *Object {
	return &Object{Class: vm.MustClass(className), Prim: v}
}

// Throwable allocates a throwable of className. An empty message is kept
// as a real (non-null) message; use NullMessage for a null one.
func (vm *VM) Throwable(className, message string, cause *Object, frames ...string) *Object {
	msg := message
	return &Object{Class: vm.MustClass(className), Message: &msg, Cause: cause, Frames: frames}
}

// NullMessage clears a throwable's message to null and returns it.
func NullMessage(t *Object) *Object {
	t.Message = nil
	return t
}

// Throw makes t the pending exception.
func (vm *VM) Throw(t *Object) {
	vm.pending = t
}

// ThrowNew throws a new throwable of className with message.
func (vm *VM) ThrowNew(className, message string) {
	vm.Throw(vm.Throwable(className, message, nil))
}

// ---------------------------------------------------------------------------
// Class graph
// ---------------------------------------------------------------------------

// DottedName returns the name Class.getName would report.
func (c *Class) DottedName() string {
	return strings.ReplaceAll(c.Name, "/", ".")
}

// IsSubclassOf reports whether an instance of c can be assigned to target.
func (c *Class) IsSubclassOf(target *Class) bool {
	if c == target {
		return true
	}
	if c.isArray() {
		if !target.isArray() {
			return target.Name == "java/lang/Object" ||
				target.Name == "java/lang/Cloneable" ||
				target.Name == "java/io/Serializable"
		}
		if c.prim != 0 || target.prim != 0 {
			return c.Name == target.Name
		}
		return c.elem.IsSubclassOf(target.elem)
	}
	if c.Super != nil && c.Super.IsSubclassOf(target) {
		return true
	}
	for _, i := range c.Interfaces {
		if i.IsSubclassOf(target) {
			return true
		}
	}
	return c.Interface && target.Name == "java/lang/Object"
}

func (c *Class) isArray() bool { return strings.HasPrefix(c.Name, "[") }

func (vm *VM) arrayClass(name string) *Class {
	if c, ok := vm.classes[name]; ok {
		return c
	}
	t, err := descriptor.ParseField(name)
	if err != nil || !t.IsArray() {
		return nil
	}
	c := &Class{
		Name:       name,
		vm:         vm,
		Super:      vm.classes["java/lang/Object"],
		Interfaces: []*Class{vm.classes["java/lang/Cloneable"], vm.classes["java/io/Serializable"]},
		methods:    make(map[string]jni.MethodID),
		statics:    make(map[string]jni.MethodID),
	}
	elem := t.Elem()
	switch {
	case elem.IsPrimitive():
		c.prim = elem.Code()
	case elem.IsArray():
		c.elem = vm.arrayClass(elem.String())
	default:
		c.elem = vm.Class(elem.ClassName())
		if c.elem == nil {
			return nil
		}
	}
	vm.classes[name] = c
	return c
}

func (vm *VM) mirrorOf(c *Class) *Object {
	if c.mirror == nil {
		c.mirror = &Object{Class: vm.classes["java/lang/Class"], Of: c}
	}
	return c.mirror
}

func (vm *VM) lookup(c *Class, key string, static bool) jni.MethodID {
	for k := c; k != nil; k = k.Super {
		table := k.methods
		if static {
			table = k.statics
		}
		if id, ok := table[key]; ok {
			return id
		}
		if !static {
			for _, i := range k.Interfaces {
				if id := vm.lookup(i, key, false); id != 0 {
					return id
				}
			}
		}
	}
	if !static && c.Interface {
		return vm.lookup(vm.classes["java/lang/Object"], key, false)
	}
	return 0
}

// ---------------------------------------------------------------------------
// jni.Env: classes
// ---------------------------------------------------------------------------

func (vm *VM) FindClass(name string) jni.Ref {
	vm.guard("FindClass")
	c := vm.Class(name)
	if c == nil || vm.failClasses[name] {
		vm.ThrowNew("java/lang/NoClassDefFoundError", name)
		return 0
	}
	return vm.Local(vm.mirrorOf(c))
}

func (vm *VM) classOf(r jni.Ref) *Class {
	o := vm.Deref(r)
	if o == nil || o.Of == nil {
		return nil
	}
	return o.Of
}

func (vm *VM) GetObjectClass(obj jni.Ref) jni.Ref {
	vm.guard("GetObjectClass")
	o := vm.Deref(obj)
	if o == nil {
		vm.violate("GetObjectClass on null")
		return 0
	}
	return vm.Local(vm.mirrorOf(o.Class))
}

func (vm *VM) GetSuperclass(class jni.Ref) jni.Ref {
	c := vm.classOf(class)
	if c == nil || c.Super == nil || c.Interface {
		return 0
	}
	return vm.Local(vm.mirrorOf(c.Super))
}

func (vm *VM) IsAssignableFrom(sub, sup jni.Ref) bool {
	vm.guard("IsAssignableFrom")
	a, b := vm.classOf(sub), vm.classOf(sup)
	if a == nil || b == nil {
		vm.violate("IsAssignableFrom on non-class reference")
		return false
	}
	return a.IsSubclassOf(b)
}

func (vm *VM) IsInstanceOf(obj, class jni.Ref) bool {
	c := vm.classOf(class)
	o := vm.Deref(obj)
	if o == nil {
		return true
	}
	return c != nil && o.Class.IsSubclassOf(c)
}

func (vm *VM) IsSameObject(a, b jni.Ref) bool {
	return vm.Deref(a) == vm.Deref(b)
}

// ---------------------------------------------------------------------------
// jni.Env: methods
// ---------------------------------------------------------------------------

func (vm *VM) GetMethodID(class jni.Ref, name, sig string) jni.MethodID {
	vm.guard("GetMethodID")
	c := vm.classOf(class)
	if c == nil {
		vm.violate("GetMethodID on non-class reference")
		return 0
	}
	if id := vm.lookup(c, name+sig, false); id != 0 {
		return id
	}
	vm.ThrowNew("java/lang/NoSuchMethodError", c.DottedName()+"."+name+sig)
	return 0
}

func (vm *VM) GetStaticMethodID(class jni.Ref, name, sig string) jni.MethodID {
	vm.guard("GetStaticMethodID")
	c := vm.classOf(class)
	if c == nil {
		vm.violate("GetStaticMethodID on non-class reference")
		return 0
	}
	if id := vm.lookup(c, name+sig, true); id != 0 {
		return id
	}
	vm.ThrowNew("java/lang/NoSuchMethodError", c.DottedName()+"."+name+sig)
	return 0
}

func (vm *VM) invoke(op string, this *Object, m jni.MethodID, args []jni.Value) jni.Value {
	vm.guard(op)
	if m == 0 || int(m) > len(vm.methods) {
		vm.violate("%s with invalid method ID %d", op, m)
		return 0
	}
	entry := vm.methods[m-1]
	if this != nil && !entry.static {
		// Virtual dispatch on the receiver's class.
		if id := vm.lookup(this.Class, entry.name+entry.sig, false); id != 0 {
			entry = vm.methods[id-1]
		}
	}
	if n := vm.failCalls[entry.name]; n > 0 {
		vm.failCalls[entry.name] = n - 1
		vm.ThrowNew("java/lang/RuntimeException", "induced failure in "+entry.name)
		return 0
	}
	return entry.impl(vm, this, args)
}

func (vm *VM) CallMethod(obj jni.Ref, m jni.MethodID, ret jni.ReturnType, args []jni.Value) jni.Value {
	this := vm.Deref(obj)
	if this == nil {
		vm.ThrowNew("java/lang/NullPointerException", "")
		return 0
	}
	return vm.invoke("CallMethod", this, m, args)
}

func (vm *VM) CallStaticMethod(class jni.Ref, m jni.MethodID, ret jni.ReturnType, args []jni.Value) jni.Value {
	return vm.invoke("CallStaticMethod", nil, m, args)
}

func (vm *VM) NewObject(class jni.Ref, ctor jni.MethodID, args []jni.Value) jni.Ref {
	c := vm.classOf(class)
	if c == nil {
		vm.violate("NewObject on non-class reference")
		return 0
	}
	o := vm.New(c.Name)
	vm.invoke("NewObject", o, ctor, args)
	if vm.pending != nil {
		return 0
	}
	return vm.Local(o)
}

// ---------------------------------------------------------------------------
// jni.Env: exceptions
// ---------------------------------------------------------------------------

func (vm *VM) ExceptionCheck() bool { return vm.pending != nil }

func (vm *VM) ExceptionOccurred() jni.Ref { return vm.Local(vm.pending) }

func (vm *VM) ExceptionClear() { vm.pending = nil }

// ---------------------------------------------------------------------------
// jni.Env: strings
// ---------------------------------------------------------------------------

func (vm *VM) NewStringUTF(s string) jni.Ref {
	vm.guard("NewStringUTF")
	return vm.Local(vm.String(s))
}

func (vm *VM) GetStringUTF(str jni.Ref) string {
	vm.guard("GetStringUTF")
	o := vm.Deref(str)
	if o == nil {
		return ""
	}
	return o.Text
}

// ---------------------------------------------------------------------------
// jni.Env: arrays
// ---------------------------------------------------------------------------

func (vm *VM) GetArrayLength(arr jni.Ref) int {
	vm.guard("GetArrayLength")
	o := vm.Deref(arr)
	if o == nil {
		return 0
	}
	if o.Class.prim != 0 {
		return len(o.Values)
	}
	return len(o.Elems)
}

func (vm *VM) NewObjectArray(length int, elemClass jni.Ref, init jni.Ref) jni.Ref {
	vm.guard("NewObjectArray")
	c := vm.classOf(elemClass)
	if c == nil {
		vm.violate("NewObjectArray on non-class reference")
		return 0
	}
	var name string
	if c.isArray() {
		name = "[" + c.Name
	} else {
		name = "[L" + c.Name + ";"
	}
	arr := &Object{Class: vm.arrayClass(name), Elems: make([]*Object, length)}
	fill := vm.Deref(init)
	for i := range arr.Elems {
		arr.Elems[i] = fill
	}
	return vm.Local(arr)
}

func (vm *VM) GetObjectArrayElement(arr jni.Ref, index int) jni.Ref {
	vm.guard("GetObjectArrayElement")
	o := vm.Deref(arr)
	if o == nil || index < 0 || index >= len(o.Elems) {
		vm.ThrowNew("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprint(index))
		return 0
	}
	return vm.Local(o.Elems[index])
}

func (vm *VM) SetObjectArrayElement(arr jni.Ref, index int, value jni.Ref) {
	vm.guard("SetObjectArrayElement")
	o := vm.Deref(arr)
	if o == nil || index < 0 || index >= len(o.Elems) {
		vm.ThrowNew("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprint(index))
		return
	}
	o.Elems[index] = vm.Deref(value)
}

func (vm *VM) NewPrimitiveArray(elem descriptor.Code, length int) jni.Ref {
	vm.guard("NewPrimitiveArray")
	c := vm.arrayClass("[" + string(rune(elem)))
	return vm.Local(&Object{Class: c, Values: make([]jni.Value, length)})
}

func (vm *VM) GetPrimitiveArrayRegion(arr jni.Ref, elem descriptor.Code, start int, out []jni.Value) {
	vm.guard("GetPrimitiveArrayRegion")
	o := vm.Deref(arr)
	if o == nil || start < 0 || start+len(out) > len(o.Values) {
		vm.ThrowNew("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprint(start))
		return
	}
	copy(out, o.Values[start:])
}

func (vm *VM) SetPrimitiveArrayRegion(arr jni.Ref, elem descriptor.Code, start int, values []jni.Value) {
	vm.guard("SetPrimitiveArrayRegion")
	o := vm.Deref(arr)
	if o == nil || start < 0 || start+len(values) > len(o.Values) {
		vm.ThrowNew("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprint(start))
		return
	}
	copy(o.Values[start:], values)
}

// ---------------------------------------------------------------------------
// jni.Env: references
// ---------------------------------------------------------------------------

func (vm *VM) NewGlobalRef(r jni.Ref) jni.Ref {
	o := vm.Deref(r)
	if o == nil {
		return 0
	}
	vm.nextRef++
	g := vm.nextRef
	vm.refs[g] = refEntry{obj: o, global: true}
	vm.globals++
	return g
}

func (vm *VM) DeleteGlobalRef(r jni.Ref) {
	if r.IsNull() {
		return
	}
	e, ok := vm.refs[r]
	if !ok || !e.global {
		vm.violate("DeleteGlobalRef on %#x which is not a live global", r)
		return
	}
	delete(vm.refs, r)
	vm.dead[r] = true
	vm.globals--
}

func (vm *VM) DeleteLocalRef(r jni.Ref) {
	if r.IsNull() {
		return
	}
	e, ok := vm.refs[r]
	if !ok || e.global {
		if vm.dead[r] {
			vm.violate("double release of %#x", r)
		} else {
			vm.violate("DeleteLocalRef on %#x which is not a live local", r)
		}
		return
	}
	delete(vm.refs, r)
	vm.dead[r] = true
	vm.released++
}
