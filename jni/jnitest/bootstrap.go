package jnitest

import (
	"fmt"
	"unicode/utf16"

	"github.com/chazu/jbridge/jni"
)

var boxes = []struct {
	class, code, unbox string
}{
	{"java/lang/Boolean", "Z", "booleanValue"},
	{"java/lang/Byte", "B", "byteValue"},
	{"java/lang/Character", "C", "charValue"},
	{"java/lang/Short", "S", "shortValue"},
	{"java/lang/Integer", "I", "intValue"},
	{"java/lang/Long", "J", "longValue"},
	{"java/lang/Float", "F", "floatValue"},
	{"java/lang/Double", "D", "doubleValue"},
}

func (vm *VM) bootstrap() {
	object := vm.DefineClass("java/lang/Object", "")
	vm.DefineInterface("java/io/Serializable")
	vm.DefineInterface("java/lang/Cloneable")
	vm.DefineInterface("java/lang/CharSequence")
	vm.DefineInterface("java/lang/Comparable")

	class := vm.DefineClass("java/lang/Class", "", "java/io/Serializable")
	str := vm.DefineClass("java/lang/String", "", "java/io/Serializable", "java/lang/CharSequence", "java/lang/Comparable")
	number := vm.DefineClass("java/lang/Number", "", "java/io/Serializable")

	object.Method("toString", "()Ljava/lang/String;", func(vm *VM, this *Object, _ []jni.Value) jni.Value {
		return jni.Object(vm.Local(vm.String(fmt.Sprintf("%s@%p", this.Class.DottedName(), this))))
	})
	class.Method("getName", "()Ljava/lang/String;", func(vm *VM, this *Object, _ []jni.Value) jni.Value {
		return jni.Object(vm.Local(vm.String(this.Of.DottedName())))
	})
	str.Method("toString", "()Ljava/lang/String;", func(vm *VM, this *Object, _ []jni.Value) jni.Value {
		return jni.Object(vm.Local(this))
	})
	str.Method("length", "()I", func(vm *VM, this *Object, _ []jni.Value) jni.Value {
		return jni.Int(int32(len(utf16.Encode([]rune(this.Text)))))
	})

	for _, b := range boxes {
		super := number
		if b.code == "Z" || b.code == "C" {
			super = object
		}
		box := vm.DefineClass(b.class, super.Name, "java/io/Serializable", "java/lang/Comparable")
		name := b.class
		box.Static("valueOf", "("+b.code+")L"+name+";", func(vm *VM, _ *Object, args []jni.Value) jni.Value {
			return jni.Object(vm.Local(vm.Box(name, args[0])))
		})
		box.Method(b.unbox, "()"+b.code, func(vm *VM, this *Object, _ []jni.Value) jni.Value {
			return this.Prim
		})
	}

	throwable := vm.DefineClass("java/lang/Throwable", "", "java/io/Serializable")
	throwable.Method("getMessage", "()Ljava/lang/String;", func(vm *VM, this *Object, _ []jni.Value) jni.Value {
		if this.Message == nil {
			return 0
		}
		return jni.Object(vm.Local(vm.String(*this.Message)))
	})
	throwable.Method("toString", "()Ljava/lang/String;", func(vm *VM, this *Object, _ []jni.Value) jni.Value {
		s := this.Class.DottedName()
		if this.Message != nil {
			s += ": " + *this.Message
		}
		return jni.Object(vm.Local(vm.String(s)))
	})
	throwable.Method("getCause", "()Ljava/lang/Throwable;", func(vm *VM, this *Object, _ []jni.Value) jni.Value {
		return jni.Object(vm.Local(this.Cause))
	})
	throwable.Method("getStackTrace", "()[Ljava/lang/StackTraceElement;", func(vm *VM, this *Object, _ []jni.Value) jni.Value {
		arr := &Object{Class: vm.MustClass("[Ljava/lang/StackTraceElement;")}
		for _, f := range this.Frames {
			arr.Elems = append(arr.Elems, &Object{Class: vm.MustClass("java/lang/StackTraceElement"), Text: f})
		}
		return jni.Object(vm.Local(arr))
	})
	vm.DefineClass("java/lang/StackTraceElement", "", "java/io/Serializable").
		Method("toString", "()Ljava/lang/String;", func(vm *VM, this *Object, _ []jni.Value) jni.Value {
			return jni.Object(vm.Local(vm.String(this.Text)))
		})

	for _, e := range [][2]string{
		{"java/lang/Exception", "java/lang/Throwable"},
		{"java/lang/Error", "java/lang/Throwable"},
		{"java/lang/RuntimeException", "java/lang/Exception"},
		{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
		{"java/lang/IllegalStateException", "java/lang/RuntimeException"},
		{"java/lang/NullPointerException", "java/lang/RuntimeException"},
		{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
		{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
		{"java/lang/LinkageError", "java/lang/Error"},
		{"java/lang/NoClassDefFoundError", "java/lang/LinkageError"},
		{"java/lang/IncompatibleClassChangeError", "java/lang/LinkageError"},
		{"java/lang/NoSuchMethodError", "java/lang/IncompatibleClassChangeError"},
	} {
		vm.DefineClass(e[0], e[1])
	}
}
