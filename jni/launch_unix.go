//go:build darwin || linux

package jni

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// JavaVMOption and JavaVMInitArgs from jni.h.
type javaVMOption struct {
	optionString uintptr
	extraInfo    uintptr
}

type javaVMInitArgs struct {
	version            int32
	nOptions           int32
	options            uintptr
	ignoreUnrecognized uint8
}

// slotDestroyJavaVM is the DestroyJavaVM slot of JNIInvokeInterface_.
const slotDestroyJavaVM = 3

// Launch loads libjvm from library and creates a JVM with the given options
// (for example "-Djava.class.path=..."). The calling goroutine is locked to
// its OS thread until Destroy is called, since the returned Env is only valid
// on that thread.
func Launch(library string, options []string) (*VM, error) {
	runtime.LockOSThread()

	lib, err := purego.Dlopen(library, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("jni: dlopen %s: %w", library, err)
	}
	sym, err := purego.Dlsym(lib, "JNI_CreateJavaVM")
	if err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("jni: %s has no JNI_CreateJavaVM: %w", library, err)
	}
	var create func(pvm, penv *uintptr, args uintptr) int32
	purego.RegisterFunc(&create, sym)

	var pin runtime.Pinner
	defer pin.Unpin()

	opts := make([]javaVMOption, len(options))
	for i, o := range options {
		opts[i].optionString = cstring(&pin, o)
	}
	initArgs := &javaVMInitArgs{
		version:            Version1_8,
		nOptions:           int32(len(opts)),
		ignoreUnrecognized: 0,
	}
	if len(opts) > 0 {
		pin.Pin(&opts[0])
		initArgs.options = uintptr(unsafe.Pointer(&opts[0]))
	}
	pin.Pin(initArgs)

	var jvm, env uintptr
	if rc := create(&jvm, &env, uintptr(unsafe.Pointer(initArgs))); rc != 0 {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("jni: JNI_CreateJavaVM failed with code %d", rc)
	}
	log.Infof("created JVM from %s with %d options", library, len(options))

	return &VM{
		library: library,
		lib:     lib,
		jvm:     jvm,
		env:     FromPointer(env),
	}, nil
}

// Destroy unloads the JVM and releases the thread lock taken by Launch.
func (vm *VM) Destroy() error {
	defer runtime.UnlockOSThread()
	table := *(*uintptr)(unsafe.Pointer(vm.jvm))
	fns := (*[8]uintptr)(unsafe.Pointer(table))
	rc, _, _ := purego.SyscallN(fns[slotDestroyJavaVM], vm.jvm)
	if int32(rc) != 0 {
		return fmt.Errorf("jni: DestroyJavaVM failed with code %d", int32(rc))
	}
	return nil
}
