package jni

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jbridge.jni")

// ErrUnsupported is returned by Launch on platforms purego cannot load libjvm on.
var ErrUnsupported = errors.New("jni: launching a JVM is not supported on this platform")

// Version1_8 is JNI_VERSION_1_8.
const Version1_8 = 0x00010008

// VM is a JVM created by Launch. The Env it returns belongs to the OS thread
// that called Launch.
type VM struct {
	library string
	lib     uintptr
	jvm     uintptr
	env     Env
}

// Library returns the path libjvm was loaded from.
func (vm *VM) Library() string { return vm.library }

// Env returns the launching thread's environment.
func (vm *VM) Env() Env { return vm.env }

// DefaultLibrary guesses the libjvm path from JAVA_HOME. It returns "" when
// JAVA_HOME is unset.
func DefaultLibrary() string {
	home := os.Getenv("JAVA_HOME")
	if home == "" {
		return ""
	}
	name := "libjvm.so"
	if runtime.GOOS == "darwin" {
		name = "libjvm.dylib"
	}
	return filepath.Join(home, "lib", "server", name)
}
