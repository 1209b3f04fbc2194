package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/jbridge/bridge"
	"github.com/chazu/jbridge/dispatch"
	"github.com/chazu/jbridge/host"
	"github.com/chazu/jbridge/jni"
	"github.com/chazu/jbridge/manifest"
	"github.com/chazu/jbridge/overload"
)

// handleCallCommand processes the `jbridge call` subcommand.
// Usage:
//
//	jbridge call -class java/lang/Math -method abs -static -sig '(I)I' -sig '(D)D' -- -3
//	jbridge call -class java.lang.StringBuilder -method append -ctor '()V' -sig '(Ljava/lang/String;)Ljava/lang/StringBuilder;' '"x"'
//
// Instance methods are called on a receiver built with the no-argument
// constructor named by -ctor.
func handleCallCommand(args []string, m *manifest.Manifest) int {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	class := fs.String("class", "", "Class name (java/lang/String or java.lang.String)")
	name := fs.String("method", "", "Method name (<init> for a constructor)")
	static := fs.Bool("static", false, "Call a static method")
	ctor := fs.String("ctor", "", "Constructor descriptor used to build the receiver of an instance call")
	var sigs sigList
	fs.Var(&sigs, "sig", "Candidate method descriptor (repeatable; append ... for varargs)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *class == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "Error: call requires -class and -method")
		return 2
	}
	className := strings.ReplaceAll(*class, ".", "/")

	method, err := dispatch.NewMethod(className, *name, *static, sigs...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	values, err := host.ParseAll(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if m.JVM.Library == "" {
		fmt.Fprintln(os.Stderr, "Error: no libjvm configured; set [jvm] library in jbridge.toml or JAVA_HOME")
		return 1
	}

	vm, err := jni.Launch(m.JVM.Library, m.VMOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		if err := vm.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()
	env := vm.Env()

	cache, save := openCache(m)
	defer save()
	caller := dispatch.NewCaller(overload.NewResolver(cache), m.NewHierarchy())

	var this *host.Object
	if !*static && *name != dispatch.Constructor {
		if *ctor == "" {
			fmt.Fprintln(os.Stderr, "Error: instance calls need -ctor or -static")
			return 2
		}
		this, err = newReceiver(env, caller, className, *ctor)
		if err != nil {
			return reportCallError(err)
		}
		defer env.DeleteGlobalRef(this.Ref)
	}

	result, err := caller.Call(env, method, this, values)
	if err != nil {
		return reportCallError(err)
	}
	if result.Kind == host.KindObject {
		defer env.DeleteGlobalRef(result.Object.Ref)
		actual, err := bridge.RuntimeClassName(env, result.Object.Ref)
		if err != nil {
			return reportCallError(err)
		}
		fmt.Printf("%s (runtime class %s)\n", result, actual)
		return 0
	}
	fmt.Println(result)
	return 0
}

// newReceiver constructs an instance of class with the no-argument
// constructor ctor. The caller owns the returned global reference.
func newReceiver(env jni.Env, caller *dispatch.Caller, class, ctor string) (*host.Object, error) {
	m, err := dispatch.NewMethod(class, dispatch.Constructor, false, ctor)
	if err != nil {
		return nil, err
	}
	v, err := caller.Call(env, m, nil, nil)
	if err != nil {
		return nil, err
	}
	if v.Kind != host.KindObject {
		// Strings and wrappers come back copied out, with no handle left.
		return nil, fmt.Errorf("%s cannot be a receiver: its constructor result converts to %s", strings.ReplaceAll(class, "/", "."), v.Kind)
	}
	return v.Object, nil
}

func reportCallError(err error) int {
	var bridged *bridge.BridgedException
	if errors.As(err, &bridged) {
		fmt.Fprintf(os.Stderr, "Exception in call: %s", bridged.StackTrace())
		return 1
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
