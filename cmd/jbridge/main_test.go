package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/dispatch"
	"github.com/chazu/jbridge/jni"
	"github.com/chazu/jbridge/jni/jnitest"
	"github.com/chazu/jbridge/manifest"
	"github.com/chazu/jbridge/overload"
)

func TestDescribeMethod(t *testing.T) {
	var buf bytes.Buffer
	if err := describeDescriptor(&buf, "(ILjava/lang/String;[J)V"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"(ILjava/lang/String;[J)V",
		"(int, java.lang.String, long[])",
		"arity:   3",
		"object java/lang/String",
		"array, depth 1, of long",
		"returns: void",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDescribeJavaName(t *testing.T) {
	var buf bytes.Buffer
	if err := describeDescriptor(&buf, "java.lang.String[][]"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "[[Ljava/lang/String;\n") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestDescribeInvalid(t *testing.T) {
	var buf bytes.Buffer
	for _, text := range []string{"(I", "(I,I)V", ""} {
		if err := describeDescriptor(&buf, text); err == nil {
			t.Errorf("describeDescriptor(%q) should fail", text)
		}
	}
}

func TestPrintChoice(t *testing.T) {
	var buf bytes.Buffer
	sig, err := descriptor.ParseVarargs("(Ljava/lang/String;[Ljava/lang/Object;)V")
	if err != nil {
		t.Fatal(err)
	}
	printChoice(&buf, sig, true)
	want := "(Ljava/lang/String;[Ljava/lang/Object;)V (java.lang.String, java.lang.Object...) (varargs expansion)\n"
	if buf.String() != want {
		t.Errorf("printChoice = %q, want %q", buf.String(), want)
	}
}

func TestResolveCommandSnapshot(t *testing.T) {
	m := manifest.Default(t.TempDir())
	m.Cache.Snapshot = "specificity.cbor"

	if code := handleResolveCommand([]string{"-sig", "(I)V", "-sig", "(J)V", "5"}, m); code != 0 {
		t.Fatalf("resolve exited %d", code)
	}
	cache := overload.NewCache()
	if err := cache.Load(filepath.Join(m.Dir, "specificity.cbor")); err != nil {
		t.Fatal(err)
	}
	if cache.Len() == 0 {
		t.Errorf("resolve did not save the specificity cache")
	}

	if code := handleResolveCommand([]string{"-sig", "(I)V", `"text"`}, m); code != 1 {
		t.Errorf("inapplicable resolve exited %d, want 1", code)
	}
	if code := handleResolveCommand([]string{"5"}, m); code != 2 {
		t.Errorf("resolve without signatures exited %d, want 2", code)
	}
}

func TestNewReceiver(t *testing.T) {
	vm := jnitest.New()
	noop := func(*jnitest.VM, *jnitest.Object, []jni.Value) jni.Value { return 0 }
	vm.DefineClass("com/example/Counter", "").Method("<init>", "()V", noop)
	vm.MustClass("java/lang/String").Method("<init>", "()V", noop)
	vm.MustClass("java/lang/Integer").Method("<init>", "()V", noop)
	caller := dispatch.NewCaller(nil, nil)

	this, err := newReceiver(vm, caller, "com/example/Counter", "()V")
	if err != nil {
		t.Fatalf("newReceiver: %v", err)
	}
	if this.Class != "com/example/Counter" || vm.Globals() != 1 {
		t.Errorf("receiver = %s, globals = %d", this, vm.Globals())
	}
	vm.DeleteGlobalRef(this.Ref)

	for _, class := range []string{"java/lang/String", "java/lang/Integer"} {
		if this, err := newReceiver(vm, caller, class, "()V"); err == nil {
			t.Errorf("%s receiver = %s, want an error", class, this)
		}
	}
	if _, err := newReceiver(vm, caller, "com/example/Counter", "(I)V"); err == nil {
		t.Errorf("a constructor that needs arguments should fail")
	}

	if vm.Live() != 0 || vm.Globals() != 0 {
		t.Errorf("leaked: %d locals, %d globals", vm.Live(), vm.Globals())
	}
	if v := vm.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}
