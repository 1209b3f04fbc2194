package bridge

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/jbridge/jni/jnitest"
)

// checkClean fails the test unless every local reference was released, no
// exception is pending and no JNI rule was broken.
func checkClean(t *testing.T, vm *jnitest.VM) {
	t.Helper()
	if vm.Live() != 0 {
		t.Errorf("%d local references leaked (acquired %d, released %d)", vm.Live(), vm.Acquired(), vm.Released())
	}
	if p := vm.Pending(); p != nil {
		t.Errorf("exception still pending: %s", p.Class.Name)
	}
	for _, v := range vm.Violations() {
		t.Errorf("violation: %s", v)
	}
}

// ---------------------------------------------------------------------------
// Class-name resolver
// ---------------------------------------------------------------------------

func TestRuntimeClassName(t *testing.T) {
	vm := jnitest.New()
	tests := []struct {
		obj  *jnitest.Object
		want string
	}{
		{vm.String("x"), "java.lang.String"},
		{vm.Box("java/lang/Integer", 0), "java.lang.Integer"},
		{&jnitest.Object{Class: vm.MustClass("[I")}, "[I"},
		{&jnitest.Object{Class: vm.MustClass("[Ljava/lang/Object;")}, "[Ljava/lang/Object;"},
		{&jnitest.Object{Class: vm.MustClass("[[Ljava/lang/String;")}, "[[Ljava/lang/String;"},
	}
	for _, tt := range tests {
		r := vm.Local(tt.obj)
		got, err := RuntimeClassName(vm, r)
		vm.DeleteLocalRef(r)
		if err != nil {
			t.Errorf("RuntimeClassName(%s): %v", tt.obj.Class.Name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RuntimeClassName(%s) = %q, want %q", tt.obj.Class.Name, got, tt.want)
		}
	}
	checkClean(t, vm)
}

func TestRuntimeClassNameFailure(t *testing.T) {
	vm := jnitest.New()
	vm.FailCall("getName", 1)
	r := vm.Local(vm.String("x"))
	_, err := RuntimeClassName(vm, r)
	vm.DeleteLocalRef(r)
	if !errors.Is(err, ErrPending) {
		t.Fatalf("err = %v, want ErrPending", err)
	}
	if vm.Pending() == nil {
		t.Fatalf("the getName failure should stay pending")
	}
	vm.ExceptionClear()
	checkClean(t, vm)
}

// ---------------------------------------------------------------------------
// Exception bridge
// ---------------------------------------------------------------------------

func TestDrainNothingPending(t *testing.T) {
	vm := jnitest.New()
	rec, err := DrainPendingException(vm)
	if rec != nil || err != nil {
		t.Errorf("DrainPendingException = %v, %v", rec, err)
	}
	if err := Check(vm); err != nil {
		t.Errorf("Check = %v", err)
	}
	if vm.Acquired() != 0 {
		t.Errorf("acquired %d references with nothing pending", vm.Acquired())
	}
}

func TestDrainWithoutCause(t *testing.T) {
	vm := jnitest.New()
	vm.Throw(vm.Throwable("java/lang/IllegalStateException", "boom", nil,
		"com.example.Widget.spin(Widget.java:10)",
		"com.example.Main.main(Main.java:3)"))

	rec, err := DrainPendingException(vm)
	if err != nil {
		t.Fatalf("DrainPendingException: %v", err)
	}
	if rec.ClassName != "java.lang.IllegalStateException" {
		t.Errorf("ClassName = %q", rec.ClassName)
	}
	if rec.Message != "boom" {
		t.Errorf("Message = %q", rec.Message)
	}
	want := []string{
		"java.lang.IllegalStateException: boom",
		"com.example.Widget.spin(Widget.java:10)",
		"com.example.Main.main(Main.java:3)",
	}
	if !reflect.DeepEqual(rec.StackLines, want) {
		t.Errorf("StackLines = %q, want %q", rec.StackLines, want)
	}
	checkClean(t, vm)
}

func TestDrainWithCause(t *testing.T) {
	vm := jnitest.New()
	cause := vm.Throwable("java/lang/IllegalArgumentException", "bad input", nil, "com.example.Parser.parse(Parser.java:42)")
	vm.Throw(vm.Throwable("java/lang/RuntimeException", "wrapped", cause, "com.example.Service.run(Service.java:7)"))

	err := Check(vm)
	var bridged *BridgedException
	if !errors.As(err, &bridged) {
		t.Fatalf("Check = %v, want *BridgedException", err)
	}
	if bridged.Error() != "java.lang.RuntimeException: wrapped" {
		t.Errorf("Error() = %q", bridged.Error())
	}
	want := []string{
		"java.lang.RuntimeException: wrapped",
		"com.example.Service.run(Service.java:7)",
		CausedBy,
		"java.lang.IllegalArgumentException: bad input",
		"com.example.Parser.parse(Parser.java:42)",
	}
	if !reflect.DeepEqual(bridged.StackLines, want) {
		t.Errorf("StackLines = %q, want %q", bridged.StackLines, want)
	}
	checkClean(t, vm)
}

func TestDrainNullMessage(t *testing.T) {
	vm := jnitest.New()
	vm.Throw(jnitest.NullMessage(vm.Throwable("java/lang/NullPointerException", "", nil)))

	err := Check(vm)
	if err == nil || err.Error() != "java.lang.NullPointerException" {
		t.Errorf("Check = %v", err)
	}
	checkClean(t, vm)
}

func TestDrainCauseCycle(t *testing.T) {
	vm := jnitest.New()
	a := vm.Throwable("java/lang/Exception", "a", nil)
	b := vm.Throwable("java/lang/Exception", "b", a)
	a.Cause = b
	vm.Throw(a)

	rec, err := DrainPendingException(vm)
	if err != nil {
		t.Fatalf("DrainPendingException: %v", err)
	}
	want := []string{"java.lang.Exception: a", CausedBy, "java.lang.Exception: b"}
	if !reflect.DeepEqual(rec.StackLines, want) {
		t.Errorf("StackLines = %q, want %q", rec.StackLines, want)
	}
	checkClean(t, vm)
}

func TestDrainDeepChainIsTruncated(t *testing.T) {
	vm := jnitest.New()
	var chain *jnitest.Object
	for i := 0; i < MaxCauseDepth+10; i++ {
		chain = vm.Throwable("java/lang/Exception", "", chain)
	}
	vm.Throw(chain)

	rec, err := DrainPendingException(vm)
	if err != nil {
		t.Fatalf("DrainPendingException: %v", err)
	}
	markers := 0
	for _, l := range rec.StackLines {
		if l == CausedBy {
			markers++
		}
	}
	if markers != MaxCauseDepth-1 {
		t.Errorf("rendered %d causes, want %d", markers, MaxCauseDepth-1)
	}
	checkClean(t, vm)
}

func TestDrainInducedFailures(t *testing.T) {
	for _, method := range []string{"getMessage", "toString", "getStackTrace", "getCause", "getName"} {
		t.Run(method, func(t *testing.T) {
			vm := jnitest.New()
			cause := vm.Throwable("java/lang/IllegalArgumentException", "inner", nil, "x.Y.z(Y.java:1)")
			vm.Throw(vm.Throwable("java/lang/IllegalStateException", "outer", cause, "a.B.c(B.java:2)"))
			vm.FailCall(method, 1)

			err := Check(vm)
			var internal *InternalError
			if !errors.As(err, &internal) || !errors.Is(err, ErrInternal) {
				t.Fatalf("Check = %v, want *InternalError", err)
			}
			var bridged *BridgedException
			if errors.As(err, &bridged) {
				t.Errorf("InternalError must not carry the original exception")
			}
			if internal.Secondary != "java.lang.RuntimeException" {
				t.Errorf("Secondary = %q", internal.Secondary)
			}
			if strings.Contains(err.Error(), "outer") {
				t.Errorf("InternalError mentions the original exception: %v", err)
			}
			checkClean(t, vm)
		})
	}
}

func TestDrainThrowableClassMissing(t *testing.T) {
	vm := jnitest.New()
	vm.ThrowNew("java/lang/Exception", "x")
	vm.FailFindClass("java/lang/Throwable")

	rec, err := DrainPendingException(vm)
	if rec != nil || !errors.Is(err, ErrInternal) {
		t.Fatalf("DrainPendingException = %v, %v", rec, err)
	}
	checkClean(t, vm)
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

func TestRecordEncodingAndStackTrace(t *testing.T) {
	rec := &ExceptionRecord{
		ClassName: "java.lang.RuntimeException",
		Message:   "wrapped",
		StackLines: []string{
			"java.lang.RuntimeException: wrapped",
			"a.B.c(B.java:1)",
			CausedBy,
			"java.io.IOException: disk",
			"d.E.f(E.java:2)",
		},
	}
	data, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	back, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if !reflect.DeepEqual(back, rec) {
		t.Errorf("decoded %+v", back)
	}
	if _, err := DecodeRecord([]byte{0xff}); err == nil {
		t.Errorf("DecodeRecord of garbage should fail")
	}

	want := "java.lang.RuntimeException: wrapped\n" +
		"\tat a.B.c(B.java:1)\n" +
		"Caused by: java.io.IOException: disk\n" +
		"\tat d.E.f(E.java:2)\n"
	if got := rec.StackTrace(); got != want {
		t.Errorf("StackTrace() =\n%s\nwant\n%s", got, want)
	}
}

// ---------------------------------------------------------------------------
// Hierarchy
// ---------------------------------------------------------------------------

func TestHierarchyBound(t *testing.T) {
	vm := jnitest.New()
	vm.DefineInterface("java/util/Collection")
	vm.DefineInterface("java/util/List", "java/util/Collection")
	vm.DefineClass("java/util/ArrayList", "", "java/util/List")

	h := NewHierarchy()
	b := h.Bind(vm)
	if !b.IsAssignable("java/util/ArrayList", "java/util/Collection") {
		t.Errorf("ArrayList should be a Collection")
	}
	if b.IsAssignable("java/util/Collection", "java/util/ArrayList") {
		t.Errorf("Collection is not an ArrayList")
	}
	if !b.IsAssignable("[Ljava/lang/String;", "[Ljava/lang/Object;") {
		t.Errorf("String[] should be an Object[]")
	}
	if h.Len() != 3 {
		t.Errorf("memo holds %d answers, want 3", h.Len())
	}
	if !h.IsAssignable("java/util/ArrayList", "java/util/Collection") {
		t.Errorf("offline view should reuse the memo")
	}

	if b.Fallbacks() != 0 {
		t.Errorf("Fallbacks = %d before any failure", b.Fallbacks())
	}
	if b.IsAssignable("com/example/Missing", "java/util/List") {
		t.Errorf("unknown class should not be assignable")
	}
	if b.Fallbacks() != 1 {
		t.Errorf("Fallbacks = %d after a failed load, want 1", b.Fallbacks())
	}
	checkClean(t, vm)
}

func TestHierarchyFallbackNotMemoized(t *testing.T) {
	vm := jnitest.New()
	vm.DefineInterface("java/util/Collection")
	vm.DefineClass("java/util/ArrayList", "", "java/util/Collection")
	vm.FailFindClass("java/util/ArrayList")

	h := NewHierarchy()
	b := h.Bind(vm)
	if b.IsAssignable("java/util/ArrayList", "java/util/Collection") {
		t.Errorf("static rules cannot know ArrayList is a Collection")
	}
	if b.Fallbacks() != 1 || h.Len() != 0 {
		t.Errorf("Fallbacks = %d, memo = %d; want 1, 0", b.Fallbacks(), h.Len())
	}

	vm.ThrowNew("java/lang/IllegalStateException", "pending")
	if b.IsAssignable("java/util/Collection", "java/util/List") || b.Fallbacks() != 2 {
		t.Errorf("a pending exception should force the static rules (Fallbacks = %d)", b.Fallbacks())
	}
	vm.ExceptionClear()

	offline := h.Bind(nil)
	offline.IsAssignable("java/util/ArrayList", "java/util/Collection")
	if offline.Fallbacks() != 0 {
		t.Errorf("offline answers are not fallbacks")
	}
	checkClean(t, vm)
}

func TestHierarchyOffline(t *testing.T) {
	h := NewHierarchy()
	h.Declare("java/lang/String", "java/lang/CharSequence", "java/io/Serializable")

	tests := []struct {
		from, to string
		want     bool
	}{
		{"java/lang/String", "java/lang/CharSequence", true},
		{"java/lang/String", "java/lang/Object", true},
		{"java/lang/String", "java/lang/Integer", false},
		{"[I", "java/lang/Cloneable", true},
		{"[I", "[J", false},
		{"[Ljava/lang/String;", "[Ljava/lang/CharSequence;", true},
		{"[Ljava/lang/String;", "[Ljava/lang/Integer;", false},
		{"[[I", "[Ljava/lang/Object;", true},
	}
	for _, tt := range tests {
		if got := h.IsAssignable(tt.from, tt.to); got != tt.want {
			t.Errorf("IsAssignable(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
