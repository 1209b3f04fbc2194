package marshal

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/host"
	"github.com/chazu/jbridge/jni"
	"github.com/chazu/jbridge/jni/jnitest"
)

type graph map[string][]string

func (g graph) IsAssignable(from, to string) bool {
	if to == ObjectClass {
		return true
	}
	for _, s := range g[from] {
		if s == to {
			return true
		}
	}
	return false
}

var testGraph = graph{
	"java/util/ArrayList": {"java/util/List", "java/util/Collection", SerializableClass},
}

func field(t *testing.T, desc string) descriptor.Type {
	t.Helper()
	typ, err := descriptor.ParseField(desc)
	if err != nil {
		t.Fatalf("ParseField(%q): %v", desc, err)
	}
	return typ
}

func TestTryConvertAccepts(t *testing.T) {
	huge, _ := new(big.Int).SetString("99999999999999999999", 10)
	list := host.NewObject(0x50, "java/util/ArrayList")
	tests := []struct {
		desc string
		v    host.Value
	}{
		{"Z", host.BoolValue(true)},
		{"B", host.IntValue(-128)},
		{"S", host.IntValue(32767)},
		{"I", host.IntValue(300000)},
		{"J", host.IntValue(math.MinInt64)},
		{"C", host.StrValue("x")},
		{"F", host.FloatValue(1.5)},
		{"F", host.IntValue(3)},
		{"F", host.FloatValue(math.Inf(1))},
		{"F", host.FloatValue(math.NaN())},
		{"D", host.FloatValue(1e300)},
		{"D", host.BigIntValue(huge)},
		{"Ljava/lang/String;", host.StrValue("s")},
		{"Ljava/lang/String;", host.NilValue()},
		{"Ljava/lang/Object;", host.StrValue("s")},
		{"Ljava/lang/CharSequence;", host.StrValue("s")},
		{"Ljava/lang/Comparable;", host.StrValue("s")},
		{"Ljava/lang/Boolean;", host.BoolValue(false)},
		{"Ljava/lang/Object;", host.BoolValue(false)},
		{"Ljava/lang/Character;", host.StrValue("x")},
		{"Ljava/lang/Byte;", host.IntValue(1)},
		{"Ljava/lang/Long;", host.IntValue(1)},
		{"Ljava/lang/Double;", host.IntValue(1)},
		{"Ljava/lang/Number;", host.IntValue(1)},
		{"Ljava/lang/Number;", host.FloatValue(1)},
		{"Ljava/util/List;", host.ObjectValue(list)},
		{"Ljava/lang/Object;", host.ObjectValue(list)},
		{"[I", host.NilValue()},
		{"[I", host.ListValue(host.IntValue(1), host.IntValue(2))},
		{"[Ljava/lang/String;", host.ListValue(host.StrValue("a"), host.NilValue())},
		{"[[I", host.ListValue(host.ListValue(host.IntValue(1)))},
		{"[B", host.BytesValue([]byte("ab"))},
		{"[C", host.StrValue("abc")},
		{"[I", host.ObjectValue(host.NewObject(0x60, "[I"))},
	}
	for _, tt := range tests {
		if _, err := TryConvert(testGraph, field(t, tt.desc), tt.v); err != nil {
			t.Errorf("TryConvert(%s, %s): %v", tt.desc, tt.v, err)
		}
	}
}

func TestTryConvertRejects(t *testing.T) {
	tests := []struct {
		desc string
		v    host.Value
	}{
		{"Z", host.IntValue(1)},
		{"B", host.IntValue(128)},
		{"B", host.IntValue(300000)},
		{"S", host.IntValue(-32769)},
		{"I", host.FloatValue(1)},
		{"I", host.NilValue()},
		{"J", host.StrValue("1")},
		{"C", host.StrValue("ab")},
		{"C", host.StrValue("")},
		{"C", host.StrValue("\U0001F600")},
		{"F", host.FloatValue(1e300)},
		{"F", host.StrValue("1")},
		{"Ljava/lang/Integer;", host.StrValue("s")},
		{"Ljava/lang/Integer;", host.IntValue(1 << 40)},
		{"Ljava/lang/Integer;", host.FloatValue(1)},
		{"Ljava/lang/Boolean;", host.IntValue(1)},
		{"Ljava/lang/Character;", host.StrValue("xy")},
		{"Ljava/lang/Character;", host.IntValue(65)},
		{"Ljava/lang/String;", host.IntValue(1)},
		{"Ljava/util/Map;", host.ObjectValue(host.NewObject(0x50, "java/util/ArrayList"))},
		{"[I", host.ListValue(host.StrValue("x"))},
		{"[I", host.IntValue(1)},
		{"[B", host.StrValue("ab")},
		{"[I", host.ObjectValue(host.NewObject(0x60, "[J"))},
	}
	for _, tt := range tests {
		_, err := TryConvert(testGraph, field(t, tt.desc), tt.v)
		if err == nil {
			t.Errorf("TryConvert(%s, %s) should fail", tt.desc, tt.v)
			continue
		}
		var mismatch *MismatchError
		if !errors.As(err, &mismatch) || !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("TryConvert(%s, %s) returned %T, want *MismatchError", tt.desc, tt.v, err)
		}
	}
}

func TestConvertArgsVarargs(t *testing.T) {
	sig := descriptor.MustParseMethod("(I[Ljava/lang/String;)V")
	natives, err := ConvertArgs(testGraph, sig, []host.Value{
		host.IntValue(1), host.StrValue("a"), host.StrValue("b"),
	}, true)
	if err != nil {
		t.Fatalf("ConvertArgs: %v", err)
	}
	if len(natives) != 2 || natives[1].Len() != 2 {
		t.Fatalf("packed %d natives", len(natives))
	}

	natives, err = ConvertArgs(testGraph, sig, []host.Value{host.IntValue(1)}, true)
	if err != nil || natives[1].Len() != 0 {
		t.Errorf("empty varargs: %v", err)
	}

	if _, err := ConvertArgs(testGraph, sig, []host.Value{host.IntValue(1)}, false); err == nil {
		t.Errorf("arity mismatch should fail without varargs")
	}
	_, err = ConvertArgs(testGraph, sig, []host.Value{host.IntValue(1), host.IntValue(2)}, true)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("bad vararg element: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Materialize and FromNative against the fake VM
// ---------------------------------------------------------------------------

func materialize(t *testing.T, vm *jnitest.VM, scope *jni.Scope, desc string, v host.Value) jni.Value {
	t.Helper()
	n, err := TryConvert(testGraph, field(t, desc), v)
	if err != nil {
		t.Fatalf("TryConvert(%s, %s): %v", desc, v, err)
	}
	out, err := n.Materialize(vm, scope)
	if err != nil {
		t.Fatalf("Materialize(%s): %v", desc, err)
	}
	return out
}

func TestMaterialize(t *testing.T) {
	vm := jnitest.New()
	scope := jni.NewScope(vm)

	if got := materialize(t, vm, scope, "I", host.IntValue(7)).Int(); got != 7 {
		t.Errorf("int = %d", got)
	}

	s := vm.Deref(materialize(t, vm, scope, "Ljava/lang/String;", host.StrValue("hi")).Ref())
	if s == nil || s.Text != "hi" {
		t.Errorf("string = %+v", s)
	}

	box := vm.Deref(materialize(t, vm, scope, "Ljava/lang/Object;", host.IntValue(5)).Ref())
	if box == nil || box.Class.Name != "java/lang/Integer" || box.Prim.Int() != 5 {
		t.Errorf("boxed = %+v", box)
	}

	ints := vm.Deref(materialize(t, vm, scope, "[I", host.ListValue(host.IntValue(1), host.IntValue(2))).Ref())
	if ints == nil || len(ints.Values) != 2 || ints.Values[1].Int() != 2 {
		t.Errorf("int[] = %+v", ints)
	}

	strs := vm.Deref(materialize(t, vm, scope, "[Ljava/lang/String;",
		host.ListValue(host.StrValue("a"), host.NilValue())).Ref())
	if strs == nil || strs.Class.Name != "[Ljava/lang/String;" || strs.Elems[0].Text != "a" || strs.Elems[1] != nil {
		t.Errorf("String[] = %+v", strs)
	}

	nested := vm.Deref(materialize(t, vm, scope, "[[I", host.ListValue(host.ListValue(host.IntValue(9)))).Ref())
	if nested == nil || nested.Class.Name != "[[I" || nested.Elems[0].Values[0].Int() != 9 {
		t.Errorf("int[][] = %+v", nested)
	}

	if got := materialize(t, vm, scope, "Ljava/lang/String;", host.NilValue()); got != 0 {
		t.Errorf("null = %#x", got)
	}

	scope.Close()
	if vm.Live() != 0 {
		t.Errorf("Live = %d after Close", vm.Live())
	}
	if v := vm.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestMaterializeArraysPassedAsObject(t *testing.T) {
	vm := jnitest.New()
	scope := jni.NewScope(vm)

	for _, desc := range []string{"Ljava/lang/Object;", "Ljava/lang/Cloneable;", "Ljava/io/Serializable;"} {
		bytes := vm.Deref(materialize(t, vm, scope, desc, host.BytesValue([]byte{1, 2, 3})).Ref())
		if bytes == nil || bytes.Class.Name != "[B" {
			t.Fatalf("bytes passed as %s = %+v, want [B", desc, bytes)
		}
		if len(bytes.Values) != 3 || bytes.Values[2].Byte() != 3 {
			t.Errorf("bytes passed as %s hold %v", desc, bytes.Values)
		}
	}

	list := vm.Deref(materialize(t, vm, scope, "Ljava/lang/Object;",
		host.ListValue(host.StrValue("a"), host.IntValue(2))).Ref())
	if list == nil || list.Class.Name != "[Ljava/lang/Object;" || len(list.Elems) != 2 {
		t.Fatalf("list passed as Object = %+v", list)
	}
	if list.Elems[0].Text != "a" || list.Elems[1].Class.Name != "java/lang/Integer" {
		t.Errorf("list elements = %+v, %+v", list.Elems[0], list.Elems[1])
	}

	scope.Close()
	if vm.Live() != 0 {
		t.Errorf("Live = %d after Close", vm.Live())
	}
	if v := vm.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestMaterializeCharacter(t *testing.T) {
	vm := jnitest.New()
	scope := jni.NewScope(vm)
	defer scope.Close()

	box := vm.Deref(materialize(t, vm, scope, "Ljava/lang/Character;", host.StrValue("q")).Ref())
	if box == nil || box.Class.Name != "java/lang/Character" || box.Prim.Char() != 'q' {
		t.Errorf("Character = %+v", box)
	}
}

func TestMaterializeBoxFailure(t *testing.T) {
	vm := jnitest.New()
	vm.FailCall("valueOf", 1)
	scope := jni.NewScope(vm)
	n, _ := TryConvert(testGraph, field(t, "Ljava/lang/Long;"), host.IntValue(1))
	if _, err := n.Materialize(vm, scope); !errors.Is(err, ErrPending) {
		t.Fatalf("Materialize = %v, want ErrPending", err)
	}
	vm.ExceptionClear()
	scope.Close()
	if vm.Live() != 0 {
		t.Errorf("Live = %d", vm.Live())
	}
}

func TestFromNative(t *testing.T) {
	vm := jnitest.New()

	if v, _ := FromNative(vm, nil, 0); !v.IsNil() {
		t.Errorf("void = %s", v)
	}
	i := descriptor.Primitive(descriptor.Int)
	if v, _ := FromNative(vm, &i, jni.Int(-4)); v.Kind != host.KindInt || v.Int.Int64() != -4 {
		t.Errorf("int = %s", v)
	}
	c := descriptor.Primitive(descriptor.Char)
	if v, _ := FromNative(vm, &c, jni.Char('q')); v.Str != "q" {
		t.Errorf("char = %s", v)
	}

	str := field(t, "Ljava/lang/String;")
	if v, _ := FromNative(vm, &str, jni.Object(vm.Local(vm.String("out")))); v.Kind != host.KindStr || v.Str != "out" {
		t.Errorf("String = %s", v)
	}
	obj := field(t, "Ljava/lang/Object;")
	if v, _ := FromNative(vm, &obj, jni.Object(vm.Local(vm.String("dyn")))); v.Str != "dyn" {
		t.Errorf("Object holding String = %s", v)
	}
	integer := field(t, "Ljava/lang/Integer;")
	if v, _ := FromNative(vm, &integer, jni.Object(vm.Local(vm.Box("java/lang/Integer", jni.Int(12))))); v.Kind != host.KindInt || v.Int.Int64() != 12 {
		t.Errorf("Integer = %s", v)
	}
	if v, _ := FromNative(vm, &obj, jni.Object(vm.Local(vm.Box("java/lang/Long", jni.Long(1<<40))))); v.Kind != host.KindInt || v.Int.Int64() != 1<<40 {
		t.Errorf("Object holding Long = %s", v)
	}
	number := field(t, "Ljava/lang/Number;")
	if v, _ := FromNative(vm, &number, jni.Object(vm.Local(vm.Box("java/lang/Double", jni.Double(0.5))))); v.Kind != host.KindFloat || v.Float != 0.5 {
		t.Errorf("Number holding Double = %s", v)
	}
	character := field(t, "Ljava/lang/Character;")
	if v, _ := FromNative(vm, &character, jni.Object(vm.Local(vm.Box("java/lang/Character", jni.Char('z'))))); v.Str != "z" {
		t.Errorf("Character = %s", v)
	}
	if v, _ := FromNative(vm, &str, 0); !v.IsNil() {
		t.Errorf("null String = %s", v)
	}

	arr := field(t, "[I")
	v, err := FromNative(vm, &arr, jni.Object(vm.Local(&jnitest.Object{Class: vm.MustClass("[I")})))
	if err != nil || v.Kind != host.KindObject || v.Object.Class != "[I" {
		t.Fatalf("int[] = %s, %v", v, err)
	}
	if vm.Globals() != 1 {
		t.Errorf("Globals = %d, want 1", vm.Globals())
	}
	vm.DeleteGlobalRef(v.Object.Ref)

	vm.DefineClass("com/example/Widget", "")
	v, err = FromNative(vm, &obj, jni.Object(vm.Local(vm.New("com/example/Widget"))))
	if err != nil || v.Kind != host.KindObject || v.Object.Class != ObjectClass {
		t.Fatalf("Object holding Widget = %s, %v", v, err)
	}
	vm.DeleteGlobalRef(v.Object.Ref)

	if vm.Live() != 0 {
		t.Errorf("Live = %d", vm.Live())
	}
	if vs := vm.Violations(); len(vs) != 0 {
		t.Errorf("violations: %v", vs)
	}
}
