package jni_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/chazu/jbridge/jni"
	"github.com/chazu/jbridge/jni/jnitest"
)

// ---------------------------------------------------------------------------
// Scope
// ---------------------------------------------------------------------------

func TestScopeCloseReleasesEverything(t *testing.T) {
	vm := jnitest.New()
	scope := jni.NewScope(vm)

	a := scope.Track(vm.NewStringUTF("a"))
	scope.Track(vm.NewStringUTF("b"))
	scope.Track(0)
	if scope.Len() != 2 {
		t.Fatalf("Len = %d, want 2", scope.Len())
	}

	scope.Release(a)
	if vm.Released() != 1 {
		t.Errorf("Released after Release = %d, want 1", vm.Released())
	}

	scope.Close()
	scope.Close()
	if vm.Live() != 0 {
		t.Errorf("Live = %d, want 0", vm.Live())
	}
	if v := vm.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestScopeDetach(t *testing.T) {
	vm := jnitest.New()
	scope := jni.NewScope(vm)
	kept := scope.Detach(scope.Track(vm.NewStringUTF("kept")))
	scope.Close()

	if vm.Live() != 1 {
		t.Fatalf("Live = %d, want 1", vm.Live())
	}
	if got := vm.GetStringUTF(kept); got != "kept" {
		t.Errorf("detached ref reads %q", got)
	}
	vm.DeleteLocalRef(kept)
	if vm.Live() != 0 {
		t.Errorf("Live = %d after manual delete", vm.Live())
	}
}

func TestScopeReleaseForeignIsNoop(t *testing.T) {
	vm := jnitest.New()
	scope := jni.NewScope(vm)
	foreign := vm.NewStringUTF("x")
	scope.Release(foreign)
	if vm.Released() != 0 {
		t.Errorf("Release of unowned ref deleted it")
	}
	vm.DeleteLocalRef(foreign)
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

func TestValueRoundTrip(t *testing.T) {
	if !jni.Boolean(true).Bool() || jni.Boolean(false).Bool() {
		t.Error("Boolean")
	}
	if jni.Byte(-5).Byte() != -5 {
		t.Error("Byte")
	}
	if jni.Short(-300).Short() != -300 {
		t.Error("Short")
	}
	if jni.Int(math.MinInt32).Int() != math.MinInt32 {
		t.Error("Int")
	}
	if jni.Long(math.MaxInt64).Long() != math.MaxInt64 {
		t.Error("Long")
	}
	if jni.Char(0xFFFF).Char() != 0xFFFF {
		t.Error("Char")
	}
	if jni.Float(1.5).Float() != 1.5 {
		t.Error("Float")
	}
	if jni.Double(-2.25).Double() != -2.25 {
		t.Error("Double")
	}
	if jni.Object(0x1234).Ref() != 0x1234 {
		t.Error("Object")
	}
}

// ---------------------------------------------------------------------------
// Modified UTF-8
// ---------------------------------------------------------------------------

func TestModifiedUTF8Encoding(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"abc", []byte{'a', 'b', 'c', 0}},
		{"a\x00b", []byte{'a', 0xC0, 0x80, 'b', 0}},
		{"é", []byte{0xC3, 0xA9, 0}},
		{"\U0001F600", []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80, 0}},
	}
	for _, tt := range tests {
		got := jni.EncodeModifiedUTF8(tt.in)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeModifiedUTF8(%q) = % x, want % x", tt.in, got, tt.want)
		}
		back := jni.DecodeModifiedUTF8(got[:len(got)-1])
		if back != tt.in {
			t.Errorf("DecodeModifiedUTF8 round trip of %q = %q", tt.in, back)
		}
	}
}

func TestModifiedUTF8Malformed(t *testing.T) {
	got := jni.DecodeModifiedUTF8([]byte{'a', 0xED, 0xA0, 0xBD, 'b'})
	if got != "a�b" {
		t.Errorf("unpaired surrogate decoded as %q", got)
	}
	got = jni.DecodeModifiedUTF8([]byte{0xFF})
	if got != "�" {
		t.Errorf("invalid byte decoded as %q", got)
	}
}
