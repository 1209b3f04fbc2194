// Package overload picks which overloaded JVM method a host call invokes.
//
// Applicability is decided by probing marshal.TryConvert for each argument.
// Specificity between two applicable candidates depends only on their
// declared parameter types and on the dispatch kind of each argument, never
// on argument contents, so the answers can be cached.
package overload

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/host"
	"github.com/chazu/jbridge/marshal"
)

var log = commonlog.GetLogger("jbridge.overload")

// Candidate is one method of an overload set. Handle is opaque to the
// resolver; callers store whatever they need to invoke the method.
type Candidate struct {
	Signature *descriptor.Method
	Handle    any
}

// IsApplicable reports whether args can be passed to sig. With varargs the
// trailing arguments are collected into sig's last (array) parameter.
func IsApplicable(h marshal.Hierarchy, sig *descriptor.Method, args []host.Value, varargs bool) bool {
	params := sig.Params
	if !varargs {
		if len(args) != len(params) {
			return false
		}
		for i, a := range args {
			if _, err := marshal.TryConvert(h, params[i], a); err != nil {
				return false
			}
		}
		return true
	}

	fixed := len(params) - 1
	if fixed < 0 || len(args) < fixed || !params[fixed].IsArray() {
		return false
	}
	for i := 0; i < fixed; i++ {
		if _, err := marshal.TryConvert(h, params[i], args[i]); err != nil {
			return false
		}
	}
	elem := params[fixed].Elem()
	for _, a := range args[fixed:] {
		if _, err := marshal.TryConvert(h, elem, a); err != nil {
			return false
		}
	}
	return true
}

// IsBetterOverload reports whether m1 is at least as specific as m2 for
// arguments of the given kinds. It is always false with varargs.
func IsBetterOverload(h marshal.Hierarchy, m1, m2 *descriptor.Method, actual []host.Kind, varargs bool) bool {
	if varargs {
		return false
	}
	if len(m1.Params) != len(m2.Params) || len(m1.Params) != len(actual) {
		return false
	}
	for i := range m1.Params {
		if !IsBetterOverloadArg(h, m1.Params[i], m2.Params[i], actual[i]) {
			return false
		}
	}
	return true
}

// Ranks on the ladders used by IsBetterOverloadArg. Zero means "not on the
// ladder".
var (
	integerRank = map[descriptor.Code]int{
		descriptor.Byte: 1, descriptor.Short: 2, descriptor.Int: 3, descriptor.Long: 4,
	}
	floatRank = map[descriptor.Code]int{
		descriptor.Float: 1, descriptor.Double: 2,
	}
	numericRank = map[descriptor.Code]int{
		descriptor.Byte: 1, descriptor.Short: 2, descriptor.Int: 3, descriptor.Long: 4,
		descriptor.Float: 5, descriptor.Double: 6,
	}
)

func rank(ladder map[descriptor.Code]int, t descriptor.Type) int {
	if !t.IsPrimitive() {
		return 0
	}
	return ladder[t.Code()]
}

var charArray = descriptor.ArrayOf(descriptor.Primitive(descriptor.Char))

// IsBetterOverloadArg reports whether def1 is at least as good a match as
// def2 for an argument of kind actual. Rules are tried in order and the
// first that applies decides.
func IsBetterOverloadArg(h marshal.Hierarchy, def1, def2 descriptor.Type, actual host.Kind) bool {
	if def1 == def2 {
		return true
	}

	// Host numbers prefer the widest declared type.
	if actual == host.KindInt {
		if r1, r2 := rank(integerRank, def1), rank(integerRank, def2); r1 > 0 && r2 > 0 {
			return r1 >= r2
		}
	}
	if actual == host.KindFloat {
		if r1, r2 := rank(floatRank, def1), rank(floatRank, def2); r1 > 0 && r2 > 0 {
			return r1 >= r2
		}
	}
	if actual == host.KindStr && def1.ClassName() == marshal.StringClass {
		if (def2.IsPrimitive() && def2.Code() == descriptor.Char) || def2 == charArray {
			return true
		}
	}

	if r1, r2 := rank(numericRank, def1), rank(numericRank, def2); r1 > 0 && r2 > 0 {
		return r1 <= r2
	}

	switch {
	case def2.IsObject():
		switch {
		case def1.IsObject():
			return h.IsAssignable(def1.ClassName(), def2.ClassName())
		case def1.IsArray():
			switch def2.ClassName() {
			case marshal.ObjectClass, marshal.CloneableClass, marshal.SerializableClass:
				return true
			}
		}
		return false
	case def2.IsArray() && !def2.Elem().IsPrimitive() && def1.IsArray():
		return IsBetterOverloadArg(h, def1.Elem(), def2.Elem(), actual)
	}
	return false
}
