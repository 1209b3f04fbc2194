// Package dispatch calls JVM methods with host arguments: it resolves the
// overload, converts the arguments, invokes the method and turns the result
// or a thrown exception back into host terms.
package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/jbridge/bridge"
	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/host"
	"github.com/chazu/jbridge/jni"
	"github.com/chazu/jbridge/marshal"
	"github.com/chazu/jbridge/overload"
)

var log = commonlog.GetLogger("jbridge.dispatch")

// Constructor is the method name of constructors.
const Constructor = "<init>"

// Method is an overload set: every declared signature of one method name
// on one class.
type Method struct {
	Class      string // internal name, e.g. java/lang/String
	Name       string
	Static     bool
	Signatures []*descriptor.Method
}

// NewMethod parses sigs into a Method. A signature ending in "..." is
// declared varargs.
func NewMethod(class, name string, static bool, sigs ...string) (Method, error) {
	m := Method{Class: class, Name: name, Static: static}
	for _, s := range sigs {
		var sig *descriptor.Method
		var err error
		if trimmed, ok := strings.CutSuffix(s, "..."); ok {
			sig, err = descriptor.ParseVarargs(trimmed)
		} else {
			sig, err = descriptor.ParseMethod(s)
		}
		if err != nil {
			return Method{}, fmt.Errorf("dispatch: %s.%s: %w", class, name, err)
		}
		m.Signatures = append(m.Signatures, sig)
	}
	if len(m.Signatures) == 0 {
		return Method{}, fmt.Errorf("dispatch: %s.%s has no signatures", class, name)
	}
	return m, nil
}

func (m Method) String() string {
	return strings.ReplaceAll(m.Class, "/", ".") + "." + m.Name
}

func (m Method) candidates() []overload.Candidate {
	cs := make([]overload.Candidate, len(m.Signatures))
	for i, s := range m.Signatures {
		cs[i] = overload.Candidate{Signature: s, Handle: i}
	}
	return cs
}

// Caller invokes methods. It is safe for concurrent use as long as each
// goroutine passes its own Env.
type Caller struct {
	resolver  *overload.Resolver
	hierarchy *bridge.Hierarchy
}

// NewCaller returns a Caller sharing resolver and hierarchy. Nil arguments
// get fresh private instances.
func NewCaller(resolver *overload.Resolver, hierarchy *bridge.Hierarchy) *Caller {
	if resolver == nil {
		resolver = overload.NewResolver(nil)
	}
	if hierarchy == nil {
		hierarchy = bridge.NewHierarchy()
	}
	return &Caller{resolver: resolver, hierarchy: hierarchy}
}

// Resolver returns the overload resolver.
func (c *Caller) Resolver() *overload.Resolver { return c.resolver }

// Hierarchy returns the shared class hierarchy.
func (c *Caller) Hierarchy() *bridge.Hierarchy { return c.hierarchy }

// Resolve picks the signature of m that args select, without calling it.
func (c *Caller) Resolve(env jni.Env, m Method, args []host.Value) (*descriptor.Method, bool, error) {
	choice, err := c.resolver.Resolve(c.hierarchy.Bind(env), m.candidates(), args)
	if err != nil {
		return nil, false, fmt.Errorf("dispatch: %s: %w", m, err)
	}
	return choice.Candidate.Signature, choice.Varargs, nil
}

// Call invokes m with args. this is the receiver for instance methods and
// ignored for static methods and constructors. A JVM exception thrown by
// the call, or while preparing it, is returned as *bridge.BridgedException.
func (c *Caller) Call(env jni.Env, m Method, this *host.Object, args []host.Value) (host.Value, error) {
	sig, varargs, err := c.Resolve(env, m, args)
	if err != nil {
		return host.Value{}, err
	}
	log.Debugf("calling %s%s", m, sig)

	scope := jni.NewScope(env)
	defer scope.Close()

	natives, err := marshal.ConvertArgs(c.hierarchy.Bind(env), sig, args, varargs)
	if err != nil {
		return host.Value{}, fmt.Errorf("dispatch: %s: %w", m, err)
	}

	cls := scope.Track(env.FindClass(m.Class))
	if cls.IsNull() {
		return host.Value{}, thrown(env, m, "loading class")
	}

	var id jni.MethodID
	if m.Static {
		id = env.GetStaticMethodID(cls, m.Name, sig.String())
	} else {
		id = env.GetMethodID(cls, m.Name, sig.String())
	}
	if id == 0 {
		return host.Value{}, thrown(env, m, "looking up "+sig.String())
	}

	values, err := marshal.MaterializeAll(env, scope, natives)
	if err != nil {
		if errors.Is(err, marshal.ErrPending) {
			return host.Value{}, thrown(env, m, err.Error())
		}
		return host.Value{}, fmt.Errorf("dispatch: %s: %w", m, err)
	}

	ret := sig.Return
	var result jni.Value
	switch {
	case m.Name == Constructor:
		result = jni.Object(env.NewObject(cls, id, values))
		t := descriptor.Object(m.Class)
		ret = &t
	case m.Static:
		result = env.CallStaticMethod(cls, id, jni.ReturnOf(ret), values)
	default:
		if this == nil || this.Ref.IsNull() {
			return host.Value{}, fmt.Errorf("dispatch: %s: instance method called without a receiver", m)
		}
		result = env.CallMethod(this.Ref, id, jni.ReturnOf(ret), values)
	}

	if err := bridge.Check(env); err != nil {
		return host.Value{}, err
	}

	v, err := marshal.FromNative(env, ret, result)
	if err != nil {
		return host.Value{}, thrown(env, m, "converting the result")
	}
	return v, nil
}

// thrown drains the exception pending after a failed step of calling m.
func thrown(env jni.Env, m Method, op string) error {
	if err := bridge.Check(env); err != nil {
		return err
	}
	return fmt.Errorf("dispatch: %s: %s failed", m, op)
}
