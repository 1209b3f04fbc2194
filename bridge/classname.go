// Package bridge reports JVM failures to the host. It resolves runtime class
// names and turns a pending JVM exception into a Go error.
//
// Everything here calls the jni.Env directly and must not depend on
// marshal.
package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/jbridge/jni"
)

var log = commonlog.GetLogger("jbridge.bridge")

// ErrPending is wrapped by errors caused by the VM throwing during a bridge
// operation. The new exception is left pending.
var ErrPending = errors.New("bridge: JVM exception pending")

const getNameSig = "()Ljava/lang/String;"

// RuntimeClassName returns the runtime class name of obj as Class.getName
// reports it, dotted for ordinary classes (java.lang.String). Array classes
// are returned in descriptor form ([I, [Ljava/lang/Object;).
//
// It uses only GetObjectClass, GetMethodID, an object-returning call and a
// string read, and releases every reference it obtains.
func RuntimeClassName(env jni.Env, obj jni.Ref) (string, error) {
	if obj.IsNull() {
		return "", errors.New("bridge: RuntimeClassName of null")
	}
	scope := jni.NewScope(env)
	defer scope.Close()

	cls := scope.Track(env.GetObjectClass(obj))
	if cls.IsNull() {
		return "", fmt.Errorf("GetObjectClass: %w", ErrPending)
	}
	classClass := scope.Track(env.GetObjectClass(cls))
	if classClass.IsNull() {
		return "", fmt.Errorf("GetObjectClass on class: %w", ErrPending)
	}
	getName := env.GetMethodID(classClass, "getName", getNameSig)
	if getName == 0 {
		return "", fmt.Errorf("Class.getName lookup: %w", ErrPending)
	}
	name := scope.Track(jni.CallObject(env, cls, getName))
	if env.ExceptionCheck() {
		return "", fmt.Errorf("Class.getName: %w", ErrPending)
	}
	if name.IsNull() {
		return "", errors.New("bridge: Class.getName returned null")
	}
	s := env.GetStringUTF(name)
	if env.ExceptionCheck() {
		return "", fmt.Errorf("reading class name: %w", ErrPending)
	}

	if strings.HasPrefix(s, "[") {
		s = strings.ReplaceAll(s, ".", "/")
	}
	return s, nil
}
